package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"closetvote/internal/services"
)

const captchaSessionKey = "captcha_answer"

type CaptchaHandler struct {
	captcha *services.CaptchaService
}

func NewCaptchaHandler(captcha *services.CaptchaService) *CaptchaHandler {
	return &CaptchaHandler{captcha: captcha}
}

// Issue stores a fresh answer in the session and returns the question.
func (h *CaptchaHandler) Issue(c *gin.Context) {
	question, answer := h.captcha.GenerateMathProblem()
	session := sessions.Default(c)
	session.Set(captchaSessionKey, answer)
	if err := session.Save(); err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"question": question}, "")
}

// consume checks input against the session answer. Answers are single use.
func (h *CaptchaHandler) consume(c *gin.Context, input string) bool {
	session := sessions.Default(c)
	expected := session.Get(captchaSessionKey)
	if expected == nil {
		return false
	}
	session.Delete(captchaSessionKey)
	if err := session.Save(); err != nil {
		_ = c.Error(err)
	}
	return h.captcha.Verify(expected, input)
}

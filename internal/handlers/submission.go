package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"closetvote/internal/services"
)

type submissionRequest struct {
	services.SubmissionInput
	Captcha string `json:"captcha"`
}

type decisionRequest struct {
	AffiliateLink string `json:"affiliateLink"`
}

// SubmissionHandler 投稿与审核
type SubmissionHandler struct {
	moderation *services.ModerationService
	captcha    *CaptchaHandler
}

func NewSubmissionHandler(moderation *services.ModerationService, captcha *CaptchaHandler) *SubmissionHandler {
	return &SubmissionHandler{moderation: moderation, captcha: captcha}
}

// Submit creates a pending item for the logged-in user.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	user := currentUser(c)

	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	// 先校验内容，验证码最后消耗，填错字段不必重新获取验证码
	var verr *services.ValidationError
	if err := h.moderation.Validate(req.SubmissionInput); errors.As(err, &verr) {
		fail(c, http.StatusBadRequest, verr.Error())
		return
	}
	if !h.captcha.consume(c, req.Captcha) {
		fail(c, http.StatusBadRequest, "Incorrect captcha answer.")
		return
	}

	item, err := h.moderation.Submit(c.Request.Context(), user.ID, req.SubmissionInput)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, item, "Item submitted for review.")
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, services.ErrDuplicateName):
		fail(c, http.StatusConflict, "An item with this name already exists.")
	default:
		internalError(c, err)
	}
}

// Pending lists the moderation queue, oldest first.
func (h *SubmissionHandler) Pending(c *gin.Context) {
	items, err := h.moderation.Pending(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, items, "")
}

// Decide approves or rejects a pending item.
func (h *SubmissionHandler) Decide(c *gin.Context) {
	id, valid := itemID(c, "id")
	if !valid {
		return
	}
	var req decisionRequest
	// reject needs no body; chunked bodies report ContentLength -1
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "Invalid request body.")
			return
		}
	}

	err := h.moderation.Decide(c.Request.Context(), id, c.Param("decision"), req.AffiliateLink)
	var verr *services.ValidationError
	switch {
	case err == nil:
		ok(c, http.StatusOK, nil, "Submission updated.")
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, services.ErrItemNotFound):
		fail(c, http.StatusNotFound, "Item not found.")
	case errors.Is(err, services.ErrNotPending):
		fail(c, http.StatusConflict, "Item has already been reviewed.")
	default:
		internalError(c, err)
	}
}

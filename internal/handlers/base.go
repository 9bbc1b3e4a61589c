package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"closetvote/internal/middleware"
	"closetvote/internal/models"
	"closetvote/internal/utils"
)

// Every JSON response uses the {"success","data","message"} envelope.
func ok(c *gin.Context, code int, data interface{}, message string) {
	body := gin.H{"success": true}
	if data != nil {
		body["data"] = data
	}
	if message != "" {
		body["message"] = message
	}
	c.JSON(code, body)
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"success": false, "message": message})
}

// internalError records err for the request log and answers with an opaque 500.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, "Something went wrong, please try again.")
}

// itemID parses the :name path parameter.
func itemID(c *gin.Context, name string) (uint, bool) {
	id, valid := utils.ParseID(c.Param(name))
	if !valid {
		fail(c, http.StatusBadRequest, "Invalid item id.")
	}
	return id, valid
}

func currentUser(c *gin.Context) *models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}

// renderItem fills the HTML description for API responses.
func renderItem(item *models.Item) {
	item.DescriptionHTML = utils.RenderMarkdown(item.Description)
}

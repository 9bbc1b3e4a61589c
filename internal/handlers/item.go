package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"closetvote/internal/services"
)

type ItemHandler struct {
	items services.ItemStore
}

func NewItemHandler(items services.ItemStore) *ItemHandler {
	return &ItemHandler{items: items}
}

// List returns approved items, most voted first.
func (h *ItemHandler) List(c *gin.Context) {
	filter := services.ItemFilter{
		Type:   c.Query("type"),
		Gender: c.Query("gender"),
		Price:  c.Query("price"),
		Style:  c.Query("style"),
	}
	items, err := h.items.ListApproved(c.Request.Context(), filter)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, items, "")
}

// Detail returns one approved item with its rendered description.
func (h *ItemHandler) Detail(c *gin.Context) {
	id, valid := itemID(c, "id")
	if !valid {
		return
	}
	item, err := h.items.FindItem(c.Request.Context(), id)
	if err != nil && !errors.Is(err, services.ErrItemNotFound) {
		internalError(c, err)
		return
	}
	if err != nil || !item.Approved() {
		fail(c, http.StatusNotFound, "Item not found.")
		return
	}
	renderItem(item)
	ok(c, http.StatusOK, item, "")
}

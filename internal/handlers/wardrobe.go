package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"closetvote/internal/services"
)

type wardrobeRequest struct {
	ItemID uint `json:"itemId" binding:"required"`
}

// WardrobeHandler 衣橱 - 用户保存的单品
type WardrobeHandler struct {
	wardrobe *services.WardrobeService
}

func NewWardrobeHandler(wardrobe *services.WardrobeService) *WardrobeHandler {
	return &WardrobeHandler{wardrobe: wardrobe}
}

func (h *WardrobeHandler) List(c *gin.Context) {
	items, err := h.wardrobe.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, items, "")
}

func (h *WardrobeHandler) Add(c *gin.Context) {
	var req wardrobeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "itemId is required.")
		return
	}

	err := h.wardrobe.Add(c.Request.Context(), currentUser(c).ID, req.ItemID)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, nil, "Item added to wardrobe.")
	case errors.Is(err, services.ErrItemNotFound), errors.Is(err, services.ErrItemNotApproved):
		fail(c, http.StatusNotFound, "Item not found.")
	case errors.Is(err, services.ErrAlreadyInWardrobe):
		fail(c, http.StatusConflict, "Item is already in your wardrobe.")
	default:
		internalError(c, err)
	}
}

func (h *WardrobeHandler) Remove(c *gin.Context) {
	id, valid := itemID(c, "itemId")
	if !valid {
		return
	}
	err := h.wardrobe.Remove(c.Request.Context(), currentUser(c).ID, id)
	switch {
	case err == nil:
		ok(c, http.StatusOK, nil, "Item removed from wardrobe.")
	case errors.Is(err, services.ErrNotInWardrobe):
		fail(c, http.StatusNotFound, "Item is not in your wardrobe.")
	default:
		internalError(c, err)
	}
}

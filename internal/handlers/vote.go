package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"closetvote/internal/middleware"
	"closetvote/internal/services"
)

type VoteHandler struct {
	ledger *services.Ledger
}

func NewVoteHandler(ledger *services.Ledger) *VoteHandler {
	return &VoteHandler{ledger: ledger}
}

// Vote registers one weekly vote for the item.
func (h *VoteHandler) Vote(c *gin.Context) {
	id, valid := itemID(c, "id")
	if !valid {
		return
	}
	identity, _ := middleware.Identity(c)

	res, err := h.ledger.RecordVote(c.Request.Context(), identity, id)
	switch {
	case err == nil:
		ok(c, http.StatusOK, res, "Vote registered successfully!")
	case errors.Is(err, services.ErrAlreadyVoted):
		fail(c, http.StatusBadRequest, "You have already voted for this item this week.")
	case errors.Is(err, services.ErrItemNotFound):
		fail(c, http.StatusNotFound, "Item not found.")
	case errors.Is(err, services.ErrIdentityIncomplete):
		fail(c, http.StatusBadRequest, "Could not identify the voter.")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "An error occurred while processing your vote, please try again.")
	}
}

// HasVoted reports whether the caller already voted for the item this week.
func (h *VoteHandler) HasVoted(c *gin.Context) {
	id, valid := itemID(c, "id")
	if !valid {
		return
	}
	identity, _ := middleware.Identity(c)

	voted, err := h.ledger.HasVoted(c.Request.Context(), identity, id)
	if err != nil {
		if errors.Is(err, services.ErrIdentityIncomplete) {
			fail(c, http.StatusBadRequest, "Could not identify the voter.")
			return
		}
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "Failed to check vote status.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasVoted": voted})
}

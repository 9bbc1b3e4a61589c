package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"closetvote/internal/services"
)

type LeaderboardHandler struct {
	board *services.Leaderboard
}

func NewLeaderboardHandler(board *services.Leaderboard) *LeaderboardHandler {
	return &LeaderboardHandler{board: board}
}

// Top lists this week's most voted items. ?limit= caps the list.
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	week, ranked, err := h.board.Top(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"week":  week.String(),
		"items": ranked,
	}, "")
}

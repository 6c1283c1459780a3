package handlers

import (
	"net/http"

	"harmonia/services"

	"github.com/gin-gonic/gin"
)

// StatsHandler handles listening statistics endpoints
type StatsHandler struct {
	stats services.StatsStore
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats services.StatsStore) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats returns the persisted play count and downloaded byte total
func (h *StatsHandler) GetStats(c *gin.Context) {
	snapshot, err := h.stats.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to read stats",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"playCount":       snapshot.PlayCount,
		"downloadedBytes": snapshot.DownloadedBytes,
	})
}

package handlers

import (
	"net/http"
	"strconv"

	"harmonia/daemon"
	"harmonia/services"

	"github.com/gin-gonic/gin"
)

// DownloadHandler exposes the transfer daemon to the UI.
type DownloadHandler struct {
	client     daemon.Client
	correlator services.Correlator
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(client daemon.Client, correlator services.Correlator) *DownloadHandler {
	return &DownloadHandler{
		client:     client,
		correlator: correlator,
	}
}

// ListTransfers returns the daemon's transfer list plus the album progress
// correlated from it. A daemon that is simply not running is a normal state
// for the UI, not an error.
func (h *DownloadHandler) ListTransfers(c *gin.Context) {
	transfers, err := h.client.ListTransfers(c.Request.Context())
	if err != nil {
		if daemon.IsConnectionRefused(err) {
			c.JSON(http.StatusOK, gin.H{
				"transfers":       []any{},
				"progress":        h.correlator.Progress(),
				"daemonConnected": false,
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "failed to list transfers",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transfers":       transfers,
		"progress":        h.correlator.Progress(),
		"daemonConnected": true,
		"total":           len(transfers),
	})
}

// AddTransferRequest is the body for adding a transfer
type AddTransferRequest struct {
	Magnet string `json:"magnet" binding:"required"`
}

// AddTransfer hands a magnet link to the daemon
func (h *DownloadHandler) AddTransfer(c *gin.Context) {
	var req AddTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.client.AddMagnet(c.Request.Context(), req.Magnet); err != nil {
		if daemon.IsConnectionRefused(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "transfer daemon is not running",
				"hint":  "start the transfer daemon and try again",
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "failed to add transfer",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "transfer added successfully",
	})
}

// RemoveTransfer removes a transfer, optionally deleting its data
func (h *DownloadHandler) RemoveTransfer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "transfer ID must be an integer",
		})
		return
	}
	deleteData := c.Query("deleteData") == "true"

	if err := h.client.RemoveTransfer(c.Request.Context(), id, deleteData); err != nil {
		if daemon.IsConnectionRefused(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "transfer daemon is not running",
				"hint":  "start the transfer daemon and try again",
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "failed to remove transfer",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "transfer removed successfully",
	})
}

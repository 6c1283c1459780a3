package handlers

import (
	"net/http"
	"time"

	"harmonia/services"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	library services.LibraryService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(library services.LibraryService) *HealthHandler {
	return &HealthHandler{library: library}
}

// HealthCheck returns the health status of the service
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "harmonia",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
	})
}

// APIStatus returns the status of the API
func (h *HealthHandler) APIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":    "Harmonia API is running",
		"music_root": h.library.Root(),
	})
}

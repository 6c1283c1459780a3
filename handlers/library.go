package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"harmonia/services"
)

// LibraryHandler handles catalog endpoints
type LibraryHandler struct {
	library services.LibraryService
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(library services.LibraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// GetCatalog returns the current catalog snapshot
func (h *LibraryHandler) GetCatalog(c *gin.Context) {
	catalog := h.library.Current()
	c.JSON(http.StatusOK, gin.H{
		"catalog": catalog,
		"albums":  len(catalog.Albums),
		"tracks":  catalog.TrackCount(),
	})
}

// Rescan requests a library rescan. Requests coalesce while a scan is in
// flight.
func (h *LibraryHandler) Rescan(c *gin.Context) {
	h.library.RequestScan()
	c.JSON(http.StatusAccepted, gin.H{
		"message": "rescan requested",
	})
}

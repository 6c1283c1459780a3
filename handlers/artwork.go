package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"harmonia/services"

	"github.com/gin-gonic/gin"
)

// ArtworkHandler serves album cover images out of the music library.
type ArtworkHandler struct {
	library services.LibraryService
}

// NewArtworkHandler creates a new artwork handler
func NewArtworkHandler(library services.LibraryService) *ArtworkHandler {
	return &ArtworkHandler{library: library}
}

// GetAlbumArtwork streams the cover image for an album
func (h *ArtworkHandler) GetAlbumArtwork(c *gin.Context) {
	albumID := c.Param("id")

	catalog := h.library.Current()
	album, ok := catalog.FindAlbum(albumID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "album not found",
		})
		return
	}
	if album.ArtworkPath == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "album has no artwork",
		})
		return
	}

	// Security: the resolved path must stay inside the music root
	absRoot, err := filepath.Abs(h.library.Root())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "server configuration error",
		})
		return
	}
	absPath, err := filepath.Abs(album.ArtworkPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid artwork path",
		})
		return
	}
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "path traversal not allowed",
		})
		return
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "artwork file not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "file access error",
			"details": err.Error(),
		})
		return
	}
	if fileInfo.IsDir() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "artwork path is a directory",
		})
		return
	}

	contentType := "image/jpeg"
	if strings.ToLower(filepath.Ext(absPath)) == ".png" {
		contentType = "image/png"
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(fileInfo.Size(), 10))
	c.Header("Cache-Control", "public, max-age=3600")
	c.File(absPath)
}

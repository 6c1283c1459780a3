package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"harmonia/services"
	"harmonia/types"
)

// PlayerHandler translates UI playback commands into engine operations
type PlayerHandler struct {
	engine  services.PlayerEngine
	library services.LibraryService
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(engine services.PlayerEngine, library services.LibraryService) *PlayerHandler {
	return &PlayerHandler{engine: engine, library: library}
}

// LoadRequest selects a track and the queue context it plays in.
type LoadRequest struct {
	TrackID string `json:"trackId" binding:"required"`
	AlbumID string `json:"albumId"`
	Shuffle bool   `json:"shuffle"`
}

// Load starts playback of a track within a queue built from the request.
// With an album id the album's tracks form the queue; otherwise the album
// containing the track is used.
func (h *PlayerHandler) Load(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid load request",
			"details": err.Error(),
		})
		return
	}

	catalog := h.library.Current()

	track, found := catalog.FindTrack(req.TrackID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "track not found",
		})
		return
	}

	var queue []types.Track
	if req.AlbumID != "" {
		if album, ok := catalog.FindAlbum(req.AlbumID); ok {
			queue = album.Tracks
		}
	}
	if queue == nil {
		for _, album := range catalog.Albums {
			for _, t := range album.Tracks {
				if t.ID == track.ID {
					queue = album.Tracks
					break
				}
			}
			if queue != nil {
				break
			}
		}
	}

	h.engine.Load(track, queue, req.Shuffle)
	c.JSON(http.StatusOK, gin.H{
		"state": h.engine.State(),
	})
}

// Toggle flips play/pause
func (h *PlayerHandler) Toggle(c *gin.Context) {
	h.engine.TogglePlayPause()
	c.JSON(http.StatusOK, gin.H{"state": h.engine.State()})
}

// Next advances the queue
func (h *PlayerHandler) Next(c *gin.Context) {
	h.engine.Next()
	c.JSON(http.StatusOK, gin.H{"state": h.engine.State()})
}

// Previous steps backwards, wrapping around the queue
func (h *PlayerHandler) Previous(c *gin.Context) {
	h.engine.Previous()
	c.JSON(http.StatusOK, gin.H{"state": h.engine.State()})
}

// Shuffle toggles shuffle mode
func (h *PlayerHandler) Shuffle(c *gin.Context) {
	h.engine.ToggleShuffle()
	c.JSON(http.StatusOK, gin.H{"state": h.engine.State()})
}

// Repeat cycles the repeat mode
func (h *PlayerHandler) Repeat(c *gin.Context) {
	h.engine.ToggleRepeat()
	c.JSON(http.StatusOK, gin.H{"state": h.engine.State()})
}

// SeekRequest carries a playback position in seconds.
type SeekRequest struct {
	Position float64 `json:"position"`
}

// Seek jumps to a position in the current track
func (h *PlayerHandler) Seek(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid seek request",
			"details": err.Error(),
		})
		return
	}

	h.engine.Seek(req.Position)
	c.JSON(http.StatusOK, gin.H{"state": h.engine.State()})
}

// VolumeRequest carries a volume in [0,1].
type VolumeRequest struct {
	Volume float64 `json:"volume"`
}

// Volume sets the playback volume, clamped to [0,1]
func (h *PlayerHandler) Volume(c *gin.Context) {
	var req VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid volume request",
			"details": err.Error(),
		})
		return
	}

	h.engine.SetVolume(req.Volume)
	c.JSON(http.StatusOK, gin.H{"state": h.engine.State()})
}

// GetState returns the current queue state snapshot
func (h *PlayerHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.engine.State()})
}

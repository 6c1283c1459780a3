package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"harmonia/config"
	"harmonia/services"

	"github.com/gin-gonic/gin"
)

// SettingsHandler handles settings-related endpoints
type SettingsHandler struct {
	library services.LibraryService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(library services.LibraryService) *SettingsHandler {
	return &SettingsHandler{library: library}
}

// Settings represents the user settings
type Settings struct {
	MusicRoot string `json:"musicRoot"`
}

// loadSettings loads settings from the settings file. The same file is
// read by config.Load at startup, so a saved root stays active across
// restarts.
func (h *SettingsHandler) loadSettings() (*Settings, error) {
	settingsPath := config.SettingsFilePath()

	// If file doesn't exist, fall back to the running configuration
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return &Settings{MusicRoot: h.library.Root()}, nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

// saveSettings saves settings to the settings file
func saveSettings(settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(config.SettingsFilePath(), data, 0644)
}

// validatePath validates that the path exists and is a readable directory
func validatePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Try to create the directory
			return os.MkdirAll(path, 0755)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory")
	}

	// Test read permissions
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	f.Close()

	return nil
}

// GetSettings returns the current settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.loadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load settings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings updates the music root and kicks off a rescan
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var newSettings Settings
	if err := c.ShouldBindJSON(&newSettings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid settings format",
			"details": err.Error(),
		})
		return
	}

	if err := validatePath(newSettings.MusicRoot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid music root",
			"details": err.Error(),
		})
		return
	}

	if err := saveSettings(&newSettings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to save settings",
			"details": err.Error(),
		})
		return
	}

	h.library.SetRoot(newSettings.MusicRoot)

	c.JSON(http.StatusOK, gin.H{
		"message":  "Settings updated successfully",
		"settings": newSettings,
	})
}

package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harmonia/types"
)

func newLibraryRouter(library *fakeLibrary) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewLibraryHandler(library)

	r := gin.New()
	r.GET("/api/library", h.GetCatalog)
	r.POST("/api/library/rescan", h.Rescan)
	return r
}

// TestGetCatalog verifies the catalog snapshot and counts
func TestGetCatalog(t *testing.T) {
	library := &fakeLibrary{catalog: playerTestCatalog()}
	r := newLibraryRouter(library)

	var resp struct {
		Catalog types.Catalog `json:"catalog"`
		Albums  int           `json:"albums"`
		Tracks  int           `json:"tracks"`
	}
	w := doJSON(t, r, http.MethodGet, "/api/library", nil, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resp.Albums)
	assert.Equal(t, 3, resp.Tracks)
	require.Len(t, resp.Catalog.Albums, 1)
	assert.Equal(t, "OK Computer", resp.Catalog.Albums[0].Name)
}

// TestRescanIsAccepted verifies the rescan request is acknowledged
// without waiting for the scan
func TestRescanIsAccepted(t *testing.T) {
	library := &fakeLibrary{catalog: playerTestCatalog()}
	r := newLibraryRouter(library)

	w := doJSON(t, r, http.MethodPost, "/api/library/rescan", nil, nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, library.scanRequests)
}

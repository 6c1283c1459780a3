package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harmonia/services"
	"harmonia/types"
)

// fakeLibrary serves a fixed catalog.
type fakeLibrary struct {
	catalog      types.Catalog
	root         string
	scanRequests int
}

func (f *fakeLibrary) Current() types.Catalog    { return f.catalog }
func (f *fakeLibrary) RequestScan()              { f.scanRequests++ }
func (f *fakeLibrary) SetRoot(path string)       { f.root = path }
func (f *fakeLibrary) Root() string              { return f.root }
func (f *fakeLibrary) Scan(string) types.Catalog { return f.catalog }
func (f *fakeLibrary) Run(context.Context)       {}

func playerTestCatalog() types.Catalog {
	return types.Catalog{
		Albums: []types.Album{
			{
				ID:   "album-1",
				Name: "OK Computer",
				Tracks: []types.Track{
					{ID: "t1", Title: "Airbag", Path: "/m/1.flac"},
					{ID: "t2", Title: "Paranoid Android", Path: "/m/2.flac"},
					{ID: "t3", Title: "Subterranean Homesick Alien", Path: "/m/3.flac"},
				},
			},
		},
	}
}

// stateResponse mirrors the handler's JSON envelope.
type stateResponse struct {
	State types.QueueState `json:"state"`
}

func newPlayerRouter(library *fakeLibrary) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := services.NewPlayerEngine(services.NopAudioEngine(), nil, nil, log.New(io.Discard))
	h := NewPlayerHandler(engine, library)

	r := gin.New()
	r.GET("/api/player", h.GetState)
	r.POST("/api/player/load", h.Load)
	r.POST("/api/player/toggle", h.Toggle)
	r.POST("/api/player/next", h.Next)
	r.POST("/api/player/previous", h.Previous)
	r.POST("/api/player/shuffle", h.Shuffle)
	r.POST("/api/player/repeat", h.Repeat)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

// TestLoadBuildsQueueFromContainingAlbum verifies loading by track id
// queues the whole album
func TestLoadBuildsQueueFromContainingAlbum(t *testing.T) {
	r := newPlayerRouter(&fakeLibrary{catalog: playerTestCatalog()})

	var resp stateResponse
	w := doJSON(t, r, http.MethodPost, "/api/player/load", gin.H{"trackId": "t2"}, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.PlayerPlaying, resp.State.State)
	assert.Equal(t, 3, resp.State.QueueLen)
	require.NotNil(t, resp.State.Current)
	assert.Equal(t, "t2", resp.State.Current.ID)
	assert.Equal(t, 1, resp.State.Index)
}

// TestLoadUnknownTrack verifies a missing track id is a 404
func TestLoadUnknownTrack(t *testing.T) {
	r := newPlayerRouter(&fakeLibrary{catalog: playerTestCatalog()})

	w := doJSON(t, r, http.MethodPost, "/api/player/load", gin.H{"trackId": "nope"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestLoadMissingTrackID verifies the binding rejects an empty body
func TestLoadMissingTrackID(t *testing.T) {
	r := newPlayerRouter(&fakeLibrary{catalog: playerTestCatalog()})

	w := doJSON(t, r, http.MethodPost, "/api/player/load", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestLoadWithShuffle verifies the shuffle flag puts the selected track
// first
func TestLoadWithShuffle(t *testing.T) {
	r := newPlayerRouter(&fakeLibrary{catalog: playerTestCatalog()})

	var resp stateResponse
	w := doJSON(t, r, http.MethodPost, "/api/player/load",
		gin.H{"trackId": "t3", "albumId": "album-1", "shuffle": true}, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.State.Shuffled)
	assert.Equal(t, 0, resp.State.Index)
	require.NotNil(t, resp.State.Current)
	assert.Equal(t, "t3", resp.State.Current.ID)
}

// TestPlayerCommandFlow verifies toggle, next, previous and repeat drive
// the queue
func TestPlayerCommandFlow(t *testing.T) {
	r := newPlayerRouter(&fakeLibrary{catalog: playerTestCatalog()})

	var resp stateResponse
	doJSON(t, r, http.MethodPost, "/api/player/load", gin.H{"trackId": "t1"}, &resp)
	require.Equal(t, types.PlayerPlaying, resp.State.State)

	doJSON(t, r, http.MethodPost, "/api/player/toggle", nil, &resp)
	assert.Equal(t, types.PlayerPaused, resp.State.State)

	doJSON(t, r, http.MethodPost, "/api/player/next", nil, &resp)
	assert.Equal(t, 1, resp.State.Index)
	assert.Equal(t, types.PlayerPlaying, resp.State.State)

	doJSON(t, r, http.MethodPost, "/api/player/previous", nil, &resp)
	assert.Equal(t, 0, resp.State.Index)

	// Previous again wraps to the end of the queue.
	doJSON(t, r, http.MethodPost, "/api/player/previous", nil, &resp)
	assert.Equal(t, 2, resp.State.Index)

	doJSON(t, r, http.MethodPost, "/api/player/repeat", nil, &resp)
	assert.Equal(t, types.RepeatAll, resp.State.Repeat)
}

// TestGetStateIdle verifies the snapshot of an idle engine
func TestGetStateIdle(t *testing.T) {
	r := newPlayerRouter(&fakeLibrary{catalog: playerTestCatalog()})

	var resp stateResponse
	w := doJSON(t, r, http.MethodGet, "/api/player", nil, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.PlayerIdle, resp.State.State)
	assert.Nil(t, resp.State.Current)
}

package types

// AudioQuality describes the technical attributes of an audio file. When
// IsEstimated is true the values come from the size-based heuristic table,
// never from the file's actual stream info.
type AudioQuality struct {
	Format       string `json:"format"` // "flac", "mp3", etc.
	BitrateKbps  int    `json:"bitrateKbps"`
	SampleRateHz int    `json:"sampleRateHz"`
	BitDepth     int    `json:"bitDepth,omitempty"` // 0 for formats without a fixed depth (MP3)
	Channels     int    `json:"channels,omitempty"`
	FileSize     int64  `json:"fileSize"`
	IsEstimated  bool   `json:"isEstimated"`
}

// Track represents a single audio file in the catalog. ID is derived from
// the file path, so an unchanged filesystem always yields the same ID.
type Track struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Artist      string       `json:"artist"`
	AlbumName   string       `json:"albumName"`
	Path        string       `json:"path"`
	TrackNum    int          `json:"trackNum,omitempty"` // 0 = unknown
	Duration    float64      `json:"duration,omitempty"` // seconds, 0 = unknown
	ArtworkPath string       `json:"artworkPath,omitempty"`
	Quality     AudioQuality `json:"quality"`
}

// Album groups the tracks found under one album folder. Multi-disc
// releases collapse into a single Album keyed by the parent folder.
type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Artist      string  `json:"artist"`
	FolderPath  string  `json:"folderPath"`
	ArtworkPath string  `json:"artworkPath,omitempty"`
	Tracks      []Track `json:"tracks"`
	Format      string  `json:"format"` // dominant extension among tracks
	Lossless    bool    `json:"lossless"`
}

// Catalog is an immutable snapshot of the scanned library. Every scan
// produces a fresh Catalog with a higher Version; consumers never see a
// partially built one.
type Catalog struct {
	Version uint64  `json:"version"`
	Albums  []Album `json:"albums"`
	Status  string  `json:"status"`
}

// TrackCount returns the total number of tracks across all albums.
func (c Catalog) TrackCount() int {
	n := 0
	for _, a := range c.Albums {
		n += len(a.Tracks)
	}
	return n
}

// FindTrack looks a track up by ID across all albums.
func (c Catalog) FindTrack(id string) (Track, bool) {
	for _, a := range c.Albums {
		for _, t := range a.Tracks {
			if t.ID == id {
				return t, true
			}
		}
	}
	return Track{}, false
}

// FindAlbum looks an album up by ID.
func (c Catalog) FindAlbum(id string) (Album, bool) {
	for _, a := range c.Albums {
		if a.ID == id {
			return a, true
		}
	}
	return Album{}, false
}

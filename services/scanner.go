package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"harmonia/types"
)

// Audio and artwork extensions recognized by the scanner.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".wav":  true,
	".aac":  true,
	".ogg":  true,
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Preferred artwork filenames, in precedence order.
var artworkNames = []string{"folder.jpg", "folder.png", "cover.jpg", "cover.png", "artwork.jpg"}

// Dominant formats considered lossless.
var losslessFormats = map[string]bool{
	"flac": true,
	"alac": true,
	"ape":  true,
	"wav":  true,
}

// discFolderRe matches disc subfolder names so multi-disc releases collapse
// into the parent album folder.
var discFolderRe = regexp.MustCompile(`(?i)^(disc|cd|disk)\s*\d+$`)

// Notifier publishes immutable state snapshots to subscribers. Satisfied by
// the websocket hub; tests use a recording fake.
type Notifier interface {
	Publish(msg types.StateMessage)
}

// LibraryService owns the current catalog snapshot. Scans run on a single
// worker goroutine and publish atomically; readers always see either the
// previous complete catalog or the new one.
type LibraryService interface {
	// Current returns the latest published catalog.
	Current() types.Catalog
	// RequestScan asks for a rescan. Requests arriving while a scan is in
	// flight coalesce into at most one follow-up scan.
	RequestScan()
	// SetRoot changes the music root and invalidates any scan in flight.
	SetRoot(path string)
	Root() string
	// Scan builds a catalog from the filesystem. Pure: no published state
	// is touched.
	Scan(root string) types.Catalog
	// Run drives the scan worker until ctx is cancelled: one scan at
	// startup, then timer rescans and on-demand requests.
	Run(ctx context.Context)
}

type libraryService struct {
	resolver       MetadataResolver
	hub            Notifier
	logger         *log.Logger
	rescanInterval time.Duration
	scanReq        chan struct{}

	mu         sync.Mutex
	root       string
	current    types.Catalog
	version    uint64
	generation uint64
}

// NewLibraryService creates the scanner around a music root.
func NewLibraryService(root string, rescanInterval time.Duration, resolver MetadataResolver, hub Notifier, logger *log.Logger) LibraryService {
	return &libraryService{
		resolver:       resolver,
		hub:            hub,
		logger:         logger,
		rescanInterval: rescanInterval,
		scanReq:        make(chan struct{}, 1),
		root:           root,
	}
}

func (s *libraryService) Current() types.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *libraryService) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *libraryService) SetRoot(path string) {
	s.mu.Lock()
	s.root = path
	s.generation++
	s.mu.Unlock()
	s.RequestScan()
}

func (s *libraryService) RequestScan() {
	select {
	case s.scanReq <- struct{}{}:
	default:
		// A scan is already pending; the request coalesces.
	}
}

func (s *libraryService) Run(ctx context.Context) {
	s.runScan()

	ticker := time.NewTicker(s.rescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScan()
		case <-s.scanReq:
			s.runScan()
		}
	}
}

// runScan executes one scan pass and publishes the result, unless the root
// changed underneath it, in which case the finished catalog is discarded.
func (s *libraryService) runScan() {
	s.mu.Lock()
	root := s.root
	gen := s.generation
	s.mu.Unlock()

	started := time.Now()
	catalog := s.Scan(root)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding stale scan result", "root", root)
		return
	}
	s.version++
	catalog.Version = s.version
	s.current = catalog
	s.mu.Unlock()

	s.logger.Info("library scan complete",
		"albums", len(catalog.Albums),
		"tracks", catalog.TrackCount(),
		"elapsed", time.Since(started).Truncate(time.Millisecond))

	if s.hub != nil {
		snapshot := catalog
		s.hub.Publish(types.StateMessage{
			Topic:     types.TopicLibrary,
			Type:      "catalog",
			Catalog:   &snapshot,
			Timestamp: time.Now(),
		})
	}
}

// audioEntry is one audio file discovered during the walk.
type audioEntry struct {
	path string
	size int64
}

// Scan walks root and assembles a catalog. Per-file failures degrade to
// metadata fallbacks; only a missing or unreadable root short-circuits,
// yielding an empty catalog with a descriptive status.
func (s *libraryService) Scan(root string) types.Catalog {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return types.Catalog{Status: "music folder not found"}
	}

	audioByAlbumDir := make(map[string][]audioEntry)
	imagesByDir := make(map[string][]string)
	discDirsByAlbum := make(map[string][]string)

	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.logger.Warn("error accessing path", "path", path, "err", err)
			return nil // keep walking
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		dir := filepath.Dir(path)

		switch {
		case audioExtensions[ext]:
			albumDir := dir
			if discFolderRe.MatchString(filepath.Base(dir)) {
				albumDir = filepath.Dir(dir)
				discDirsByAlbum[albumDir] = appendUnique(discDirsByAlbum[albumDir], dir)
			}
			audioByAlbumDir[albumDir] = append(audioByAlbumDir[albumDir], audioEntry{path: path, size: info.Size()})
		case imageExtensions[ext]:
			imagesByDir[dir] = append(imagesByDir[dir], path)
		}
		return nil
	})

	// Lexicographic order inside each tier makes artwork selection stable
	// across filesystems.
	for dir := range imagesByDir {
		sort.Strings(imagesByDir[dir])
	}
	for dir := range discDirsByAlbum {
		sort.Strings(discDirsByAlbum[dir])
	}

	albums := make([]types.Album, 0, len(audioByAlbumDir))
	for albumDir, entries := range audioByAlbumDir {
		albums = append(albums, s.buildAlbum(albumDir, entries, imagesByDir, discDirsByAlbum[albumDir]))
	}

	sort.Slice(albums, func(i, j int) bool {
		ni, nj := strings.ToLower(albums[i].Name), strings.ToLower(albums[j].Name)
		if ni != nj {
			return ni < nj
		}
		return albums[i].FolderPath < albums[j].FolderPath
	})

	status := "no music found"
	if len(albums) > 0 {
		total := 0
		for _, a := range albums {
			total += len(a.Tracks)
		}
		status = fmt.Sprintf("%d albums, %d tracks", len(albums), total)
	}

	return types.Catalog{Albums: albums, Status: status}
}

// buildAlbum assembles one album from the files grouped under albumDir.
func (s *libraryService) buildAlbum(albumDir string, entries []audioEntry, imagesByDir map[string][]string, discDirs []string) types.Album {
	name := filepath.Base(albumDir)
	artist := artistFromFolderName(name)
	artwork := resolveArtwork(albumDir, imagesByDir, discDirs)

	tracks := make([]types.Track, 0, len(entries))
	for _, entry := range entries {
		tags, quality := s.resolver.Resolve(entry.path)

		trackArtist := tags.Artist
		if trackArtist == "" {
			trackArtist = artist
		}

		tracks = append(tracks, types.Track{
			ID:          stableID(entry.path),
			Title:       tags.Title,
			Artist:      trackArtist,
			AlbumName:   name,
			Path:        entry.path,
			TrackNum:    tags.TrackNum,
			Duration:    tags.Duration,
			ArtworkPath: artwork,
			Quality:     quality,
		})
	}

	// Track number ascending with unknown (0) last, then title ascending.
	sort.Slice(tracks, func(i, j int) bool {
		ti, tj := tracks[i], tracks[j]
		if ti.TrackNum != tj.TrackNum {
			if ti.TrackNum == 0 {
				return false
			}
			if tj.TrackNum == 0 {
				return true
			}
			return ti.TrackNum < tj.TrackNum
		}
		return strings.ToLower(ti.Title) < strings.ToLower(tj.Title)
	})

	format := dominantFormat(tracks)

	return types.Album{
		ID:          stableID(albumDir),
		Name:        name,
		Artist:      artist,
		FolderPath:  albumDir,
		ArtworkPath: artwork,
		Tracks:      tracks,
		Format:      format,
		Lossless:    losslessFormats[format],
	}
}

// artistFromFolderName splits "Artist - Album" folder names; folders
// without the separator yield the whole name.
func artistFromFolderName(name string) string {
	if segments := strings.SplitN(name, " - ", 2); len(segments) == 2 {
		return strings.TrimSpace(segments[0])
	}
	return name
}

// resolveArtwork picks album art with strict precedence: a preferred
// filename in the album folder, then any image inside a disc subfolder,
// then any image in the album folder. Within a tier, lexicographic
// filename order breaks ties.
func resolveArtwork(albumDir string, imagesByDir map[string][]string, discDirs []string) string {
	albumImages := imagesByDir[albumDir]

	for _, preferred := range artworkNames {
		for _, img := range albumImages {
			if strings.ToLower(filepath.Base(img)) == preferred {
				return img
			}
		}
	}

	for _, discDir := range discDirs {
		if imgs := imagesByDir[discDir]; len(imgs) > 0 {
			return imgs[0]
		}
	}

	if len(albumImages) > 0 {
		return albumImages[0]
	}
	return ""
}

// dominantFormat returns the most frequent extension among tracks, ties
// broken by first appearance.
func dominantFormat(tracks []types.Track) string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, t := range tracks {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(t.Path)), ".")
		counts[ext]++
		if _, ok := firstSeen[ext]; !ok {
			firstSeen[ext] = i
		}
	}

	best := ""
	for ext, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && firstSeen[ext] < firstSeen[best]) {
			best = ext
		}
	}
	return best
}

// stableID derives a deterministic id from a filesystem path, so rescans
// of an unchanged tree produce identical ids.
func stableID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String()
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}

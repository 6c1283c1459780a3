package services

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"
	"github.com/go-flac/go-flac"
	"github.com/tcolgate/mp3"

	"harmonia/types"
)

const megabyte = 1024 * 1024

// TrackTags holds the descriptive metadata extracted from a file's tags,
// with filename-derived fallbacks for anything the tags are missing.
type TrackTags struct {
	Title    string
	Artist   string
	Album    string
	TrackNum int
	Duration float64 // seconds, 0 = unknown
}

// MetadataResolver resolves per-file metadata and audio quality. It never
// returns an error: any extraction failure degrades to filename parsing
// for tags and the size-based estimation table for quality.
type MetadataResolver interface {
	Resolve(path string) (TrackTags, types.AudioQuality)
}

type metadataResolver struct {
	logger *log.Logger
}

// NewMetadataResolver creates the production resolver.
func NewMetadataResolver(logger *log.Logger) MetadataResolver {
	return &metadataResolver{logger: logger}
}

// Resolve reads tags and stream info from the file, degrading piecewise:
// tag failure falls back to filename parsing, stream-probe failure falls
// back to the estimation table with IsEstimated set.
func (r *metadataResolver) Resolve(path string) (TrackTags, types.AudioQuality) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	file, err := os.Open(path)
	if err != nil {
		r.logger.Warn("could not open audio file", "path", path, "err", err)
		return tagsFromPath(path), estimateQuality(ext, size)
	}
	defer file.Close()

	tags := r.readTags(file, path)

	quality, duration, err := probeStreamInfo(file, path, ext, size)
	if err != nil {
		r.logger.Debug("stream probe failed, estimating quality", "path", path, "err", err)
		quality = estimateQuality(ext, size)
	}
	if tags.Duration == 0 && duration > 0 {
		tags.Duration = duration
	}

	return tags, quality
}

// readTags extracts descriptive tags, filling gaps from the file path.
func (r *metadataResolver) readTags(file *os.File, path string) TrackTags {
	tags := TrackTags{}

	if _, err := file.Seek(0, io.SeekStart); err == nil {
		if meta, err := tag.ReadFrom(file); err == nil {
			tags.Title = meta.Title()
			tags.Artist = meta.Artist()
			tags.Album = meta.Album()
			tags.TrackNum, _ = meta.Track()
		} else {
			r.logger.Debug("could not parse tags", "path", path, "err", err)
		}
	}

	fallback := tagsFromPath(path)
	if tags.Title == "" {
		tags.Title = fallback.Title
	}
	if tags.Artist == "" {
		tags.Artist = fallback.Artist
	}
	if tags.Album == "" {
		tags.Album = fallback.Album
	}
	if tags.TrackNum == 0 {
		tags.TrackNum = fallback.TrackNum
	}

	return tags
}

var trackPrefixRe = regexp.MustCompile(`^(\d+)[\.\-\s]+(.+)`)

// tagsFromPath derives metadata from the file path alone, expecting the
// common Artist/Album/NN - Title layout.
func tagsFromPath(path string) TrackTags {
	tags := TrackTags{}

	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) >= 3 {
		tags.Artist = parts[len(parts)-3]
	}
	if len(parts) >= 2 {
		tags.Album = parts[len(parts)-2]
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if matches := trackPrefixRe.FindStringSubmatch(title); len(matches) > 2 {
		title = matches[2]
		if trackNum, err := strconv.Atoi(matches[1]); err == nil {
			tags.TrackNum = trackNum
		}
	}
	tags.Title = title

	return tags
}

// probeStreamInfo attempts exact quality extraction for formats we can
// parse. Unsupported extensions and parse failures return an error so the
// caller falls back to estimation.
func probeStreamInfo(file *os.File, path, ext string, size int64) (types.AudioQuality, float64, error) {
	switch ext {
	case "flac":
		return probeFLAC(path, size)
	case "mp3":
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return types.AudioQuality{}, 0, err
		}
		return probeMP3(file, size)
	default:
		return types.AudioQuality{}, 0, fmt.Errorf("no exact probe for .%s", ext)
	}
}

// probeFLAC decodes the mandatory STREAMINFO metadata block (34 bytes at a
// fixed layout) without touching any audio frames.
func probeFLAC(path string, size int64) (types.AudioQuality, float64, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return types.AudioQuality{}, 0, err
	}

	var info []byte
	for _, block := range f.Meta {
		if block.Type == flac.StreamInfo {
			info = block.Data
			break
		}
	}
	if len(info) < 34 {
		return types.AudioQuality{}, 0, fmt.Errorf("missing STREAMINFO block")
	}

	sampleRate := int(info[10])<<12 | int(info[11])<<4 | int(info[12])>>4
	channels := int(info[12]>>1)&0x07 + 1
	bitDepth := int(info[12]&0x01)<<4 | int(info[13])>>4 + 1
	totalSamples := uint64(info[13]&0x0F)<<32 | uint64(binary.BigEndian.Uint32(info[14:18]))

	if sampleRate == 0 {
		return types.AudioQuality{}, 0, fmt.Errorf("invalid sample rate")
	}

	duration := float64(totalSamples) / float64(sampleRate)
	bitrate := 0
	if duration > 0 {
		bitrate = int(float64(size*8) / duration / 1000)
	}

	return types.AudioQuality{
		Format:       "flac",
		BitrateKbps:  bitrate,
		SampleRateHz: sampleRate,
		BitDepth:     bitDepth,
		Channels:     channels,
		FileSize:     size,
		IsEstimated:  false,
	}, duration, nil
}

// probeMP3 reads the first frame header for bitrate and sample rate, then
// walks the remaining frames to sum up an exact duration.
func probeMP3(file *os.File, size int64) (types.AudioQuality, float64, error) {
	decoder := mp3.NewDecoder(file)

	var frame mp3.Frame
	var skipped int
	if err := decoder.Decode(&frame, &skipped); err != nil {
		return types.AudioQuality{}, 0, err
	}

	header := frame.Header()
	quality := types.AudioQuality{
		Format:       "mp3",
		BitrateKbps:  int(header.BitRate()) / 1000,
		SampleRateHz: int(header.SampleRate()),
		Channels:     2,
		FileSize:     size,
		IsEstimated:  false,
	}

	duration := frame.Duration().Seconds()
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			break
		}
		duration += frame.Duration().Seconds()
	}

	return quality, duration, nil
}

// estimateQuality is the last-resort heuristic keyed by extension and file
// size. Results are always flagged IsEstimated.
func estimateQuality(ext string, size int64) types.AudioQuality {
	quality := types.AudioQuality{
		Format:      ext,
		FileSize:    size,
		Channels:    2,
		IsEstimated: true,
	}

	switch ext {
	case "flac":
		switch {
		case size > 100*megabyte:
			quality.SampleRateHz, quality.BitDepth = 192000, 24
		case size > 50*megabyte:
			quality.SampleRateHz, quality.BitDepth = 96000, 24
		case size > 30*megabyte:
			quality.SampleRateHz, quality.BitDepth = 48000, 24
		default:
			quality.SampleRateHz, quality.BitDepth = 44100, 16
		}
		quality.BitrateKbps = quality.BitDepth * quality.SampleRateHz * 2 / 1000

	case "mp3":
		switch {
		case size > 8*megabyte:
			quality.BitrateKbps = 320
		case size > 6*megabyte:
			quality.BitrateKbps = 256
		case size > 4*megabyte:
			quality.BitrateKbps = 192
		default:
			quality.BitrateKbps = 128
		}
		quality.SampleRateHz = 44100

	case "wav":
		quality.SampleRateHz, quality.BitDepth = 44100, 16
		quality.BitrateKbps = quality.BitDepth * quality.SampleRateHz * 2 / 1000

	default:
		// Lossy containers we cannot probe (m4a, aac, ogg).
		quality.SampleRateHz = 44100
		quality.BitrateKbps = 256
	}

	return quality
}

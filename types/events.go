package types

import "time"

// Subscription topics for state-change notifications.
const (
	TopicLibrary   = "library"
	TopicDownloads = "downloads"
	TopicPlayer    = "player"
	TopicAll       = "all"
)

// StateMessage is a push notification carrying an immutable state snapshot.
// Exactly one payload field is set, matching the topic.
type StateMessage struct {
	Topic     string             `json:"topic"`
	Type      string             `json:"type"` // "catalog", "progress", "queue", "stats"
	Catalog   *Catalog           `json:"catalog,omitempty"`
	Progress  map[string]float64 `json:"progress,omitempty"` // album name -> percentDone
	Queue     *QueueState        `json:"queue,omitempty"`
	Stats     *Stats             `json:"stats,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Stats is the persisted counters snapshot.
type Stats struct {
	PlayCount       int64 `json:"playCount"`
	DownloadedBytes int64 `json:"downloadedBytes"`
}

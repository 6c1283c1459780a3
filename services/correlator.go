package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"harmonia/daemon"
	"harmonia/types"
)

// Correlator polls the transfer daemon and maps active transfers onto
// catalog albums by approximate name matching. Completions are credited to
// the stats store exactly once and trigger a library rescan.
type Correlator interface {
	// Progress returns a copy of the latest album-name -> percentDone map.
	Progress() map[string]float64
	// Run polls until ctx is cancelled. Poll failures are transient: the
	// cycle is skipped and retried on the next tick.
	Run(ctx context.Context)
}

type correlator struct {
	client     daemon.Client
	stats      StatsStore
	library    LibraryService
	hub        Notifier
	logger     *log.Logger
	interval   time.Duration
	rpcTimeout time.Duration

	mu       sync.Mutex
	progress map[string]float64
	inFlight bool
}

// NewCorrelator wires the correlator to its collaborators.
func NewCorrelator(client daemon.Client, stats StatsStore, library LibraryService, hub Notifier, logger *log.Logger, interval, rpcTimeout time.Duration) Correlator {
	return &correlator{
		client:     client,
		stats:      stats,
		library:    library,
		hub:        hub,
		logger:     logger,
		interval:   interval,
		rpcTimeout: rpcTimeout,
		progress:   make(map[string]float64),
	}
}

func (c *correlator) Progress() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make(map[string]float64, len(c.progress))
	for k, v := range c.progress {
		snapshot[k] = v
	}
	return snapshot
}

func (c *correlator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// poll runs one correlation cycle. A tick that arrives while the previous
// cycle is still in flight is skipped, never queued.
func (c *correlator) poll(ctx context.Context) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	rpcCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	transfers, err := c.client.ListTransfers(rpcCtx)
	cancel()
	if err != nil {
		// Transient; background polling never surfaces errors to users.
		c.logger.Debug("transfer poll failed", "err", err)
		return
	}

	c.cycle(transfers)
}

// cycle applies one batch of transfer observations: credit fresh
// completions, then correlate the rest to albums.
func (c *correlator) cycle(transfers []types.Transfer) {
	catalog := c.library.Current()
	progress := make(map[string]float64)
	rescan := false

	for _, t := range transfers {
		if t.Done() {
			credited, err := c.stats.CreditTransfer(t.ID, t.TotalSize)
			if err != nil {
				c.logger.Warn("failed to credit transfer", "id", t.ID, "err", err)
				continue
			}
			if credited {
				c.logger.Info("download complete", "name", t.Name, "bytes", t.TotalSize)
				rescan = true
			}
			// Completed transfers drop out of the progress map.
			continue
		}

		if album, ok := matchAlbum(catalog, t.Name); ok {
			progress[album.Name] = t.PercentDone
		}
		// Transfers matching no album carry no progress entry; not an error.
	}

	c.mu.Lock()
	c.progress = progress
	c.mu.Unlock()

	if rescan {
		c.library.RequestScan()
	}

	if c.hub != nil {
		snapshot := c.Progress()
		c.hub.Publish(types.StateMessage{
			Topic:     types.TopicDownloads,
			Type:      "progress",
			Progress:  snapshot,
			Timestamp: time.Now(),
		})
	}
}

// matchAlbum finds the first album in catalog order whose name contains
// the transfer name or vice versa, case-insensitively. An approximation:
// overlapping album names can mis-attribute progress, which is accepted.
func matchAlbum(catalog types.Catalog, transferName string) (types.Album, bool) {
	needle := strings.ToLower(transferName)
	for _, album := range catalog.Albums {
		name := strings.ToLower(album.Name)
		if name == "" {
			continue
		}
		if strings.Contains(needle, name) || strings.Contains(name, needle) {
			return album, true
		}
	}
	return types.Album{}, false
}

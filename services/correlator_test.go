package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harmonia/types"
)

// fakeDaemonClient serves a canned transfer list.
type fakeDaemonClient struct {
	transfers []types.Transfer
	err       error
	calls     int
}

func (f *fakeDaemonClient) ListTransfers(context.Context) ([]types.Transfer, error) {
	f.calls++
	return f.transfers, f.err
}
func (f *fakeDaemonClient) AddMagnet(context.Context, string) error           { return nil }
func (f *fakeDaemonClient) RemoveTransfer(context.Context, int64, bool) error { return nil }

// blockingDaemonClient parks ListTransfers until released so overlapping
// polls can be observed.
type blockingDaemonClient struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingDaemonClient) ListTransfers(context.Context) ([]types.Transfer, error) {
	b.calls.Add(1)
	b.entered <- struct{}{}
	<-b.release
	return nil, nil
}
func (b *blockingDaemonClient) AddMagnet(context.Context, string) error           { return nil }
func (b *blockingDaemonClient) RemoveTransfer(context.Context, int64, bool) error { return nil }

// fakeStats keeps stats in memory with the same exactly-once contract as
// the sqlite store.
type fakeStats struct {
	mu       sync.Mutex
	plays    int64
	bytes    int64
	credited map[int64]bool
}

func newFakeStats() *fakeStats {
	return &fakeStats{credited: make(map[int64]bool)}
}

func (f *fakeStats) AddPlay() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeStats) CreditTransfer(id int64, bytes int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credited[id] {
		return false, nil
	}
	f.credited[id] = true
	f.bytes += bytes
	return true, nil
}

func (f *fakeStats) IsCredited(id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credited[id], nil
}

func (f *fakeStats) Snapshot() (types.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.Stats{PlayCount: f.plays, DownloadedBytes: f.bytes}, nil
}

func (f *fakeStats) Close() error { return nil }

// fakeLibrary serves a fixed catalog and counts rescan requests.
type fakeLibrary struct {
	mu           sync.Mutex
	catalog      types.Catalog
	scanRequests int
}

func (f *fakeLibrary) Current() types.Catalog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalog
}

func (f *fakeLibrary) RequestScan() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanRequests++
}

func (f *fakeLibrary) SetRoot(string)            {}
func (f *fakeLibrary) Root() string              { return "" }
func (f *fakeLibrary) Scan(string) types.Catalog { return f.Current() }
func (f *fakeLibrary) Run(context.Context)       {}

func (f *fakeLibrary) requested() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanRequests
}

// fakeNotifier records published messages.
type fakeNotifier struct {
	mu   sync.Mutex
	msgs []types.StateMessage
}

func (f *fakeNotifier) Publish(msg types.StateMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeNotifier) published() []types.StateMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.StateMessage(nil), f.msgs...)
}

func testCatalog() types.Catalog {
	return types.Catalog{
		Albums: []types.Album{
			{ID: "a1", Name: "OK Computer", Artist: "Radiohead"},
			{ID: "a2", Name: "Blue Train", Artist: "John Coltrane"},
		},
		Status: "2 albums, 0 tracks",
	}
}

func newTestCorrelator(client *fakeDaemonClient, stats *fakeStats, library *fakeLibrary, hub Notifier) *correlator {
	c := NewCorrelator(client, stats, library, hub, log.New(io.Discard), time.Second, time.Second)
	return c.(*correlator)
}

// TestCorrelatorMatchesTransfersToAlbums verifies active transfers map to
// catalog albums by approximate name match
func TestCorrelatorMatchesTransfersToAlbums(t *testing.T) {
	library := &fakeLibrary{catalog: testCatalog()}
	c := newTestCorrelator(&fakeDaemonClient{}, newFakeStats(), library, nil)

	c.cycle([]types.Transfer{
		{ID: 1, Name: "Radiohead - OK Computer [FLAC 24bit]", PercentDone: 0.42, Status: types.TransferDownload},
		{ID: 2, Name: "Totally Unrelated Rip", PercentDone: 0.9, Status: types.TransferDownload},
	})

	progress := c.Progress()
	assert.Equal(t, 0.42, progress["OK Computer"])
	assert.Len(t, progress, 1, "unmatched transfers carry no progress entry")
}

// TestCorrelatorMatchIsCaseInsensitive verifies matching ignores case in
// both directions
func TestCorrelatorMatchIsCaseInsensitive(t *testing.T) {
	catalog := testCatalog()

	album, ok := matchAlbum(catalog, "RADIOHEAD - ok computer (1997)")
	require.True(t, ok)
	assert.Equal(t, "OK Computer", album.Name)

	// Transfer name shorter than the album name still matches.
	album, ok = matchAlbum(catalog, "blue train")
	require.True(t, ok)
	assert.Equal(t, "Blue Train", album.Name)

	_, ok = matchAlbum(catalog, "something else entirely")
	assert.False(t, ok)
}

// TestCorrelatorCreditsCompletionExactlyOnce verifies repeated polls of a
// finished transfer credit it a single time
func TestCorrelatorCreditsCompletionExactlyOnce(t *testing.T) {
	library := &fakeLibrary{catalog: testCatalog()}
	stats := newFakeStats()
	c := newTestCorrelator(&fakeDaemonClient{}, stats, library, nil)

	done := []types.Transfer{
		{ID: 7, Name: "Radiohead - OK Computer", PercentDone: 1.0, TotalSize: 500_000_000, Status: types.TransferSeed},
	}

	for i := 0; i < 5; i++ {
		c.cycle(done)
	}

	snapshot, err := stats.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(500_000_000), snapshot.DownloadedBytes)
	assert.Equal(t, 1, library.requested(), "rescan requested once, not per poll")
}

// TestCorrelatorDropsCompletedFromProgress verifies finished transfers
// disappear from the progress map
func TestCorrelatorDropsCompletedFromProgress(t *testing.T) {
	library := &fakeLibrary{catalog: testCatalog()}
	c := newTestCorrelator(&fakeDaemonClient{}, newFakeStats(), library, nil)

	c.cycle([]types.Transfer{
		{ID: 1, Name: "OK Computer", PercentDone: 0.5, Status: types.TransferDownload},
	})
	require.Len(t, c.Progress(), 1)

	c.cycle([]types.Transfer{
		{ID: 1, Name: "OK Computer", PercentDone: 1.0, TotalSize: 100, Status: types.TransferSeed},
	})
	assert.Empty(t, c.Progress())
}

// TestCorrelatorReplacesProgressWholesale verifies each cycle's snapshot
// fully replaces the previous one
func TestCorrelatorReplacesProgressWholesale(t *testing.T) {
	library := &fakeLibrary{catalog: testCatalog()}
	c := newTestCorrelator(&fakeDaemonClient{}, newFakeStats(), library, nil)

	c.cycle([]types.Transfer{
		{ID: 1, Name: "OK Computer", PercentDone: 0.3, Status: types.TransferDownload},
	})
	c.cycle(nil)

	assert.Empty(t, c.Progress(), "vanished transfers leave no stale entries")
}

// TestCorrelatorPublishesProgressSnapshots verifies each cycle pushes a
// downloads-topic message
func TestCorrelatorPublishesProgressSnapshots(t *testing.T) {
	library := &fakeLibrary{catalog: testCatalog()}
	hub := &fakeNotifier{}
	c := newTestCorrelator(&fakeDaemonClient{}, newFakeStats(), library, hub)

	c.cycle([]types.Transfer{
		{ID: 1, Name: "OK Computer", PercentDone: 0.25, Status: types.TransferDownload},
	})

	msgs := hub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, types.TopicDownloads, msgs[0].Topic)
	assert.Equal(t, "progress", msgs[0].Type)
	assert.Equal(t, 0.25, msgs[0].Progress["OK Computer"])
}

// TestCorrelatorPollFailureKeepsLastSnapshot verifies a daemon outage
// does not wipe the last known progress
func TestCorrelatorPollFailureKeepsLastSnapshot(t *testing.T) {
	library := &fakeLibrary{catalog: testCatalog()}
	client := &fakeDaemonClient{}
	c := newTestCorrelator(client, newFakeStats(), library, nil)

	c.cycle([]types.Transfer{
		{ID: 1, Name: "OK Computer", PercentDone: 0.6, Status: types.TransferDownload},
	})

	client.err = fmt.Errorf("connection refused")
	c.poll(context.Background())

	assert.Equal(t, 0.6, c.Progress()["OK Computer"])
}

// TestCorrelatorSkipsOverlappingPolls verifies a tick arriving while a
// cycle is still in flight returns without a second RPC, and that polling
// resumes once the slow cycle finishes
func TestCorrelatorSkipsOverlappingPolls(t *testing.T) {
	client := &blockingDaemonClient{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	library := &fakeLibrary{catalog: testCatalog()}
	c := NewCorrelator(client, newFakeStats(), library, nil, log.New(io.Discard), time.Second, time.Minute).(*correlator)

	done := make(chan struct{})
	go func() {
		c.poll(context.Background())
		close(done)
	}()
	<-client.entered

	// The first poll is parked inside the RPC; this one must bail out.
	c.poll(context.Background())
	assert.Equal(t, int32(1), client.calls.Load())

	close(client.release)
	<-done

	c.poll(context.Background())
	assert.Equal(t, int32(2), client.calls.Load())
}

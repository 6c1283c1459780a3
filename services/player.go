package services

import (
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"harmonia/types"
)

// AudioEngine is the external playback boundary. Play carries a session id
// that the engine must echo back on its completion callback, so stale or
// duplicated completion signals can be told apart from live ones.
type AudioEngine interface {
	Play(path string, session uint64) error
	Pause()
	Resume()
	Stop()
	Seek(position float64)
	SetVolume(v float64)
}

// PlayerEngine owns the playback queue state machine: current track,
// working and original order, shuffle and repeat modes. All operations on
// an empty queue are no-ops, never errors.
type PlayerEngine interface {
	Load(track types.Track, queue []types.Track, shuffle bool)
	TogglePlayPause()
	Next()
	Previous()
	ToggleShuffle()
	ToggleRepeat()
	Seek(position float64)
	SetVolume(v float64)
	// HandleCompletion is invoked by the audio engine when a track finishes
	// naturally. Completions for any session other than the current one
	// are ignored, so duplicates never double-advance.
	HandleCompletion(session uint64)
	State() types.QueueState
}

type playerEngine struct {
	audio  AudioEngine
	stats  StatsStore
	hub    Notifier
	logger *log.Logger
	rng    *rand.Rand

	mu            sync.Mutex
	originalOrder []types.Track
	workingOrder  []types.Track
	currentIndex  int
	state         types.PlayerState
	shuffled      bool
	repeat        types.RepeatMode
	volume        float64
	session       uint64
}

// NewPlayerEngine creates an idle engine.
func NewPlayerEngine(audio AudioEngine, stats StatsStore, hub Notifier, logger *log.Logger) PlayerEngine {
	return &playerEngine{
		audio:  audio,
		stats:  stats,
		hub:    hub,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		state:  types.PlayerIdle,
		repeat: types.RepeatOff,
		volume: 1.0,
	}
}

func (p *playerEngine) Load(track types.Track, queue []types.Track, shuffle bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(queue) == 0 {
		queue = []types.Track{track}
	}

	p.originalOrder = make([]types.Track, len(queue))
	copy(p.originalOrder, queue)

	if shuffle {
		p.workingOrder = p.shuffledCopy(p.originalOrder)
		// The selected track leads the shuffled order; the rest keeps the
		// permutation it got.
		for i, t := range p.workingOrder {
			if t.ID == track.ID {
				p.workingOrder[0], p.workingOrder[i] = p.workingOrder[i], p.workingOrder[0]
				break
			}
		}
		p.currentIndex = 0
		p.shuffled = true
	} else {
		p.workingOrder = make([]types.Track, len(p.originalOrder))
		copy(p.workingOrder, p.originalOrder)
		p.currentIndex = indexOf(p.workingOrder, track.ID)
		if p.currentIndex < 0 {
			p.currentIndex = 0
		}
		p.shuffled = false
	}

	p.play()
}

func (p *playerEngine) TogglePlayPause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case types.PlayerPlaying:
		p.audio.Pause()
		p.state = types.PlayerPaused
	case types.PlayerPaused:
		p.audio.Resume()
		p.state = types.PlayerPlaying
	default:
		return // Idle: nothing to toggle
	}
	p.publish()
}

func (p *playerEngine) Next() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
}

// advance implements next() semantics; callers hold the lock.
func (p *playerEngine) advance() {
	if len(p.workingOrder) == 0 {
		return
	}

	if p.repeat == types.RepeatOne {
		p.play() // restart from the beginning, index unchanged
		return
	}

	if p.currentIndex+1 < len(p.workingOrder) {
		p.currentIndex++
		p.play()
		return
	}

	if p.repeat == types.RepeatAll {
		p.currentIndex = 0
		p.play()
		return
	}

	// End of queue with repeat off: stay on the last track, stop
	// advancing.
	p.audio.Stop()
	p.state = types.PlayerPaused
	p.publish()
}

func (p *playerEngine) Previous() {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.workingOrder)
	if n == 0 {
		return
	}

	// Always wraps, regardless of repeat mode.
	p.currentIndex = (p.currentIndex - 1 + n) % n
	p.play()
}

func (p *playerEngine) ToggleShuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workingOrder) == 0 {
		return
	}

	current := p.workingOrder[p.currentIndex]

	if !p.shuffled {
		p.workingOrder = p.shuffledCopy(p.originalOrder)
		// Keep the playing track at its current position in the new order.
		if i := indexOf(p.workingOrder, current.ID); i >= 0 && i != p.currentIndex {
			p.workingOrder[p.currentIndex], p.workingOrder[i] = p.workingOrder[i], p.workingOrder[p.currentIndex]
		}
		p.shuffled = true
	} else {
		p.workingOrder = make([]types.Track, len(p.originalOrder))
		copy(p.workingOrder, p.originalOrder)
		p.currentIndex = indexOf(p.workingOrder, current.ID)
		if p.currentIndex < 0 {
			p.currentIndex = 0
		}
		p.shuffled = false
	}
	p.publish()
}

func (p *playerEngine) ToggleRepeat() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = p.repeat.Next()
	p.publish()
}

func (p *playerEngine) Seek(position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == types.PlayerIdle {
		return
	}
	if position < 0 {
		position = 0
	}
	p.audio.Seek(position)
}

func (p *playerEngine) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.volume = v
	p.audio.SetVolume(v)
	p.publish()
}

func (p *playerEngine) HandleCompletion(session uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if session != p.session {
		// Duplicate or stale completion signal; already advanced.
		return
	}
	p.advance()
}

func (p *playerEngine) State() types.QueueState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// play starts the track at currentIndex under a fresh session; callers
// hold the lock.
func (p *playerEngine) play() {
	track := p.workingOrder[p.currentIndex]
	p.session++

	if err := p.audio.Play(track.Path, p.session); err != nil {
		p.logger.Warn("failed to start playback", "track", track.Title, "err", err)
		p.state = types.PlayerPaused
		p.publish()
		return
	}

	p.state = types.PlayerPlaying
	if p.stats != nil {
		if err := p.stats.AddPlay(); err != nil {
			p.logger.Warn("failed to record play", "err", err)
		}
	}
	p.publish()
}

func (p *playerEngine) shuffledCopy(tracks []types.Track) []types.Track {
	shuffled := make([]types.Track, len(tracks))
	copy(shuffled, tracks)
	p.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// snapshot builds the immutable queue state; callers hold the lock.
func (p *playerEngine) snapshot() types.QueueState {
	state := types.QueueState{
		Index:    p.currentIndex,
		QueueLen: len(p.workingOrder),
		State:    p.state,
		Shuffled: p.shuffled,
		Repeat:   p.repeat,
		Volume:   p.volume,
	}
	if len(p.workingOrder) > 0 && p.currentIndex < len(p.workingOrder) {
		current := p.workingOrder[p.currentIndex]
		state.Current = &current
	}
	return state
}

// publish pushes a state snapshot to subscribers; callers hold the lock.
func (p *playerEngine) publish() {
	if p.hub == nil {
		return
	}
	snapshot := p.snapshot()
	p.hub.Publish(types.StateMessage{
		Topic:     types.TopicPlayer,
		Type:      "queue",
		Queue:     &snapshot,
		Timestamp: time.Now(),
	})
}

func indexOf(tracks []types.Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// nopAudioEngine discards all commands. Used when no audio backend is
// wired in (the real engine lives in the embedding application).
type nopAudioEngine struct{}

// NopAudioEngine returns an AudioEngine that does nothing.
func NopAudioEngine() AudioEngine { return nopAudioEngine{} }

func (nopAudioEngine) Play(string, uint64) error { return nil }
func (nopAudioEngine) Pause()                    {}
func (nopAudioEngine) Resume()                   {}
func (nopAudioEngine) Stop()                     {}
func (nopAudioEngine) Seek(float64)              {}
func (nopAudioEngine) SetVolume(float64)         {}

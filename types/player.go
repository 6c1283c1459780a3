package types

// PlayerState is the playback engine's top-level state.
type PlayerState string

const (
	PlayerIdle    PlayerState = "idle"
	PlayerPlaying PlayerState = "playing"
	PlayerPaused  PlayerState = "paused"
)

// RepeatMode controls what happens when the queue reaches its end.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// Next cycles Off -> All -> One -> Off.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// QueueState is an immutable snapshot of the playback queue, published to
// subscribers after every mutation.
type QueueState struct {
	Current  *Track      `json:"current,omitempty"`
	Index    int         `json:"index"`
	QueueLen int         `json:"queueLen"`
	State    PlayerState `json:"state"`
	Shuffled bool        `json:"shuffled"`
	Repeat   RepeatMode  `json:"repeat"`
	Volume   float64     `json:"volume"`
}

package audiosource

// State is one phase of a playback attempt.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
	StateError   State = "error"

	// Terminal error resolutions.
	StateFallbackEmbed State = "fallback_embed"
	StateNoSource      State = "no_source"
)

// Event is a named trigger for a playback transition.
type Event string

const (
	EventMetadataLoaded Event = "metadata_loaded"
	EventPlay           Event = "play"
	EventPause          Event = "pause"
	EventSeek           Event = "seek"
	EventTrackEnded     Event = "track_ended"
	EventMediaError     Event = "media_error"
)

// Playback is the explicit state machine driving one playback attempt.
// Transitions are triggered by one named event each, so the fallback chain
// (direct, embed, no-source) is testable without a media element.
//
// The server never drives this machine itself; the media element lives in the
// client, which implements these transitions against the Source returned by
// the chapter source endpoint. It is kept here as the contract model for that
// behavior.
type Playback struct {
	source Source
	state  State
}

// NewPlayback starts a playback attempt for src in the Loading state.
func NewPlayback(src Source) *Playback {
	return &Playback{source: src, state: StateLoading}
}

// State returns the current phase.
func (p *Playback) State() State { return p.state }

// Source returns the resolved source this attempt plays.
func (p *Playback) Source() Source { return p.source }

// Handle applies ev and returns the resulting state. Unrecognized
// event/state combinations leave the state unchanged.
func (p *Playback) Handle(ev Event) State {
	switch ev {
	case EventMetadataLoaded:
		if p.state == StateLoading {
			p.state = StateReady
		}
	case EventPlay:
		switch p.state {
		case StateReady, StatePaused, StateEnded:
			p.state = StatePlaying
		}
	case EventPause:
		if p.state == StatePlaying {
			p.state = StatePaused
		}
	case EventSeek:
		// Seeking keeps the current playing/paused phase.
	case EventTrackEnded:
		if p.state == StatePlaying {
			p.state = StateEnded
		}
	case EventMediaError:
		switch p.state {
		case StateLoading, StatePlaying:
			p.state = StateError
		}
	}
	return p.state
}

// Resolution decides where an errored attempt lands: a third-party source
// with an embed URL degrades to the embedded viewer, anything else has no
// playable source left. For non-error states it returns the state itself.
func (p *Playback) Resolution() State {
	if p.state != StateError {
		return p.state
	}
	if p.source.ThirdPartyHost && p.source.EmbedURL != "" {
		return StateFallbackEmbed
	}
	return StateNoSource
}

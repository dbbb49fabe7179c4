// Package speech defines the capability interfaces the interview engine
// consumes for audio I/O: output synthesis, input recognition, and the
// channel-presence signal. Implementations live elsewhere (see gateway);
// the core never talks to a speech engine directly.
package speech

import (
	"context"
	"time"
)

// Outcome distinguishes how a listening window ended. Silence is a valid
// result, not an error; failure means the recognizer itself broke.
type Outcome string

const (
	OutcomeSpeech  Outcome = "speech"
	OutcomeSilence Outcome = "silence"
	OutcomeFailure Outcome = "failure"
)

// ListenResult is the final result of one listening window.
type ListenResult struct {
	Text       string
	Confidence float64
	Quality    float64 // stream-level audio quality in [0,1]
	Outcome    Outcome
	Err        error // set when Outcome is OutcomeFailure
}

// Playback is a handle to an in-flight synthesis. Stop truncates
// playback, which is how barge-in is realized.
type Playback interface {
	// Done yields exactly one value: nil on completion, an error on
	// synthesis failure, or nil after Stop.
	Done() <-chan error
	Stop()
}

type VoiceConfig struct {
	Voice string
	Rate  string
	Pitch string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) (Playback, error)
}

// Capture is an open listening window. Activity carries interim
// voice-activity signals while the candidate is speaking; Result yields
// exactly one final ListenResult.
type Capture interface {
	Activity() <-chan time.Time
	Result() <-chan ListenResult
	Stop()
}

type Recognizer interface {
	Listen(ctx context.Context, maxDuration time.Duration) (Capture, error)
}

// PresenceEvent signals the candidate joining or leaving the meeting
// channel.
type PresenceEvent struct {
	Connected bool
	At        time.Time
}

type Presence interface {
	Events() <-chan PresenceEvent
}

// Package gateway implements the speech capability interfaces over a
// websocket connection to a meeting media bridge. The bridge sits inside
// the meeting, plays synthesized audio into the call, and streams
// recognition events back.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/speech"
)

// frame is the wire format in both directions.
type frame struct {
	Type          string  `json:"type"`
	Text          string  `json:"text,omitempty"`
	Voice         string  `json:"voice,omitempty"`
	Rate          string  `json:"rate,omitempty"`
	Pitch         string  `json:"pitch,omitempty"`
	MaxDurationMs int64   `json:"max_duration_ms,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Quality       float64 `json:"quality,omitempty"`
	Connected     bool    `json:"connected,omitempty"`
	Error         string  `json:"error,omitempty"`
}

const (
	frameSpeak             = "speak"
	frameStopPlayback      = "stop_playback"
	frameListen            = "listen"
	frameStopListen        = "stop_listen"
	framePlaybackDone      = "playback_done"
	framePlaybackFailed    = "playback_failed"
	frameVAD               = "vad"
	frameTranscript        = "transcript"
	frameSilence           = "silence"
	frameRecognitionFailed = "recognition_failed"
	framePresence          = "presence"
)

// Client is a websocket media-bridge client. It implements
// speech.Synthesizer, speech.Recognizer and speech.Presence. One
// playback and one capture can be active at a time, matching the
// half-duplex turn model of the engine.
type Client struct {
	conn   *websocket.Conn
	logger *zerolog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	playback *playback
	capture  *capture
	presence chan speech.PresenceEvent
	closed   bool
}

// Dial connects to the media bridge at url (ws:// or wss://).
func Dial(ctx context.Context, url string, logger *zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial media bridge %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		logger:   logger,
		presence: make(chan speech.PresenceEvent, 8),
	}

	go c.readLoop()

	logger.Info().Str("url", url).Msg("connected to media bridge")
	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// Synthesize sends the utterance to the bridge and returns a playback
// handle that resolves when the bridge reports completion or failure.
func (c *Client) Synthesize(ctx context.Context, text string, voice speech.VoiceConfig) (speech.Playback, error) {
	if text == "" {
		return nil, fmt.Errorf("empty utterance text")
	}

	p := &playback{client: c, done: make(chan error, 1)}

	c.mu.Lock()
	c.playback = p
	c.mu.Unlock()

	err := c.send(frame{
		Type:  frameSpeak,
		Text:  text,
		Voice: voice.Voice,
		Rate:  voice.Rate,
		Pitch: voice.Pitch,
	})
	if err != nil {
		c.mu.Lock()
		c.playback = nil
		c.mu.Unlock()
		return nil, err
	}

	return p, nil
}

// Listen opens a listening window on the bridge. The bridge enforces
// maxDuration on its side and reports silence as a distinct outcome.
func (c *Client) Listen(ctx context.Context, maxDuration time.Duration) (speech.Capture, error) {
	cap := &capture{
		client:   c,
		activity: make(chan time.Time, 16),
		result:   make(chan speech.ListenResult, 1),
	}

	c.mu.Lock()
	c.capture = cap
	c.mu.Unlock()

	err := c.send(frame{Type: frameListen, MaxDurationMs: maxDuration.Milliseconds()})
	if err != nil {
		c.mu.Lock()
		c.capture = nil
		c.mu.Unlock()
		return nil, err
	}

	return cap, nil
}

func (c *Client) Events() <-chan speech.PresenceEvent {
	return c.presence
}

func (c *Client) send(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write frame to media bridge: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failAll(fmt.Errorf("media bridge connection lost: %w", err))
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Error().Err(err).Msg("undecodable frame from media bridge")
			continue
		}

		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	c.mu.Lock()
	p := c.playback
	cap := c.capture
	c.mu.Unlock()

	switch f.Type {
	case framePlaybackDone:
		if p != nil {
			p.finish(nil)
		}
	case framePlaybackFailed:
		if p != nil {
			p.finish(fmt.Errorf("playback failed: %s", f.Error))
		}
	case frameVAD:
		if cap != nil {
			select {
			case cap.activity <- time.Now():
			default:
			}
		}
	case frameTranscript:
		if cap != nil {
			cap.finish(speech.ListenResult{
				Text:       f.Text,
				Confidence: f.Confidence,
				Quality:    f.Quality,
				Outcome:    speech.OutcomeSpeech,
			})
		}
	case frameSilence:
		if cap != nil {
			cap.finish(speech.ListenResult{Outcome: speech.OutcomeSilence, Quality: f.Quality})
		}
	case frameRecognitionFailed:
		if cap != nil {
			cap.finish(speech.ListenResult{
				Outcome: speech.OutcomeFailure,
				Err:     fmt.Errorf("recognition failed: %s", f.Error),
			})
		}
	case framePresence:
		select {
		case c.presence <- speech.PresenceEvent{Connected: f.Connected, At: time.Now()}:
		default:
			c.logger.Warn().Bool("connected", f.Connected).Msg("presence event dropped, channel full")
		}
	default:
		c.logger.Debug().Str("type", f.Type).Msg("ignoring unknown frame type")
	}
}

// failAll resolves any pending playback and capture when the connection
// drops, so no caller is left waiting.
func (c *Client) failAll(err error) {
	c.mu.Lock()
	p := c.playback
	cap := c.capture
	closed := c.closed
	c.mu.Unlock()

	if closed {
		err = nil
	}
	if p != nil {
		p.finish(err)
	}
	if cap != nil {
		cap.finish(speech.ListenResult{Outcome: speech.OutcomeFailure, Err: err})
	}
}

type playback struct {
	client *Client
	done   chan error
	once   sync.Once
}

func (p *playback) Done() <-chan error { return p.done }

func (p *playback) Stop() {
	_ = p.client.send(frame{Type: frameStopPlayback})
	p.finish(nil)
}

func (p *playback) finish(err error) {
	p.once.Do(func() {
		p.done <- err
		p.client.mu.Lock()
		if p.client.playback == p {
			p.client.playback = nil
		}
		p.client.mu.Unlock()
	})
}

type capture struct {
	client   *Client
	activity chan time.Time
	result   chan speech.ListenResult
	once     sync.Once
}

func (c *capture) Activity() <-chan time.Time         { return c.activity }
func (c *capture) Result() <-chan speech.ListenResult { return c.result }

func (c *capture) Stop() {
	_ = c.client.send(frame{Type: frameStopListen})
	c.finish(speech.ListenResult{Outcome: speech.OutcomeSilence})
}

func (c *capture) finish(result speech.ListenResult) {
	c.once.Do(func() {
		c.result <- result
		c.client.mu.Lock()
		if c.client.capture == c {
			c.client.capture = nil
		}
		c.client.mu.Unlock()
	})
}

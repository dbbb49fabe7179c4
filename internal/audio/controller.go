// Package audio implements the half-duplex speak/listen turn controller.
// It coordinates one playback and one capture per turn: capture runs
// while playback is still playing so candidate barge-in can truncate the
// question, and every turn produces a result — silence and degraded
// audio come back as explicit results, never as dropped turns.
package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/models"
	"github.com/voxhire/interview-agent/internal/speech"
)

const defaultRepromptText = "I didn't catch that. Could you please repeat your answer?"

type Config struct {
	SilenceTimeout    time.Duration
	MaxAnswerDuration time.Duration
	MinConfidence     float64
	QualityThreshold  float64
	Voice             speech.VoiceConfig
	RepromptText      string
}

// Result is the outcome of one turn. Fault carries a warning-level
// fault raised during the turn (low quality, low confidence, silence);
// the engine forwards it to the recovery manager.
type Result struct {
	Answer     string
	Confidence float64
	Elapsed    time.Duration
	Fault      *models.FaultEvent
}

type Controller struct {
	synth  speech.Synthesizer
	recog  speech.Recognizer
	cfg    Config
	logger *zerolog.Logger
}

func NewController(synth speech.Synthesizer, recog speech.Recognizer, cfg Config, logger *zerolog.Logger) *Controller {
	if cfg.RepromptText == "" {
		cfg.RepromptText = defaultRepromptText
	}
	return &Controller{
		synth:  synth,
		recog:  recog,
		cfg:    cfg,
		logger: logger,
	}
}

// SpeakAndListen speaks the question and captures the answer. Degraded
// capture (silence, low quality, low confidence) triggers exactly one
// clarifying re-prompt before falling back to an empty or degraded
// answer. Empty question text is a contract violation.
func (c *Controller) SpeakAndListen(ctx context.Context, text string) (Result, error) {
	if text == "" {
		return Result{}, fmt.Errorf("empty question text")
	}

	start := time.Now()

	res, fault, err := c.cycle(ctx, text)
	if err != nil {
		return Result{}, err
	}

	if fault != nil {
		c.logger.Warn().
			Str("fault", string(fault.Kind)).
			Msg("degraded capture, asking clarifying re-prompt")

		retry, retryFault, err := c.cycle(ctx, c.cfg.RepromptText)
		if err != nil {
			return Result{}, err
		}
		if retryFault == nil {
			// Re-prompt recovered a clean answer; surface the original
			// fault so the recovery manager still sees the warning.
			retry.Fault = fault
			retry.Elapsed = time.Since(start)
			return retry, nil
		}

		// Still degraded: fall back to whatever the re-prompt captured,
		// empty answer included.
		retry.Fault = fault
		retry.Elapsed = time.Since(start)
		return retry, nil
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// Say speaks an utterance without opening a listening window. Used for
// remediation notices and closing remarks.
func (c *Controller) Say(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("empty utterance text")
	}

	playback, err := c.synthesizeWithRetry(ctx, text)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		playback.Stop()
		return ctx.Err()
	case err := <-playback.Done():
		if err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	}
}

// cycle runs one speak+listen exchange. The returned fault is nil for a
// clean capture; a non-nil fault means the capture was degraded and a
// re-prompt may be warranted.
func (c *Controller) cycle(ctx context.Context, text string) (Result, *models.FaultEvent, error) {
	playback, err := c.synthesizeWithRetry(ctx, text)
	if err != nil {
		return Result{}, nil, err
	}

	capture, err := c.recog.Listen(ctx, c.cfg.MaxAnswerDuration)
	if err != nil {
		playback.Stop()
		return Result{}, nil, fmt.Errorf("failed to open listening window: %w", err)
	}

	if err := c.awaitPlayback(ctx, playback, capture); err != nil {
		capture.Stop()
		return Result{}, nil, err
	}

	listen, err := c.awaitAnswer(ctx, capture)
	if err != nil {
		return Result{}, nil, err
	}

	return c.classify(listen)
}

func (c *Controller) synthesizeWithRetry(ctx context.Context, text string) (speech.Playback, error) {
	playback, err := c.synth.Synthesize(ctx, text, c.cfg.Voice)
	if err == nil {
		return playback, nil
	}

	c.logger.Warn().Err(err).Msg("synthesis failed, retrying once")
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	playback, err = c.synth.Synthesize(ctx, text, c.cfg.Voice)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed after retry: %w", err)
	}
	return playback, nil
}

// awaitPlayback waits for the question to finish playing. Voice activity
// on the capture while playback is still running is barge-in: playback
// is truncated immediately and capture continues.
func (c *Controller) awaitPlayback(ctx context.Context, playback speech.Playback, capture speech.Capture) error {
	for {
		select {
		case <-ctx.Done():
			playback.Stop()
			return ctx.Err()
		case <-capture.Activity():
			c.logger.Debug().Msg("barge-in detected, truncating playback")
			playback.Stop()
			return nil
		case err := <-playback.Done():
			if err != nil {
				return fmt.Errorf("playback failed: %w", err)
			}
			return nil
		}
	}
}

// awaitAnswer waits for the capture result, enforcing the silence
// timeout locally. The timer restarts on every interim activity signal
// so a slow-but-talking candidate is never cut off as silent.
func (c *Controller) awaitAnswer(ctx context.Context, capture speech.Capture) (speech.ListenResult, error) {
	silence := time.NewTimer(c.cfg.SilenceTimeout)
	defer silence.Stop()

	for {
		select {
		case <-ctx.Done():
			capture.Stop()
			return speech.ListenResult{}, ctx.Err()
		case <-capture.Activity():
			if !silence.Stop() {
				<-silence.C
			}
			silence.Reset(c.cfg.SilenceTimeout)
		case <-silence.C:
			capture.Stop()
			// A final transcript may have landed in the same instant the
			// timer fired. Prefer it over declaring silence; Stop itself
			// resolves the capture as silence when nothing was said.
			if result := <-capture.Result(); result.Outcome != speech.OutcomeSilence {
				return result, nil
			}
			return speech.ListenResult{Outcome: speech.OutcomeSilence}, nil
		case result := <-capture.Result():
			return result, nil
		}
	}
}

func (c *Controller) classify(listen speech.ListenResult) (Result, *models.FaultEvent, error) {
	switch listen.Outcome {
	case speech.OutcomeFailure:
		return Result{}, nil, fmt.Errorf("recognition failure: %w", listen.Err)

	case speech.OutcomeSilence:
		fault := &models.FaultEvent{
			Kind:     models.FaultCandidateSilence,
			Severity: models.SeverityWarning,
			At:       time.Now(),
		}
		return Result{}, fault, nil

	default:
		if listen.Quality > 0 && listen.Quality < c.cfg.QualityThreshold {
			fault := &models.FaultEvent{
				Kind:     models.FaultLowAudioQuality,
				Severity: models.SeverityWarning,
				At:       time.Now(),
				Detail:   fmt.Sprintf("quality %.2f below threshold %.2f", listen.Quality, c.cfg.QualityThreshold),
			}
			return Result{Answer: listen.Text, Confidence: listen.Confidence}, fault, nil
		}
		if listen.Confidence < c.cfg.MinConfidence {
			fault := &models.FaultEvent{
				Kind:     models.FaultLowRecognitionConfidence,
				Severity: models.SeverityWarning,
				At:       time.Now(),
				Detail:   fmt.Sprintf("confidence %.2f below threshold %.2f", listen.Confidence, c.cfg.MinConfidence),
			}
			return Result{Answer: listen.Text, Confidence: listen.Confidence}, fault, nil
		}

		return Result{Answer: listen.Text, Confidence: listen.Confidence}, nil, nil
	}
}

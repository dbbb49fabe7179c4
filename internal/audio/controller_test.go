package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/models"
	"github.com/voxhire/interview-agent/internal/speech"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type fakePlayback struct {
	done    chan error
	stopped bool
	once    sync.Once
}

func newFakePlayback(finished bool) *fakePlayback {
	p := &fakePlayback{done: make(chan error, 1)}
	if finished {
		p.finish(nil)
	}
	return p
}

func (p *fakePlayback) finish(err error) {
	p.once.Do(func() { p.done <- err })
}

func (p *fakePlayback) Done() <-chan error { return p.done }

func (p *fakePlayback) Stop() {
	p.stopped = true
	p.finish(nil)
}

type fakeCapture struct {
	activity chan time.Time
	result   chan speech.ListenResult
	final    speech.ListenResult
	stopped  bool
	once     sync.Once
}

func newFakeCapture(final speech.ListenResult, deliver bool) *fakeCapture {
	c := &fakeCapture{
		activity: make(chan time.Time, 4),
		result:   make(chan speech.ListenResult, 1),
		final:    final,
	}
	if deliver {
		c.once.Do(func() { c.result <- final })
	}
	return c
}

func (c *fakeCapture) Activity() <-chan time.Time         { return c.activity }
func (c *fakeCapture) Result() <-chan speech.ListenResult { return c.result }

func (c *fakeCapture) Stop() {
	c.stopped = true
	c.once.Do(func() { c.result <- c.final })
}

type fakeSynth struct {
	playbacks []*fakePlayback
	errs      []error
	texts     []string
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string, voice speech.VoiceConfig) (speech.Playback, error) {
	i := len(s.texts)
	s.texts = append(s.texts, text)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.playbacks) {
		return s.playbacks[i], nil
	}
	return newFakePlayback(true), nil
}

type fakeRecog struct {
	captures []*fakeCapture
	calls    int
	err      error
}

func (r *fakeRecog) Listen(ctx context.Context, maxDuration time.Duration) (speech.Capture, error) {
	if r.err != nil {
		return nil, r.err
	}
	i := r.calls
	r.calls++
	if i < len(r.captures) {
		return r.captures[i], nil
	}
	return newFakeCapture(speech.ListenResult{
		Text: "an answer", Confidence: 0.9, Quality: 0.9, Outcome: speech.OutcomeSpeech,
	}, true), nil
}

func testConfig() Config {
	return Config{
		SilenceTimeout:    time.Second,
		MaxAnswerDuration: 10 * time.Second,
		MinConfidence:     0.5,
		QualityThreshold:  0.4,
	}
}

func TestController_SpeakAndListen_CleanTurn(t *testing.T) {
	synth := &fakeSynth{}
	recog := &fakeRecog{}
	c := NewController(synth, recog, testConfig(), testLogger())

	result, err := c.SpeakAndListen(context.Background(), "tell me about goroutines")
	if err != nil {
		t.Fatalf("SpeakAndListen() failed: %v", err)
	}

	if result.Answer != "an answer" {
		t.Errorf("Expected captured answer, got %q", result.Answer)
	}
	if result.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", result.Confidence)
	}
	if result.Fault != nil {
		t.Errorf("Expected clean turn, got fault %v", result.Fault)
	}
	if len(synth.texts) != 1 || synth.texts[0] != "tell me about goroutines" {
		t.Errorf("Expected single synthesis of the question, got %v", synth.texts)
	}
}

func TestController_SpeakAndListen_EmptyTextRejected(t *testing.T) {
	c := NewController(&fakeSynth{}, &fakeRecog{}, testConfig(), testLogger())

	if _, err := c.SpeakAndListen(context.Background(), ""); err == nil {
		t.Fatal("Expected error for empty question text")
	}
}

func TestController_SpeakAndListen_BargeInTruncatesPlayback(t *testing.T) {
	playback := newFakePlayback(false) // never finishes on its own
	capture := newFakeCapture(speech.ListenResult{
		Text: "eager answer", Confidence: 0.95, Quality: 0.9, Outcome: speech.OutcomeSpeech,
	}, true)
	capture.activity <- time.Now() // candidate starts talking mid-question

	synth := &fakeSynth{playbacks: []*fakePlayback{playback}}
	recog := &fakeRecog{captures: []*fakeCapture{capture}}
	c := NewController(synth, recog, testConfig(), testLogger())

	result, err := c.SpeakAndListen(context.Background(), "a long question")
	if err != nil {
		t.Fatalf("SpeakAndListen() failed: %v", err)
	}

	if !playback.stopped {
		t.Error("Expected barge-in to truncate playback")
	}
	if result.Answer != "eager answer" {
		t.Errorf("Expected the barge-in answer, got %q", result.Answer)
	}
}

func TestController_SpeakAndListen_SilenceAfterReprompt(t *testing.T) {
	cfg := testConfig()
	cfg.SilenceTimeout = 20 * time.Millisecond

	silent := func() *fakeCapture {
		return newFakeCapture(speech.ListenResult{Outcome: speech.OutcomeSilence}, false)
	}
	first, second := silent(), silent()

	synth := &fakeSynth{}
	recog := &fakeRecog{captures: []*fakeCapture{first, second}}
	c := NewController(synth, recog, cfg, testLogger())

	result, err := c.SpeakAndListen(context.Background(), "anything to add?")
	if err != nil {
		t.Fatalf("SpeakAndListen() failed: %v", err)
	}

	if result.Answer != "" {
		t.Errorf("Expected empty answer after double silence, got %q", result.Answer)
	}
	if result.Fault == nil || result.Fault.Kind != models.FaultCandidateSilence {
		t.Fatalf("Expected silence fault, got %v", result.Fault)
	}
	if !first.stopped || !second.stopped {
		t.Error("Expected both captures to be stopped on silence timeout")
	}
	// Question once, clarifying re-prompt once.
	if len(synth.texts) != 2 {
		t.Fatalf("Expected 2 syntheses, got %v", synth.texts)
	}
	if synth.texts[1] != defaultRepromptText {
		t.Errorf("Expected default re-prompt text, got %q", synth.texts[1])
	}
}

func TestController_SpeakAndListen_LateTranscriptBeatsSilenceTimer(t *testing.T) {
	cfg := testConfig()
	cfg.SilenceTimeout = 20 * time.Millisecond

	// The candidate's transcript arrives just as the silence timer fires:
	// stopping the capture surfaces a real answer, not silence.
	late := newFakeCapture(speech.ListenResult{
		Text: "a late but real answer", Confidence: 0.9, Quality: 0.9, Outcome: speech.OutcomeSpeech,
	}, false)

	synth := &fakeSynth{}
	recog := &fakeRecog{captures: []*fakeCapture{late}}
	c := NewController(synth, recog, cfg, testLogger())

	result, err := c.SpeakAndListen(context.Background(), "anything else?")
	if err != nil {
		t.Fatalf("SpeakAndListen() failed: %v", err)
	}

	if result.Answer != "a late but real answer" {
		t.Errorf("Expected the late answer to be kept, got %q", result.Answer)
	}
	if result.Fault != nil {
		t.Errorf("A real answer must not carry a silence fault, got %v", result.Fault)
	}
	// No re-prompt for a recovered answer.
	if len(synth.texts) != 1 {
		t.Errorf("Expected a single synthesis, got %v", synth.texts)
	}
}

func TestController_SpeakAndListen_RepromptRecoversDegradedCapture(t *testing.T) {
	degraded := newFakeCapture(speech.ListenResult{
		Text: "mumbled words", Confidence: 0.2, Quality: 0.9, Outcome: speech.OutcomeSpeech,
	}, true)
	clean := newFakeCapture(speech.ListenResult{
		Text: "a clear answer", Confidence: 0.95, Quality: 0.9, Outcome: speech.OutcomeSpeech,
	}, true)

	recog := &fakeRecog{captures: []*fakeCapture{degraded, clean}}
	c := NewController(&fakeSynth{}, recog, testConfig(), testLogger())

	result, err := c.SpeakAndListen(context.Background(), "what is a channel?")
	if err != nil {
		t.Fatalf("SpeakAndListen() failed: %v", err)
	}

	if result.Answer != "a clear answer" {
		t.Errorf("Expected re-prompt answer, got %q", result.Answer)
	}
	// The original warning still surfaces for the recovery manager.
	if result.Fault == nil || result.Fault.Kind != models.FaultLowRecognitionConfidence {
		t.Fatalf("Expected low confidence fault preserved, got %v", result.Fault)
	}
}

func TestController_SpeakAndListen_LowQualityFault(t *testing.T) {
	noisy := func() *fakeCapture {
		return newFakeCapture(speech.ListenResult{
			Text: "static heavy answer", Confidence: 0.8, Quality: 0.1, Outcome: speech.OutcomeSpeech,
		}, true)
	}

	recog := &fakeRecog{captures: []*fakeCapture{noisy(), noisy()}}
	c := NewController(&fakeSynth{}, recog, testConfig(), testLogger())

	result, err := c.SpeakAndListen(context.Background(), "q")
	if err != nil {
		t.Fatalf("SpeakAndListen() failed: %v", err)
	}

	if result.Fault == nil || result.Fault.Kind != models.FaultLowAudioQuality {
		t.Fatalf("Expected low audio quality fault, got %v", result.Fault)
	}
	// Degraded answer is still usable text.
	if result.Answer != "static heavy answer" {
		t.Errorf("Expected degraded answer text, got %q", result.Answer)
	}
}

func TestController_SpeakAndListen_RecognitionFailureIsError(t *testing.T) {
	broken := newFakeCapture(speech.ListenResult{
		Outcome: speech.OutcomeFailure,
		Err:     errors.New("recognizer stream reset"),
	}, true)

	recog := &fakeRecog{captures: []*fakeCapture{broken}}
	c := NewController(&fakeSynth{}, recog, testConfig(), testLogger())

	if _, err := c.SpeakAndListen(context.Background(), "q"); err == nil {
		t.Fatal("Expected recognition failure to surface as an error")
	}
}

func TestController_SynthesisRetriesOnce(t *testing.T) {
	synth := &fakeSynth{errs: []error{errors.New("tts unavailable")}}
	recog := &fakeRecog{}
	c := NewController(synth, recog, testConfig(), testLogger())

	result, err := c.SpeakAndListen(context.Background(), "q")
	if err != nil {
		t.Fatalf("Expected retry to recover synthesis, got %v", err)
	}
	if result.Answer != "an answer" {
		t.Errorf("Expected answer after retry, got %q", result.Answer)
	}
	if len(synth.texts) != 2 {
		t.Errorf("Expected 2 synthesis attempts, got %d", len(synth.texts))
	}
}

func TestController_SynthesisFailsAfterRetry(t *testing.T) {
	synth := &fakeSynth{errs: []error{errors.New("tts down"), errors.New("tts down")}}
	c := NewController(synth, &fakeRecog{}, testConfig(), testLogger())

	if _, err := c.SpeakAndListen(context.Background(), "q"); err == nil {
		t.Fatal("Expected error after failed synthesis retry")
	}
}

func TestController_Say(t *testing.T) {
	synth := &fakeSynth{}
	c := NewController(synth, &fakeRecog{}, testConfig(), testLogger())

	if err := c.Say(context.Background(), "thank you for your time"); err != nil {
		t.Fatalf("Say() failed: %v", err)
	}
	if len(synth.texts) != 1 {
		t.Errorf("Expected one synthesis, got %d", len(synth.texts))
	}

	if err := c.Say(context.Background(), ""); err == nil {
		t.Error("Expected error for empty utterance")
	}
}

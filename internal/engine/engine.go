// Package engine owns the interview state machine: it drives the stage
// sequence, runs audio turns, feeds answers to the scorer and
// aggregator, consults the recovery manager on faults, and terminates
// the session with exactly one assessment.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/assessment"
	"github.com/voxhire/interview-agent/internal/audio"
	"github.com/voxhire/interview-agent/internal/models"
	"github.com/voxhire/interview-agent/internal/recovery"
)

// Adaptive difficulty bounds over the running mean of the last three
// turn finals.
const (
	advancedHintThreshold     = 8.0
	foundationalHintThreshold = 6.0
	difficultyWindow          = 3
)

// TurnController runs one half-duplex speak/listen exchange.
type TurnController interface {
	SpeakAndListen(ctx context.Context, text string) (audio.Result, error)
	Say(ctx context.Context, text string) error
}

// AnswerScorer scores one answer and signals whether a follow-up is
// warranted.
type AnswerScorer interface {
	Score(ctx context.Context, question, answer string, stage models.Stage) (models.ScoreBreakdown, bool, error)
}

// QuestionSource generates questions and remarks.
type QuestionSource interface {
	Opening(ctx context.Context, session *models.Session) (string, error)
	Next(ctx context.Context, req QuestionRequest) (string, error)
	ClosingRemarks(session *models.Session) string
}

// FaultHandler consumes fault events and drives reconnection.
type FaultHandler interface {
	Handle(fault models.FaultEvent) recovery.Directive
	AwaitReconnect(ctx context.Context) (bool, error)
	DrainPresence() *models.FaultEvent
}

// Checkpointer persists snapshots and final assessments.
type Checkpointer interface {
	Save(ctx context.Context, snapshot models.Snapshot) error
	Delete(ctx context.Context, sessionID string) error
	SaveAssessment(ctx context.Context, assessment models.Assessment) error
}

// Engine conducts one interview session. The session struct is owned
// and mutated exclusively by the engine; collaborators read it and
// return results. Concurrent observers see the session only through
// published progress snapshots, never through the live struct.
type Engine struct {
	session     *models.Session
	turns       TurnController
	scorer      AnswerScorer
	questions   QuestionSource
	recovery    FaultHandler
	aggregator  *assessment.Aggregator
	checkpoints Checkpointer
	logger      *zerolog.Logger

	progressMu sync.Mutex
	progress   StatusView

	finished bool
}

func NewEngine(
	session *models.Session,
	turns TurnController,
	scorer AnswerScorer,
	questions QuestionSource,
	faults FaultHandler,
	aggregator *assessment.Aggregator,
	checkpoints Checkpointer,
	logger *zerolog.Logger,
) *Engine {
	e := &Engine{
		session:     session,
		turns:       turns,
		scorer:      scorer,
		questions:   questions,
		recovery:    faults,
		aggregator:  aggregator,
		checkpoints: checkpoints,
		logger:      logger,
	}
	e.publishProgress()
	return e
}

// RestoreSnapshot primes the engine with checkpointed state so a session
// resumes exactly at the stage it paused in. The original start time is
// restored too: the duration ceiling covers the whole interview, not the
// time since the resume.
func (e *Engine) RestoreSnapshot(snapshot *models.Snapshot) {
	e.session.Stage = snapshot.Stage
	e.session.Transcript = snapshot.Transcript
	if !snapshot.StartedAt.IsZero() {
		e.session.StartedAt = snapshot.StartedAt
	}
	e.aggregator.Restore(snapshot.Accumulators)
	e.publishProgress()
}

// Progress returns the last published point-in-time view of the session.
// Safe to call concurrently while Run executes.
func (e *Engine) Progress() StatusView {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	return e.progress
}

// publishProgress refreshes the snapshot served to concurrent Status
// readers. Only the engine goroutine writes session state, so reading
// the session here is safe.
func (e *Engine) publishProgress() {
	view := StatusView{
		SessionID:      e.session.ID,
		Status:         e.session.Status,
		Stage:          e.session.Stage,
		QuestionsAsked: len(e.session.Transcript),
		StartedAt:      e.session.StartedAt,
	}
	e.progressMu.Lock()
	e.progress = view
	e.progressMu.Unlock()
}

// Run conducts the interview to termination and returns the single
// assessment produced for this session. Using an engine after it has
// terminated is a contract violation.
func (e *Engine) Run(ctx context.Context) (models.Assessment, error) {
	if e.finished {
		return models.Assessment{}, fmt.Errorf("session %s already terminated", e.session.ID)
	}
	if e.session.Status == models.StatusCompleted || e.session.Status == models.StatusAborted {
		return models.Assessment{}, fmt.Errorf("session %s used after termination", e.session.ID)
	}

	e.session.Status = models.StatusActive
	if e.session.Stage == "" {
		e.session.Stage = models.StageIntroduction
	}
	if e.session.StartedAt.IsZero() {
		e.session.StartedAt = time.Now()
	}
	e.publishProgress()

	deadline := e.session.StartedAt.Add(time.Duration(e.session.Config.DurationMinutes) * time.Minute)
	askedInStage := e.countStageTurns(e.session.Stage)
	followUp := false
	lastAnswer := ""

	e.logger.Info().
		Str("session_id", e.session.ID).
		Str("candidate", e.session.Candidate.Name).
		Str("role", e.session.Role.Title).
		Time("deadline", deadline).
		Msg("interview started")

	for {
		if ctx.Err() != nil {
			return e.abort(ctx, "session cancelled"), nil
		}

		// Presence is consumed synchronously at turn boundaries.
		if fault := e.recovery.DrainPresence(); fault != nil {
			cont, result := e.handleConnectivity(ctx, *fault)
			if !cont {
				return result, nil
			}
			askedInStage = e.countStageTurns(e.session.Stage)
			followUp = false
			continue
		}

		// Duration is a hard ceiling: force the closing stage as the
		// very next transition, dropping pending follow-ups.
		if e.session.Stage != models.StageClosing && time.Now().After(deadline) {
			e.logger.Warn().Msg("session duration exceeded, forcing closing stage")
			e.transition(models.StageClosing)
			askedInStage = 0
			followUp = false
		}

		// Question cap is a soft target checked between turns.
		if e.session.Stage != models.StageClosing && len(e.session.Transcript) >= e.maxQuestions()-1 {
			e.logger.Info().Msg("question cap reached, moving to closing stage")
			e.transition(models.StageClosing)
			askedInStage = 0
			followUp = false
		}

		question, err := e.nextQuestion(ctx, followUp, lastAnswer)
		if err != nil {
			return e.abort(ctx, fmt.Sprintf("question generation failed: %v", err)), nil
		}

		result, err := e.turns.SpeakAndListen(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return e.abort(ctx, "session cancelled"), nil
			}
			// Mid-turn connectivity loss surfaces as a capture failure;
			// check presence before declaring a capability failure.
			if fault := e.recovery.DrainPresence(); fault != nil {
				cont, aborted := e.handleConnectivity(ctx, *fault)
				if !cont {
					return aborted, nil
				}
				askedInStage = e.countStageTurns(e.session.Stage)
				followUp = false
				continue
			}
			return e.abort(ctx, fmt.Sprintf("audio turn failed: %v", err)), nil
		}

		if result.Fault != nil {
			directive := e.recovery.Handle(*result.Fault)
			switch directive {
			case recovery.DirectivePause:
				cont, aborted := e.pauseAndAwait(ctx)
				if !cont {
					return aborted, nil
				}
				// The in-flight turn is not committed; re-ask at the
				// checkpointed stage.
				askedInStage = e.countStageTurns(e.session.Stage)
				followUp = false
				continue
			case recovery.DirectiveEscalate:
				return e.abort(ctx, fmt.Sprintf("unrecoverable fault: %s", result.Fault.Kind)), nil
			}
			// DirectiveContinue: the controller already re-prompted.
		}

		breakdown, needsFollowup, err := e.scorer.Score(ctx, question, result.Answer, e.session.Stage)
		if err != nil {
			if ctx.Err() != nil {
				return e.abort(ctx, "session cancelled"), nil
			}
			return e.abort(ctx, fmt.Sprintf("scoring failed: %v", err)), nil
		}

		turn := models.Turn{
			Question:   question,
			Answer:     result.Answer,
			Confidence: result.Confidence,
			Elapsed:    result.Elapsed,
			Stage:      e.session.Stage,
			FollowUp:   followUp,
			Score:      breakdown,
			AskedAt:    time.Now(),
		}
		e.session.Transcript = append(e.session.Transcript, turn)
		e.aggregator.Observe(turn)
		e.publishProgress()
		askedInStage++
		lastAnswer = result.Answer

		e.logger.Info().
			Str("stage", string(e.session.Stage)).
			Int("turn", len(e.session.Transcript)).
			Float64("final", breakdown.Final).
			Bool("follow_up", followUp).
			Msg("turn committed")

		if e.session.Stage == models.StageClosing {
			return e.complete(ctx), nil
		}

		budget := models.StageBudgets[e.session.Stage]
		if needsFollowup && !followUp && askedInStage < budget.MaxQuestions {
			// Exactly one follow-up, bound to the same stage.
			followUp = true
			continue
		}
		followUp = false

		if askedInStage >= budget.MaxQuestions {
			next, _ := models.NextStage(e.session.Stage)
			e.transition(next)
			askedInStage = 0
		}
	}
}

func (e *Engine) nextQuestion(ctx context.Context, followUp bool, lastAnswer string) (string, error) {
	if len(e.session.Transcript) == 0 && e.session.Stage == models.StageIntroduction {
		return e.questions.Opening(ctx, e.session)
	}

	return e.questions.Next(ctx, QuestionRequest{
		Session:        e.session,
		Stage:          e.session.Stage,
		DifficultyHint: e.difficultyHint(),
		FollowUp:       followUp,
		LastAnswer:     lastAnswer,
	})
}

// difficultyHint derives the opaque hint from the running mean of the
// last three scored turns.
func (e *Engine) difficultyHint() string {
	transcript := e.session.Transcript
	if len(transcript) < difficultyWindow {
		return ""
	}

	sum := 0.0
	for _, turn := range transcript[len(transcript)-difficultyWindow:] {
		sum += turn.Score.Final
	}
	mean := sum / difficultyWindow

	switch {
	case mean > advancedHintThreshold:
		return "advanced"
	case mean < foundationalHintThreshold:
		return "foundational"
	default:
		return ""
	}
}

func (e *Engine) handleConnectivity(ctx context.Context, fault models.FaultEvent) (bool, models.Assessment) {
	directive := e.recovery.Handle(fault)
	switch directive {
	case recovery.DirectivePause:
		return e.pauseAndAwait(ctx)
	case recovery.DirectiveEscalate:
		return false, e.abort(ctx, fmt.Sprintf("unrecoverable fault: %s", fault.Kind))
	default:
		return true, models.Assessment{}
	}
}

// pauseAndAwait checkpoints the session, waits inside the reconnect
// window, and either resumes at the checkpointed stage or aborts with a
// partial assessment.
func (e *Engine) pauseAndAwait(ctx context.Context) (bool, models.Assessment) {
	e.session.Status = models.StatusPaused
	e.publishProgress()

	snapshot := models.Snapshot{
		SessionID:    e.session.ID,
		MeetingRef:   e.session.MeetingRef,
		Candidate:    e.session.Candidate,
		Role:         e.session.Role,
		Config:       e.session.Config,
		Status:       models.StatusPaused,
		Stage:        e.session.Stage,
		Transcript:   e.session.Transcript,
		Accumulators: e.aggregator.Accumulators(),
		StartedAt:    e.session.StartedAt,
		CapturedAt:   time.Now(),
	}
	if err := e.checkpoints.Save(ctx, snapshot); err != nil {
		e.logger.Error().Err(err).Msg("checkpoint save failed, continuing with in-memory state")
	}

	rejoined, err := e.recovery.AwaitReconnect(ctx)
	if err != nil {
		return false, e.abort(ctx, "session cancelled")
	}
	if !rejoined {
		return false, e.abort(ctx, "candidate did not reconnect within the wait window")
	}

	e.session.Status = models.StatusActive
	e.publishProgress()
	return true, models.Assessment{}
}

func (e *Engine) transition(next models.Stage) {
	e.logger.Info().
		Str("from", string(e.session.Stage)).
		Str("to", string(next)).
		Msg("stage transition")
	e.session.Stage = next
	e.publishProgress()
}

func (e *Engine) complete(ctx context.Context) models.Assessment {
	if err := e.turns.Say(ctx, e.questions.ClosingRemarks(e.session)); err != nil {
		e.logger.Warn().Err(err).Msg("failed to deliver closing remarks")
	}

	e.session.Status = models.StatusCompleted
	e.publishProgress()
	return e.finalize(ctx, false, "")
}

func (e *Engine) abort(ctx context.Context, reason string) models.Assessment {
	e.logger.Warn().Str("reason", reason).Msg("session aborted")
	e.session.Status = models.StatusAborted
	e.publishProgress()
	return e.finalize(ctx, true, reason)
}

// finalize produces the session's single assessment and persists it.
// Persistence runs on an uncancellable context: committed transcript
// data is never lost to a cancelled session.
func (e *Engine) finalize(ctx context.Context, partial bool, reason string) models.Assessment {
	e.finished = true

	result := e.aggregator.Finalize(e.session.ID, e.session.Transcript, partial, reason)
	result.FinalizedAt = time.Now()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := e.checkpoints.SaveAssessment(persistCtx, result); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist assessment")
	}
	if err := e.checkpoints.Delete(persistCtx, e.session.ID); err != nil {
		e.logger.Warn().Err(err).Msg("failed to delete checkpoint")
	}

	return result
}

func (e *Engine) maxQuestions() int {
	if e.session.Config.MaxQuestions > 0 {
		return e.session.Config.MaxQuestions
	}
	return 15
}

func (e *Engine) countStageTurns(stage models.Stage) int {
	count := 0
	for _, turn := range e.session.Transcript {
		if turn.Stage == stage {
			count++
		}
	}
	return count
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/models"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrAssessmentNotReady = errors.New("assessment not ready")
)

// SessionRunner is what the manager runs per session. Satisfied by
// *Engine; narrowed for tests. Progress must be safe to call while Run
// executes: the manager serves status reads from it, never from the
// runner's live session state.
type SessionRunner interface {
	Run(ctx context.Context) (models.Assessment, error)
	Progress() StatusView
}

// SnapshotLoader reads the checkpoint written when a session paused.
// Satisfied by *checkpoint.Store.
type SnapshotLoader interface {
	Load(ctx context.Context, sessionID string) (*models.Snapshot, error)
}

// SnapshotRestorer is implemented by runners that can resume from a
// checkpoint. *Engine implements it.
type SnapshotRestorer interface {
	RestoreSnapshot(snapshot *models.Snapshot)
}

// RunnerFactory builds a fully wired runner for one session, including
// any per-session transport (the media gateway connection). The cleanup
// function releases those resources when the session terminates.
type RunnerFactory func(ctx context.Context, session *models.Session) (SessionRunner, func(), error)

// StartRequest is the input for creating a new interview session.
// Setting SessionID resumes a previously paused session from its
// checkpoint instead of starting a fresh one; candidate and role then
// come from the checkpoint.
type StartRequest struct {
	SessionID  string
	MeetingRef string
	Candidate  models.CandidateInfo
	Role       models.RoleInfo
	Config     models.SessionConfig
}

// StatusView is a point-in-time read of a running session.
type StatusView struct {
	SessionID      string        `json:"session_id"`
	Status         models.Status `json:"status"`
	Stage          models.Stage  `json:"stage"`
	QuestionsAsked int           `json:"questions_asked"`
	StartedAt      time.Time     `json:"started_at"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

type sessionHandle struct {
	runner SessionRunner
	cancel context.CancelFunc
	done   chan struct{}

	// set before done is closed, read only after
	assessment models.Assessment
	runErr     error
}

// SessionManager owns the set of concurrent interview sessions. Each
// session runs on its own goroutine with its own engine and media
// connection; sessions never share mutable state.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*sessionHandle

	newRunner RunnerFactory
	snapshots SnapshotLoader
	logger    *zerolog.Logger
}

// NewSessionManager creates a manager. snapshots may be nil, in which
// case resuming paused sessions is unavailable.
func NewSessionManager(newRunner RunnerFactory, snapshots SnapshotLoader, logger *zerolog.Logger) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*sessionHandle),
		newRunner: newRunner,
		snapshots: snapshots,
		logger:    logger,
	}
}

// StartSession creates a session, wires its runner, and starts the
// interview on its own goroutine. It returns the session id immediately.
// With req.SessionID set, the session is rebuilt from its checkpoint and
// resumed at the stage it paused in.
func (m *SessionManager) StartSession(ctx context.Context, req StartRequest) (string, error) {
	var snapshot *models.Snapshot
	if req.SessionID != "" {
		if m.snapshots == nil {
			return "", fmt.Errorf("session resume is not configured")
		}
		snap, err := m.snapshots.Load(ctx, req.SessionID)
		if err != nil {
			return "", fmt.Errorf("failed to load checkpoint for session %s: %w", req.SessionID, err)
		}
		snapshot = snap
	} else {
		if req.Candidate.Name == "" {
			return "", fmt.Errorf("candidate name is required")
		}
		if req.Role.Title == "" {
			return "", fmt.Errorf("role title is required")
		}
	}

	session := &models.Session{
		ID:         req.SessionID,
		MeetingRef: req.MeetingRef,
		Candidate:  req.Candidate,
		Role:       req.Role,
		Config:     req.Config,
		Status:     models.StatusCreated,
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if snapshot != nil {
		// Identity and options travel with the checkpoint; the resume
		// request only needs the session id.
		session.Candidate = snapshot.Candidate
		session.Role = snapshot.Role
		session.Config = snapshot.Config
		if session.MeetingRef == "" {
			session.MeetingRef = snapshot.MeetingRef
		}
	}

	runner, cleanup, err := m.newRunner(ctx, session)
	if err != nil {
		return "", fmt.Errorf("failed to wire session %s: %w", session.ID, err)
	}

	if snapshot != nil {
		restorer, ok := runner.(SnapshotRestorer)
		if !ok {
			cleanup()
			return "", fmt.Errorf("runner for session %s cannot resume from a checkpoint", session.ID)
		}
		restorer.RestoreSnapshot(snapshot)
	}

	// The session outlives the start request; its lifetime is bound to
	// the manager, not to the HTTP call that created it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := &sessionHandle{
		runner: runner,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if _, exists := m.sessions[session.ID]; exists {
		m.mu.Unlock()
		cancel()
		cleanup()
		return "", fmt.Errorf("session %s is already running", session.ID)
	}
	m.sessions[session.ID] = handle
	m.mu.Unlock()

	go func() {
		defer cleanup()
		defer cancel()

		assessment, err := runner.Run(runCtx)

		m.mu.Lock()
		handle.assessment = assessment
		handle.runErr = err
		close(handle.done)
		m.mu.Unlock()

		if err != nil {
			m.logger.Error().Err(err).Str("session_id", session.ID).Msg("session run failed")
			return
		}
		m.logger.Info().
			Str("session_id", session.ID).
			Str("status", string(runner.Progress().Status)).
			Float64("overall_score", assessment.OverallScore).
			Msg("session terminated")
	}()

	m.logger.Info().
		Str("session_id", session.ID).
		Str("candidate", session.Candidate.Name).
		Bool("resumed", snapshot != nil).
		Msg("session started")

	return session.ID, nil
}

// Status reports the current state of a session. The view comes from
// the runner's published progress snapshot; the live session struct is
// owned by the engine goroutine and is never read here.
func (m *SessionManager) Status(sessionID string) (StatusView, error) {
	m.mu.RLock()
	handle, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return StatusView{}, ErrSessionNotFound
	}

	view := handle.runner.Progress()
	view.SessionID = sessionID
	if !view.StartedAt.IsZero() {
		view.Elapsed = time.Since(view.StartedAt)
	}
	return view, nil
}

// Assessment returns the session's final assessment once the session
// has terminated.
func (m *SessionManager) Assessment(sessionID string) (models.Assessment, error) {
	m.mu.RLock()
	handle, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return models.Assessment{}, ErrSessionNotFound
	}

	select {
	case <-handle.done:
	default:
		return models.Assessment{}, ErrAssessmentNotReady
	}

	if handle.runErr != nil {
		return models.Assessment{}, handle.runErr
	}
	return handle.assessment, nil
}

// Cancel requests termination of a running session. The engine observes
// the cancellation at its next suspension point and aborts with a
// partial assessment.
func (m *SessionManager) Cancel(sessionID string) error {
	m.mu.RLock()
	handle, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}

	handle.cancel()
	m.logger.Info().Str("session_id", sessionID).Msg("session cancellation requested")
	return nil
}

// Wait blocks until the session terminates or ctx is done. Used by the
// single-session CLI runner.
func (m *SessionManager) Wait(ctx context.Context, sessionID string) (models.Assessment, error) {
	m.mu.RLock()
	handle, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return models.Assessment{}, ErrSessionNotFound
	}

	select {
	case <-ctx.Done():
		return models.Assessment{}, ctx.Err()
	case <-handle.done:
	}

	if handle.runErr != nil {
		return models.Assessment{}, handle.runErr
	}
	return handle.assessment, nil
}

// Package recovery tracks fault signals during a session and decides
// whether the engine keeps going, pauses for a reconnect, or aborts.
package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/models"
	"github.com/voxhire/interview-agent/internal/speech"
)

type State string

const (
	StateHealthy           State = "healthy"
	StateDegraded          State = "degraded"
	StateAwaitingReconnect State = "awaiting_reconnect"
	StateEscalated         State = "escalated"
)

// Directive tells the engine what to do after a fault. Faults are
// consumed synchronously at the engine's suspension points, not via
// registered callbacks, so there is no reentrancy during transitions.
type Directive string

const (
	// DirectiveContinue: warning-level fault, remediation already
	// happened locally (clarifying re-prompt); session continues.
	DirectiveContinue Directive = "continue"
	// DirectivePause: connectivity fault; the engine must checkpoint,
	// mark the session paused, and call AwaitReconnect.
	DirectivePause Directive = "pause"
	// DirectiveEscalate: unrecoverable; the engine aborts with a
	// partial assessment.
	DirectiveEscalate Directive = "escalate"
)

type Manager struct {
	state           State
	presence        speech.Presence
	reconnectWindow time.Duration
	logger          *zerolog.Logger
}

func NewManager(presence speech.Presence, reconnectWindow time.Duration, logger *zerolog.Logger) *Manager {
	return &Manager{
		state:           StateHealthy,
		presence:        presence,
		reconnectWindow: reconnectWindow,
		logger:          logger,
	}
}

func (m *Manager) State() State {
	return m.state
}

// Handle transitions the manager on one fault event and returns the
// directive for the engine.
func (m *Manager) Handle(fault models.FaultEvent) Directive {
	m.logger.Warn().
		Str("kind", string(fault.Kind)).
		Str("severity", string(fault.Severity)).
		Str("detail", fault.Detail).
		Str("state", string(m.state)).
		Msg("fault observed")

	switch fault.Kind {
	case models.FaultCandidateDisconnect, models.FaultNetworkDrop:
		m.state = StateAwaitingReconnect
		return DirectivePause
	default:
		if fault.Severity == models.SeverityFatal {
			m.state = StateEscalated
			return DirectiveEscalate
		}
		if m.state == StateHealthy {
			m.state = StateDegraded
		}
		return DirectiveContinue
	}
}

// AwaitReconnect blocks until the candidate rejoins the channel or the
// reconnect window expires. Expiry escalates; the engine must then
// abort. The window and cancellation are explicit, never implicit.
func (m *Manager) AwaitReconnect(ctx context.Context) (bool, error) {
	deadline := time.NewTimer(m.reconnectWindow)
	defer deadline.Stop()

	m.logger.Info().
		Dur("window", m.reconnectWindow).
		Msg("awaiting candidate reconnect")

	for {
		select {
		case <-ctx.Done():
			m.state = StateEscalated
			return false, ctx.Err()
		case <-deadline.C:
			m.state = StateEscalated
			m.logger.Warn().Msg("reconnect window expired, escalating")
			return false, nil
		case event := <-m.presence.Events():
			if event.Connected {
				m.state = StateHealthy
				m.logger.Info().Msg("candidate rejoined, resuming")
				return true, nil
			}
			// Still disconnected; keep waiting inside the window.
		}
	}
}

// DrainPresence returns a disconnect fault if the presence channel has
// reported the candidate leaving since the last check. Called by the
// engine at turn boundaries.
func (m *Manager) DrainPresence() *models.FaultEvent {
	for {
		select {
		case event := <-m.presence.Events():
			if !event.Connected {
				return &models.FaultEvent{
					Kind:     models.FaultCandidateDisconnect,
					Severity: models.SeverityFatal,
					At:       event.At,
				}
			}
		default:
			return nil
		}
	}
}

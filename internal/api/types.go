package api

import "github.com/voxhire/interview-agent/internal/models"

type HealthResponse struct {
	Status  string `json:"status" description:"Service status"`
	Version string `json:"version" description:"API version"`
}

// StartSessionRequest creates an interview session. SessionID resumes a
// paused session from its checkpoint instead of starting a fresh one.
type StartSessionRequest struct {
	SessionID  string               `json:"session_id,omitempty" description:"Identifier of a paused session to resume"`
	MeetingRef string               `json:"meeting_ref,omitempty" description:"Opaque reference to the meeting/call to join"`
	Candidate  models.CandidateInfo `json:"candidate" description:"Candidate identity and background"`
	Role       models.RoleInfo      `json:"role" description:"Role being interviewed for"`
	Config     models.SessionConfig `json:"config,omitempty" description:"Per-session overrides"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id" description:"Identifier of the created session"`
}

type CancelSessionResponse struct {
	SessionID string `json:"session_id"`
	Cancelled bool   `json:"cancelled"`
}

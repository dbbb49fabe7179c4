package api

import (
	"errors"
	"net/http"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/api/middleware"
	"github.com/voxhire/interview-agent/internal/engine"
)

type Handler struct {
	sessions *engine.SessionManager
	logger   *zerolog.Logger
}

func NewHandler(sessions *engine.SessionManager, logger *zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		logger:   logger,
	}
}

// POST /api/v1/sessions
// Body: StartSessionRequest
// Returns: StartSessionResponse
func (h *Handler) StartSession(req *restful.Request, resp *restful.Response) {
	var startRequest StartSessionRequest
	if err := req.ReadEntity(&startRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	sessionID, err := h.sessions.StartSession(req.Request.Context(), engine.StartRequest{
		SessionID:  startRequest.SessionID,
		MeetingRef: startRequest.MeetingRef,
		Candidate:  startRequest.Candidate,
		Role:       startRequest.Role,
		Config:     startRequest.Config,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to start session")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("session_id", sessionID).
		Str("candidate", startRequest.Candidate.Name).
		Str("role", startRequest.Role.Title).
		Msg("Session created")

	resp.WriteHeaderAndEntity(http.StatusCreated, StartSessionResponse{SessionID: sessionID})
}

// GET /api/v1/sessions/{session_id}/status
func (h *Handler) SessionStatus(req *restful.Request, resp *restful.Response) {
	sessionID := req.PathParameter("session_id")

	status, err := h.sessions.Status(sessionID)
	if errors.Is(err, engine.ErrSessionNotFound) {
		middleware.HandleError(resp, err, http.StatusNotFound)
		return
	}
	if err != nil {
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, status)
}

// GET /api/v1/sessions/{session_id}/assessment
func (h *Handler) SessionAssessment(req *restful.Request, resp *restful.Response) {
	sessionID := req.PathParameter("session_id")

	result, err := h.sessions.Assessment(sessionID)
	if errors.Is(err, engine.ErrSessionNotFound) {
		middleware.HandleError(resp, err, http.StatusNotFound)
		return
	}
	if errors.Is(err, engine.ErrAssessmentNotReady) {
		middleware.HandleError(resp, err, http.StatusConflict)
		return
	}
	if err != nil {
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// DELETE /api/v1/sessions/{session_id}
func (h *Handler) CancelSession(req *restful.Request, resp *restful.Response) {
	sessionID := req.PathParameter("session_id")

	err := h.sessions.Cancel(sessionID)
	if errors.Is(err, engine.ErrSessionNotFound) {
		middleware.HandleError(resp, err, http.StatusNotFound)
		return
	}
	if err != nil {
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, CancelSessionResponse{
		SessionID: sessionID,
		Cancelled: true,
	})
}

// Health handler GET /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	})
}

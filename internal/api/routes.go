package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"github.com/voxhire/interview-agent/internal/api/middleware"
	"github.com/voxhire/interview-agent/internal/engine"
	"github.com/voxhire/interview-agent/internal/models"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	// Health endpoint
	ws.
		Route(ws.GET("health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	ws.
		Route(ws.POST("/sessions").
			To(handler.StartSession).
			Doc("Start an interview session").
			Metadata(restfulspec.KeyOpenAPITags, []string{"sessions"}).
			Reads(StartSessionRequest{}).
			Writes(StartSessionResponse{}).
			Returns(201, "Created", StartSessionResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.
		Route(ws.GET("/sessions/{session_id}/status").
			To(handler.SessionStatus).
			Doc("Get session status").
			Metadata(restfulspec.KeyOpenAPITags, []string{"sessions"}).
			Param(ws.PathParameter("session_id", "Session identifier").DataType("string")).
			Writes(engine.StatusView{}).
			Returns(200, "OK", engine.StatusView{}).
			Returns(404, "Session Not Found", middleware.ErrorResponse{}))

	ws.
		Route(ws.GET("/sessions/{session_id}/assessment").
			To(handler.SessionAssessment).
			Doc("Get the final assessment of a terminated session").
			Metadata(restfulspec.KeyOpenAPITags, []string{"sessions"}).
			Param(ws.PathParameter("session_id", "Session identifier").DataType("string")).
			Writes(models.Assessment{}).
			Returns(200, "OK", models.Assessment{}).
			Returns(404, "Session Not Found", middleware.ErrorResponse{}).
			Returns(409, "Session Still Running", middleware.ErrorResponse{}))

	ws.
		Route(ws.DELETE("/sessions/{session_id}").
			To(handler.CancelSession).
			Doc("Cancel a running session").
			Metadata(restfulspec.KeyOpenAPITags, []string{"sessions"}).
			Param(ws.PathParameter("session_id", "Session identifier").DataType("string")).
			Writes(CancelSessionResponse{}).
			Returns(200, "OK", CancelSessionResponse{}).
			Returns(404, "Session Not Found", middleware.ErrorResponse{}))

	container.Add(ws)
}

package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/guardgate/guard-agent/internal/api/middleware"
	"github.com/guardgate/guard-agent/internal/models"
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
		Route(ws.POST("/generate").
			To(handler.Generate).
			Doc("Run the validated generation pipeline").
			Metadata(restfulspec.KeyOpenAPITags, []string{"generate"}).
			Reads(models.GenerationRequest{}).
			Writes(models.Outcome{}).
			Returns(200, "OK", models.Outcome{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(422, "Structured Output Failure", models.Outcome{}).
			Returns(502, "Generation Failure", middleware.ErrorResponse{}).
			Returns(504, "Generation Timeout", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/validate/{gate_name}").
			To(handler.ValidateGate).
			Doc("Run a single named gate, no generation").
			Metadata(restfulspec.KeyOpenAPITags, []string{"validate"}).
			Param(ws.PathParameter("gate_name", "Gate name (input_safety, output_quality, content_moderation)").DataType("string")).
			Reads(models.GenerationRequest{}).
			Writes(models.Outcome{}).
			Returns(200, "OK", models.Outcome{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(404, "Gate Not Found", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	container.Add(ws)
}

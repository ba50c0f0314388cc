package rest

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"renderfarm/task-engine/internal/parser"
	"renderfarm/task-engine/pkg/export"
	"renderfarm/task-engine/pkg/task"
)

// healthCheck handles GET /health.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// listTaskTypes handles GET /api/v1/tasks. It returns every registered
// task type with its attribute schema, for workflow designers.
func (s *Server) listTaskTypes(c *fiber.Ctx) error {
	infos := task.Types()

	types := make([]TaskTypeResponse, 0, len(infos))
	for _, info := range infos {
		attrs := make([]AttributeResponse, 0, len(info.Schema))
		for _, a := range info.Schema {
			attrs = append(attrs, AttributeResponse{
				Name:         a.Name,
				Type:         string(a.Type),
				Default:      a.Default,
				Required:     a.Required,
				Configurable: a.Configurable,
				Serialize:    a.Serialize,
				Description:  a.Description,
			})
		}
		types = append(types, TaskTypeResponse{Name: info.Name, Attributes: attrs})
	}

	return c.JSON(TaskTypeListResponse{Types: types, Total: len(types)})
}

// validateWorkflows handles POST /api/v1/workflows/validate. It parses
// the document, materializes the requested workflows and validates every
// task. Document problems are reported in the response body, not as an
// HTTP error: an invalid document is the expected outcome of this call.
func (s *Server) validateWorkflows(c *fiber.Ctx) error {
	var req ValidateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if strings.TrimSpace(req.YAML) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Field 'yaml' is required",
		})
	}

	loader := parser.NewLoaderFromBytes("request", []byte(req.YAML), s.config.Parser)

	names, err := loader.WorkflowNames()
	if err != nil {
		return c.JSON(ValidateResponse{Valid: false, Error: err.Error()})
	}
	if req.Workflow != "" {
		names = []string{req.Workflow}
	}

	total := 0
	for _, name := range names {
		tasks, err := loader.Workflow(name)
		if err != nil {
			return c.JSON(ValidateResponse{Valid: false, Error: err.Error()})
		}
		for _, t := range tasks {
			if err := t.Validate(); err != nil {
				return c.JSON(ValidateResponse{Valid: false, Error: err.Error()})
			}
		}
		total += len(tasks)
	}

	return c.JSON(ValidateResponse{Valid: true, Workflows: names, Tasks: total})
}

// exportWorkflow handles POST /api/v1/workflows/export. It materializes
// the named workflow and serializes it into farm-executable artifacts.
func (s *Server) exportWorkflow(c *fiber.Ctx) error {
	var req ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if strings.TrimSpace(req.YAML) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Field 'yaml' is required",
		})
	}
	if req.Workflow == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Field 'workflow' is required",
		})
	}

	format := s.config.ExportFormat
	if req.Format != "" {
		format = req.Format
	}
	jobName := req.JobName
	if jobName == "" {
		jobName = req.Workflow
	}
	exporter, err := export.New(export.Config{
		Format:       export.Format(format),
		Placeholders: req.Farm,
		JobName:      jobName,
		ScratchDir:   s.config.ScratchDir,
		Shell:        s.config.ExportShell,
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	loader := parser.NewLoaderFromBytes("request", []byte(req.YAML), s.config.Parser)
	tasks, err := loader.Workflow(req.Workflow)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_workflow",
			Message: err.Error(),
		})
	}

	artifacts := make([]export.Artifact, 0, len(tasks))
	for _, t := range tasks {
		arts, err := exporter.Export(t)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_workflow",
				Message: err.Error(),
			})
		}
		artifacts = append(artifacts, arts...)
	}

	return c.JSON(ExportResponse{Artifacts: artifacts, Total: len(artifacts)})
}

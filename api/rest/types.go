// Package rest provides the REST API server for the task engine: task
// type discovery, workflow validation and artifact export for the
// workflow designer.
package rest

import (
	"renderfarm/task-engine/pkg/export"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// AttributeResponse describes one declared attribute of a task type.
type AttributeResponse struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Default      any    `json:"default,omitempty"`
	Required     bool   `json:"required"`
	Configurable bool   `json:"configurable"`
	Serialize    bool   `json:"serialize"`
	Description  string `json:"description,omitempty"`
}

// TaskTypeResponse describes a registered task type. Attributes are in
// declaration order, which is also the export serialization order.
type TaskTypeResponse struct {
	Name       string              `json:"name"`
	Attributes []AttributeResponse `json:"attributes"`
}

// TaskTypeListResponse lists the registered task types.
type TaskTypeListResponse struct {
	Types []TaskTypeResponse `json:"types"`
	Total int                `json:"total"`
}

// ValidateRequest carries a workflow document for validation. When
// Workflow is set only that workflow is validated, otherwise every
// workflow the document declares.
type ValidateRequest struct {
	YAML     string `json:"yaml"`
	Workflow string `json:"workflow,omitempty"`
}

// ValidateResponse reports the outcome of validating a document. Error
// carries the first problem found, with line and column information for
// malformed YAML.
type ValidateResponse struct {
	Valid     bool     `json:"valid"`
	Workflows []string `json:"workflows,omitempty"`
	Tasks     int      `json:"tasks,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ExportRequest carries a workflow document for artifact export. Farm
// requests placeholder mode: no chunking, frame bounds left as farm
// tokens for the scheduler to substitute.
type ExportRequest struct {
	YAML     string `json:"yaml"`
	Workflow string `json:"workflow"`
	Format   string `json:"format,omitempty"`
	Farm     bool   `json:"farm,omitempty"`
	JobName  string `json:"job_name,omitempty"`
}

// ExportResponse carries the farm-executable artifacts of an export, in
// workflow order with chunks in ascending frame order.
type ExportResponse struct {
	Artifacts []export.Artifact `json:"artifacts"`
	Total     int               `json:"total"`
}

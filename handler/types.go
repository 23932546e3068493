package handler

import "github.com/joeblew999/pdffs/pkg/pipeline"

// Response types shared by the HTTP API

// RootResponse is returned by the / endpoint
type RootResponse struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Worker  string `json:"worker,omitempty"`
}

// OperationInfo describes one registered processor
type OperationInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// OperationsResponse is returned by /operations
type OperationsResponse struct {
	Operations []OperationInfo `json:"operations"`
	Count      int             `json:"count"`
}

// ProcessResponse is the envelope plus where its outputs were stored
type ProcessResponse struct {
	*pipeline.Output
	JobID    string `json:"jobId"`
	Manifest string `json:"manifest,omitempty"`
}

// JobOutputsResponse is returned by GET /jobs/{job}/outputs
type JobOutputsResponse struct {
	JobID string   `json:"jobId"`
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}

// DeleteJobResponse is returned by DELETE /jobs/{job}
type DeleteJobResponse struct {
	JobID   string `json:"jobId"`
	Deleted int    `json:"deleted"`
}

// ErrorResponse is returned for request level failures
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
	Success bool     `json:"success"`
}

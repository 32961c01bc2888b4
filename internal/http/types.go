package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fyrsmithlabs/esgmetrics/internal/aggregate"
	"github.com/fyrsmithlabs/esgmetrics/internal/evidence"
	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
	"github.com/fyrsmithlabs/esgmetrics/internal/pipeline"
	"github.com/fyrsmithlabs/esgmetrics/internal/reconcile"
	"github.com/fyrsmithlabs/esgmetrics/internal/taskstore"
	"github.com/fyrsmithlabs/esgmetrics/internal/tenant"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// ResolveRequest is the request body for POST /api/v1/evidence/resolve.
type ResolveRequest struct {
	TaskID string          `json:"task_id"`
	Items  []evidence.Item `json:"items"`
}

// AggregateRequest is the request body for POST /api/v1/metrics/aggregate.
type AggregateRequest struct {
	Observations []extraction.Observation `json:"observations"`
}

// AggregateResponse is the response body for POST /api/v1/metrics/aggregate.
type AggregateResponse struct {
	Series map[string]aggregate.MetricSeries `json:"series"`
}

// AddEvidenceRequest is the request body for
// POST /api/v1/tenants/:tenant/tasks/:task/evidence.
type AddEvidenceRequest struct {
	Items []evidence.Item `json:"items"`
}

// AddEvidenceResponse reports the task's stored item count.
type AddEvidenceResponse struct {
	Count int `json:"count"`
}

type syncRequest struct {
	Tasks []reconcile.TaskSyncRecord `json:"tasks"`
}

// decodeSyncBody accepts {"tasks": [...]} or a bare array.
func decodeSyncBody(r io.Reader) ([]reconcile.TaskSyncRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var records []reconcile.TaskSyncRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var req syncRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return req.Tasks, nil
}

// isClientError reports whether err was caused by the request.
func isClientError(err error) bool {
	return errors.Is(err, tenant.ErrInvalidTenantID) ||
		errors.Is(err, tenant.ErrInvalidTaskID) ||
		errors.Is(err, pipeline.ErrNoTasks) ||
		errors.Is(err, taskstore.ErrEmptyBatch)
}

// Package pipeline builds tenant dashboards from stored evidence.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/esgmetrics/internal/aggregate"
	"github.com/fyrsmithlabs/esgmetrics/internal/evidence"
	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
	"github.com/fyrsmithlabs/esgmetrics/internal/kvstore"
	"github.com/fyrsmithlabs/esgmetrics/internal/logging"
	"github.com/fyrsmithlabs/esgmetrics/internal/tenant"
	"go.uber.org/zap"
)

// ErrNoTasks is returned when a run names no tasks.
var ErrNoTasks = errors.New("at least one task id is required")

// SkippedItem is a skipped evidence item together with its task.
type SkippedItem struct {
	TaskID string `json:"taskId"`
	evidence.Skipped
}

// Summary is the outcome of one dashboard run.
type Summary struct {
	TenantID     string                            `json:"tenant_id"`
	RuleVersion  string                            `json:"rule_version"`
	Series       map[string]aggregate.MetricSeries `json:"series"`
	Observations []extraction.Observation          `json:"observations"`
	Skipped      []SkippedItem                     `json:"skipped"`
}

// Pipeline loads evidence from a store, resolves it and aggregates the
// observations.
type Pipeline struct {
	store    kvstore.Store
	resolver *evidence.Resolver
	logger   *logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline. A nil resolver uses the default rule table.
func New(store kvstore.Store, resolver *evidence.Resolver, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if resolver == nil {
		resolver = evidence.NewResolver()
	}

	p := &Pipeline{store: store, resolver: resolver}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) log(ctx context.Context) *logging.Logger {
	if p.logger != nil {
		return p.logger
	}
	return logging.FromContext(ctx)
}

// Evidence returns the stored evidence items for a task. Missing evidence
// is empty.
func (p *Pipeline) Evidence(ctx context.Context, tenantID, taskID string) ([]evidence.Item, error) {
	key, err := tenant.EvidenceKey(tenantID, taskID)
	if err != nil {
		return nil, err
	}

	raw, ok, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence: %w", err)
	}
	return decodeEvidence(raw, ok, taskID)
}

// decodeEvidence parses a stored evidence array. Missing evidence is empty.
func decodeEvidence(raw string, ok bool, taskID string) ([]evidence.Item, error) {
	if !ok || raw == "" {
		return []evidence.Item{}, nil
	}

	var items []evidence.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("malformed evidence for task %s: %w", taskID, err)
	}
	if items == nil {
		items = []evidence.Item{}
	}
	return items, nil
}

// AddEvidence appends items to a task's stored evidence and returns the new
// item count. Concurrent appends to the same task are all kept.
func (p *Pipeline) AddEvidence(ctx context.Context, tenantID, taskID string, items []evidence.Item) (int, error) {
	key, err := tenant.EvidenceKey(tenantID, taskID)
	if err != nil {
		return 0, err
	}

	var count int
	err = p.store.Update(ctx, key, func(cur string, ok bool) (string, bool, error) {
		existing, err := decodeEvidence(cur, ok, taskID)
		if err != nil {
			return "", false, err
		}
		all := append(existing, items...)
		data, err := json.Marshal(all)
		if err != nil {
			return "", false, fmt.Errorf("failed to encode evidence: %w", err)
		}
		count = len(all)
		return string(data), false, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append evidence: %w", err)
	}
	return count, nil
}

// Run resolves the stored evidence of each task, in order, and aggregates
// the observations. Later tasks count as later observations for the
// period-over-period change.
func (p *Pipeline) Run(ctx context.Context, tenantID string, taskIDs []string) (Summary, error) {
	if !tenant.ValidateID(tenantID) {
		return Summary{}, fmt.Errorf("%w: %q", tenant.ErrInvalidTenantID, tenantID)
	}
	if len(taskIDs) == 0 {
		return Summary{}, ErrNoTasks
	}
	ctx = logging.WithScope(ctx, logging.Scope{TenantID: tenantID})

	summary := Summary{
		TenantID:     tenantID,
		RuleVersion:  p.resolver.RuleVersion(),
		Series:       map[string]aggregate.MetricSeries{},
		Observations: []extraction.Observation{},
		Skipped:      []SkippedItem{},
	}

	for _, taskID := range taskIDs {
		items, err := p.Evidence(ctx, tenantID, taskID)
		if err != nil {
			return Summary{}, err
		}

		taskCtx := logging.WithScope(ctx, logging.Scope{TenantID: tenantID, TaskID: taskID})
		result := p.resolver.Resolve(taskCtx, taskID, items)

		summary.Observations = append(summary.Observations, result.Observations...)
		for _, s := range result.Skipped {
			summary.Skipped = append(summary.Skipped, SkippedItem{TaskID: taskID, Skipped: s})
		}
		summary.Series = aggregate.Merge(summary.Series, aggregate.Aggregate(result.Observations))
	}

	p.log(ctx).Debug(ctx, "dashboard built",
		zap.Int("tasks", len(taskIDs)),
		zap.Int("observations", len(summary.Observations)),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int("metrics", len(summary.Series)),
	)
	return summary, nil
}

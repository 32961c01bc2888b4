package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/esgmetrics/internal/kvstore"
	"github.com/fyrsmithlabs/esgmetrics/internal/logging"
	"github.com/fyrsmithlabs/esgmetrics/internal/tenant"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/esgmetrics/internal/reconcile"

// Reconciler syncs staged tasks to a Remote.
type Reconciler struct {
	store   kvstore.Store
	remote  Remote
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
	newID   func() string
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger sets the logger. If not set, the logger from the call context
// is used.
func WithLogger(logger *logging.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithTracer sets the tracer. Defaults to the global tracer provider.
func WithTracer(tracer trace.Tracer) ReconcilerOption {
	return func(r *Reconciler) {
		r.tracer = tracer
	}
}

// WithIDGenerator sets how ids are assigned to staged tasks without one.
func WithIDGenerator(newID func() string) ReconcilerOption {
	return func(r *Reconciler) {
		r.newID = newID
	}
}

// NewReconciler creates a reconciler. remote may be nil for a reconciler
// that only stages; Reconcile then fails for non-empty batches.
func NewReconciler(store kvstore.Store, remote Remote, opts ...ReconcilerOption) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	r := &Reconciler{
		store:   store,
		remote:  remote,
		tracer:  otel.Tracer(instrumentationName),
		metrics: NewMetrics(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Reconciler) log(ctx context.Context) *logging.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logging.FromContext(ctx)
}

// Staged returns the tenant's staged tasks. A missing batch is empty.
func (r *Reconciler) Staged(ctx context.Context, tenantID string) ([]StagedTask, error) {
	key, err := tenant.StagedTasksKey(tenantID)
	if err != nil {
		return nil, err
	}

	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged tasks: %w", err)
	}
	return decodeStaged(raw, ok)
}

func decodeStaged(raw string, ok bool) ([]StagedTask, error) {
	if !ok || raw == "" {
		return []StagedTask{}, nil
	}

	var tasks []StagedTask
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("malformed staged tasks: %w", err)
	}
	if tasks == nil {
		tasks = []StagedTask{}
	}
	return tasks, nil
}

// Stage merges tasks into the tenant's staged batch. A task replaces the
// staged task with the same id; tasks without an id get a new one. The
// merged batch is returned.
func (r *Reconciler) Stage(ctx context.Context, tenantID string, tasks []StagedTask) ([]StagedTask, error) {
	key, err := tenant.StagedTasksKey(tenantID)
	if err != nil {
		return nil, err
	}

	incoming := make([]StagedTask, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = r.newID()
		}
		incoming[i] = t
	}

	var batch []StagedTask
	err = r.store.Update(ctx, key, func(cur string, ok bool) (string, bool, error) {
		existing, err := decodeStaged(cur, ok)
		if err != nil {
			return "", false, err
		}
		batch = mergeStaged(existing, incoming)
		data, err := json.Marshal(batch)
		if err != nil {
			return "", false, fmt.Errorf("failed to encode staged tasks: %w", err)
		}
		return string(data), false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write staged tasks: %w", err)
	}
	return batch, nil
}

func mergeStaged(batch, tasks []StagedTask) []StagedTask {
	index := make(map[string]int, len(batch))
	for i, t := range batch {
		index[t.ID] = i
	}
	for _, t := range tasks {
		if i, ok := index[t.ID]; ok {
			batch[i] = t
			continue
		}
		index[t.ID] = len(batch)
		batch = append(batch, t)
	}
	return batch
}

// StageAssessment stores the tenant's assessment-result snapshot. It is
// cleared together with the task batch.
func (r *Reconciler) StageAssessment(ctx context.Context, tenantID string, snapshot json.RawMessage) error {
	if !json.Valid(snapshot) {
		return fmt.Errorf("assessment snapshot is not valid JSON")
	}
	key, err := tenant.AssessmentKey(tenantID)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, key, string(snapshot)); err != nil {
		return fmt.Errorf("failed to write assessment snapshot: %w", err)
	}
	return nil
}

// Reconcile submits the tenant's staged batch to the remote.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID string, opts Options) Outcome {
	ctx, span := r.tracer.Start(ctx, "reconcile.Reconcile",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Bool("clear_local_storage", opts.ClearLocalStorage),
		),
	)
	defer span.End()

	out := r.reconcile(ctx, tenantID, opts)

	span.SetAttributes(
		attribute.Int("sync.created", out.Created),
		attribute.Int("sync.updated", out.Updated),
		attribute.Int("sync.errors", out.Errors),
	)
	if !out.Success {
		span.SetStatus(codes.Error, out.Message)
	}
	return out
}

func (r *Reconciler) reconcile(ctx context.Context, tenantID string, opts Options) Outcome {
	if !tenant.ValidateID(tenantID) {
		return r.fail(ctx, fmt.Errorf("%w: %q", tenant.ErrInvalidTenantID, tenantID))
	}
	ctx = logging.WithScope(ctx, logging.Scope{TenantID: tenantID})

	tasks, err := r.Staged(ctx, tenantID)
	if err != nil {
		return r.fail(ctx, err)
	}
	assessmentKey, _ := tenant.AssessmentKey(tenantID)
	snapshot, hasSnapshot, err := r.store.Get(ctx, assessmentKey)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("failed to read assessment snapshot: %w", err))
	}
	if len(tasks) == 0 {
		r.metrics.RunsTotal.WithLabelValues(resultNoop).Inc()
		r.log(ctx).Debug(ctx, "no staged tasks to sync")
		return Outcome{Success: true, Message: "no staged tasks to sync"}
	}

	if r.remote == nil {
		return r.fail(ctx, errors.New("no remote configured"))
	}

	records := make([]TaskSyncRecord, len(tasks))
	for i, t := range tasks {
		records[i] = t.Record()
	}

	resp, err := r.remote.Upsert(ctx, records)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.metrics.RecordsTotal.WithLabelValues("created").Add(float64(resp.CreatedCount))
	r.metrics.RecordsTotal.WithLabelValues("updated").Add(float64(resp.UpdatedCount))
	r.metrics.RecordsTotal.WithLabelValues("error").Add(float64(resp.ErrorCount))

	out := Outcome{
		Success: true,
		Created: resp.CreatedCount,
		Updated: resp.UpdatedCount,
		Errors:  resp.ErrorCount,
		Message: resp.Message,
	}
	if out.Message == "" {
		out.Message = fmt.Sprintf("Task sync completed: %d created, %d updated", out.Created, out.Updated)
	}

	if resp.ErrorCount > 0 {
		r.metrics.RunsTotal.WithLabelValues(resultPartial).Inc()
		fields := []zap.Field{
			zap.Int("records", len(records)),
			zap.Int("error_count", resp.ErrorCount),
		}
		for i, e := range resp.Errors {
			fields = append(fields, zap.String(fmt.Sprintf("errors.%d", i), e.TaskTitle+": "+e.Error))
		}
		r.log(ctx).Warn(ctx, "remote reported record errors, staging preserved", fields...)
		return out
	}

	r.metrics.RunsTotal.WithLabelValues(resultSuccess).Inc()
	r.log(ctx).Info(ctx, "staged tasks synced",
		zap.Int("records", len(records)),
		zap.Int("created", out.Created),
		zap.Int("updated", out.Updated),
	)

	if opts.ClearLocalStorage {
		r.clearStaging(ctx, tenantID, tasks, snapshot, hasSnapshot)
	}
	return out
}

// clearStaging removes the submitted tasks from the batch and drops the
// assessment snapshot read before submission. Tasks staged or changed while
// the remote call was in flight stay staged, as does a replaced snapshot.
// Failures are logged only; the next run resubmits the batch.
func (r *Reconciler) clearStaging(ctx context.Context, tenantID string, submitted []StagedTask, snapshot string, hasSnapshot bool) {
	tasksKey, _ := tenant.StagedTasksKey(tenantID)
	assessmentKey, _ := tenant.AssessmentKey(tenantID)

	sent := make(map[string]string, len(submitted))
	for _, t := range submitted {
		sent[t.ID] = encodeStaged(t)
	}

	err := r.store.Update(ctx, tasksKey, func(cur string, ok bool) (string, bool, error) {
		batch, err := decodeStaged(cur, ok)
		if err != nil {
			return "", false, err
		}
		remaining := batch[:0]
		for _, t := range batch {
			if enc, ok := sent[t.ID]; ok && enc == encodeStaged(t) {
				continue
			}
			remaining = append(remaining, t)
		}
		if len(remaining) == 0 {
			return "", true, nil
		}
		data, err := json.Marshal(remaining)
		if err != nil {
			return "", false, err
		}
		return string(data), false, nil
	})
	if err != nil {
		r.log(ctx).Error(ctx, "failed to clear staging", zap.String("key", tasksKey), zap.Error(err))
	}

	if !hasSnapshot {
		return
	}
	err = r.store.Update(ctx, assessmentKey, func(cur string, ok bool) (string, bool, error) {
		if ok && cur == snapshot {
			return "", true, nil
		}
		return cur, !ok, nil
	})
	if err != nil {
		r.log(ctx).Error(ctx, "failed to clear staging", zap.String("key", assessmentKey), zap.Error(err))
	}
}

// encodeStaged is the comparison form of a staged task.
func encodeStaged(t StagedTask) string {
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return string(data)
}

func (r *Reconciler) fail(ctx context.Context, err error) Outcome {
	r.metrics.RunsTotal.WithLabelValues(resultFailure).Inc()
	r.log(ctx).Error(ctx, "task sync failed", zap.Error(err))
	return Outcome{Success: false, Errors: 1, Message: fmt.Sprintf("sync failed: %v", err)}
}

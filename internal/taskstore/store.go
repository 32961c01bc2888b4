package taskstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/esgmetrics/internal/logging"
	"github.com/fyrsmithlabs/esgmetrics/internal/reconcile"
	"github.com/fyrsmithlabs/esgmetrics/internal/tenant"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const timeLayout = time.RFC3339Nano

// Store persists tasks in SQLite.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	newID  func() string
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps and due-date fallbacks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets how task ids are assigned.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithLogger sets the logger. If not set, the logger from the call context
// is used.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open creates or opens the database at path and applies the schema. The
// parent directory is created if needed.
func Open(path string, opts ...Option) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) log(ctx context.Context) *logging.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.FromContext(ctx)
}

// Upsert applies records for a tenant. It returns an error only for an
// invalid tenant or an empty batch; per-record failures are reported in
// the response.
func (s *Store) Upsert(ctx context.Context, tenantID string, records []reconcile.TaskSyncRecord) (reconcile.UpsertResponse, error) {
	if !tenant.ValidateID(tenantID) {
		return reconcile.UpsertResponse{}, fmt.Errorf("%w: %q", tenant.ErrInvalidTenantID, tenantID)
	}
	if len(records) == 0 {
		return reconcile.UpsertResponse{}, ErrEmptyBatch
	}

	var resp reconcile.UpsertResponse
	for _, rec := range records {
		created, err := s.upsertOne(ctx, tenantID, rec)
		if err != nil {
			title := rec.Title
			if title == "" {
				title = "Unknown"
			}
			s.log(ctx).Error(ctx, "failed to sync task",
				zap.String("tenant.id", tenantID),
				zap.String("task_title", title),
				zap.Error(err),
			)
			resp.Errors = append(resp.Errors, reconcile.RecordError{TaskTitle: title, Error: err.Error()})
			continue
		}
		if created {
			resp.CreatedCount++
		} else {
			resp.UpdatedCount++
		}
	}
	resp.ErrorCount = len(resp.Errors)
	resp.Message = fmt.Sprintf("Task sync completed: %d created, %d updated", resp.CreatedCount, resp.UpdatedCount)

	if resp.ErrorCount > 0 {
		s.log(ctx).Warn(ctx, "task sync completed with errors",
			zap.String("tenant.id", tenantID),
			zap.Int("error_count", resp.ErrorCount),
		)
	} else {
		s.log(ctx).Info(ctx, "task sync successful",
			zap.String("tenant.id", tenantID),
			zap.Int("synced", resp.CreatedCount+resp.UpdatedCount),
		)
	}
	return resp, nil
}

// upsertOne applies a single record in its own transaction and reports
// whether a task was created.
func (s *Store) upsertOne(ctx context.Context, tenantID string, rec reconcile.TaskSyncRecord) (bool, error) {
	now := s.now().UTC()
	c, err := normalize(rec, now)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := findExisting(ctx, tx, tenantID, c)
	if err != nil {
		return false, err
	}

	created := existing == nil
	var task Task
	if created {
		task = newTask(s.newID(), tenantID, c, now)
		err = insertTask(ctx, tx, task)
	} else {
		task = *existing
		task.apply(c, now)
		err = updateTask(ctx, tx, task)
	}
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return created, nil
}

// findExisting matches by external id, then by title.
func findExisting(ctx context.Context, tx *sql.Tx, tenantID string, c changes) (*Task, error) {
	if c.externalID != "" {
		t, err := scanTask(tx.QueryRowContext(ctx,
			selectTask+` WHERE tenant_id = ? AND external_id = ? LIMIT 1`, tenantID, c.externalID))
		if err == nil || !errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
	}
	if c.title != "" {
		t, err := scanTask(tx.QueryRowContext(ctx,
			selectTask+` WHERE tenant_id = ? AND title = ? LIMIT 1`, tenantID, c.title))
		if err == nil || !errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
	}
	return nil, nil
}

// List returns a tenant's tasks, oldest first.
func (s *Store) List(ctx context.Context, tenantID string) ([]Task, error) {
	if !tenant.ValidateID(tenantID) {
		return nil, fmt.Errorf("%w: %q", tenant.ErrInvalidTenantID, tenantID)
	}

	rows, err := s.db.QueryContext(ctx, selectTask+` WHERE tenant_id = ? ORDER BY created_at, rowid`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Remote binds the store to one tenant so it can stand in for a remote
// system of record.
func (s *Store) Remote(tenantID string) reconcile.Remote {
	return tenantRemote{store: s, tenantID: tenantID}
}

type tenantRemote struct {
	store    *Store
	tenantID string
}

func (r tenantRemote) Upsert(ctx context.Context, records []reconcile.TaskSyncRecord) (reconcile.UpsertResponse, error) {
	return r.store.Upsert(ctx, r.tenantID, records)
}

const selectTask = `SELECT id, tenant_id, external_id, title, description, category, priority, status,
	task_type, due_date, compliance_context, action_required, framework_tags, sector,
	estimated_hours, created_at, updated_at FROM tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t                    Task
		externalID, dueDate  sql.NullString
		tags                 string
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.TenantID, &externalID, &t.Title, &t.Description, &t.Category,
		&t.Priority, &t.Status, &t.TaskType, &dueDate, &t.ComplianceContext, &t.ActionRequired,
		&tags, &t.Sector, &t.EstimatedHours, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	t.ExternalID = externalID.String
	if dueDate.Valid {
		d, err := time.Parse(timeLayout, dueDate.String)
		if err != nil {
			return nil, fmt.Errorf("malformed due_date for task %s: %w", t.ID, err)
		}
		t.DueDate = &d
	}
	if err := json.Unmarshal([]byte(tags), &t.FrameworkTags); err != nil {
		return nil, fmt.Errorf("malformed framework_tags for task %s: %w", t.ID, err)
	}
	if t.FrameworkTags == nil {
		t.FrameworkTags = []string{}
	}
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("malformed created_at for task %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("malformed updated_at for task %s: %w", t.ID, err)
	}
	return &t, nil
}

func insertTask(ctx context.Context, tx *sql.Tx, t Task) error {
	args, err := columns(t)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO tasks (id, tenant_id, external_id, title, description,
		category, priority, status, task_type, due_date, compliance_context, action_required,
		framework_tags, sector, estimated_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append([]any{t.ID, t.TenantID}, append(args, t.CreatedAt.Format(timeLayout), t.UpdatedAt.Format(timeLayout))...)...)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func updateTask(ctx context.Context, tx *sql.Tx, t Task) error {
	args, err := columns(t)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE tasks SET external_id = ?, title = ?, description = ?,
		category = ?, priority = ?, status = ?, task_type = ?, due_date = ?, compliance_context = ?,
		action_required = ?, framework_tags = ?, sector = ?, estimated_hours = ?, updated_at = ?
		WHERE id = ?`,
		append(args, t.UpdatedAt.Format(timeLayout), t.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// columns returns the mutable columns, external_id through estimated_hours.
func columns(t Task) ([]any, error) {
	tags, err := json.Marshal(t.FrameworkTags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode framework_tags: %w", err)
	}
	var externalID, dueDate sql.NullString
	if t.ExternalID != "" {
		externalID = sql.NullString{String: t.ExternalID, Valid: true}
	}
	if t.DueDate != nil {
		dueDate = sql.NullString{String: t.DueDate.UTC().Format(timeLayout), Valid: true}
	}
	return []any{
		externalID, t.Title, t.Description, t.Category, t.Priority, t.Status, t.TaskType,
		dueDate, t.ComplianceContext, t.ActionRequired, string(tags), t.Sector, t.EstimatedHours,
	}, nil
}

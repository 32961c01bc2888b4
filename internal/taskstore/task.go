package taskstore

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/esgmetrics/internal/reconcile"
)

// Field limits, in runes.
const (
	maxTitle             = 200
	maxDescription       = 500
	maxComplianceContext = 300
	maxActionRequired    = 300
)

// Defaults for fields absent on create.
const (
	DefaultCategory       = "environmental"
	DefaultPriority       = "medium"
	DefaultStatus         = "todo"
	DefaultEstimatedHours = 4.0
	TaskTypeAssessment    = "esg_assessment"
	untitled              = "Untitled Task"
)

// dueDateFallback is added to now when a due date cannot be parsed.
const dueDateFallback = 30 * 24 * time.Hour

var (
	// ErrEmptyBatch is returned when Upsert receives no records.
	ErrEmptyBatch = errors.New("tasks data is required and must be a non-empty array")

	// ErrInvalidField is wrapped by per-record validation failures.
	ErrInvalidField = errors.New("invalid field")
)

var (
	validCategories = map[string]bool{"environmental": true, "social": true, "governance": true, "general": true}
	validPriorities = map[string]bool{"high": true, "medium": true, "low": true}
	validStatuses   = map[string]bool{"todo": true, "in_progress": true, "completed": true, "blocked": true, "pending_review": true}
)

// dueDateLayouts are tried in order.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Task is a stored task.
type Task struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	ExternalID        string     `json:"external_id,omitempty"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	Priority          string     `json:"priority"`
	Status            string     `json:"status"`
	TaskType          string     `json:"task_type"`
	DueDate           *time.Time `json:"due_date"`
	ComplianceContext string     `json:"compliance_context"`
	ActionRequired    string     `json:"action_required"`
	FrameworkTags     []string   `json:"framework_tags"`
	Sector            string     `json:"sector"`
	EstimatedHours    float64    `json:"estimated_hours"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// changes is a validated record. Zero values mean "not supplied".
type changes struct {
	externalID        string
	title             string
	description       string
	category          string
	priority          string
	status            string
	dueDate           *time.Time
	complianceContext string
	actionRequired    string
	frameworkTags     []string
	sector            string
	estimatedHours    float64
}

// normalize validates a record and applies truncation.
func normalize(rec reconcile.TaskSyncRecord, now time.Time) (changes, error) {
	c := changes{
		externalID:        strings.TrimSpace(rec.ID),
		title:             truncate(strings.TrimSpace(rec.Title), maxTitle),
		description:       truncate(rec.Description, maxDescription),
		category:          rec.Category,
		priority:          rec.Priority,
		status:            rec.Status,
		complianceContext: truncate(rec.ComplianceContext, maxComplianceContext),
		actionRequired:    truncate(rec.ActionRequired, maxActionRequired),
		frameworkTags:     rec.FrameworkTags,
		sector:            rec.Sector,
		estimatedHours:    rec.EstimatedHours,
	}

	if c.category != "" && !validCategories[c.category] {
		return c, fmt.Errorf("%w: category %q", ErrInvalidField, c.category)
	}
	if c.priority != "" && !validPriorities[c.priority] {
		return c, fmt.Errorf("%w: priority %q", ErrInvalidField, c.priority)
	}
	if c.status != "" && !validStatuses[c.status] {
		return c, fmt.Errorf("%w: status %q", ErrInvalidField, c.status)
	}
	if c.estimatedHours < 0 {
		return c, fmt.Errorf("%w: estimated_hours %v", ErrInvalidField, c.estimatedHours)
	}

	if rec.DueDate != "" {
		due := parseDueDate(rec.DueDate, now)
		c.dueDate = &due
	}
	return c, nil
}

// newTask builds a task from changes, filling defaults.
func newTask(id, tenantID string, c changes, now time.Time) Task {
	t := Task{
		ID:                id,
		TenantID:          tenantID,
		ExternalID:        c.externalID,
		Title:             c.title,
		Description:       c.description,
		Category:          orDefault(c.category, DefaultCategory),
		Priority:          orDefault(c.priority, DefaultPriority),
		Status:            orDefault(c.status, DefaultStatus),
		TaskType:          TaskTypeAssessment,
		DueDate:           c.dueDate,
		ComplianceContext: c.complianceContext,
		ActionRequired:    c.actionRequired,
		FrameworkTags:     c.frameworkTags,
		Sector:            c.sector,
		EstimatedHours:    c.estimatedHours,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if t.Title == "" {
		t.Title = untitled
	}
	if t.FrameworkTags == nil {
		t.FrameworkTags = []string{}
	}
	if t.EstimatedHours == 0 {
		t.EstimatedHours = DefaultEstimatedHours
	}
	return t
}

// apply overwrites t with the supplied (non-empty) fields of c.
func (t *Task) apply(c changes, now time.Time) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&t.ExternalID, c.externalID)
	set(&t.Title, c.title)
	set(&t.Description, c.description)
	set(&t.Category, c.category)
	set(&t.Priority, c.priority)
	set(&t.Status, c.status)
	set(&t.ComplianceContext, c.complianceContext)
	set(&t.ActionRequired, c.actionRequired)
	set(&t.Sector, c.sector)
	if c.dueDate != nil {
		t.DueDate = c.dueDate
	}
	if len(c.frameworkTags) > 0 {
		t.FrameworkTags = c.frameworkTags
	}
	if c.estimatedHours > 0 {
		t.EstimatedHours = c.estimatedHours
	}
	t.TaskType = TaskTypeAssessment
	t.UpdatedAt = now
}

func parseDueDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return now.Add(dueDateFallback).UTC()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

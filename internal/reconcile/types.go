package reconcile

// StagedTask is a task edit held in local staging.
type StagedTask struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Category          string   `json:"category,omitempty"`
	Priority          string   `json:"priority,omitempty"`
	Status            string   `json:"status,omitempty"`
	DueDate           string   `json:"dueDate,omitempty"`
	ComplianceContext string   `json:"complianceContext,omitempty"`
	ActionRequired    string   `json:"actionRequired,omitempty"`
	FrameworkTags     []string `json:"frameworkTags,omitempty"`
	Sector            string   `json:"sector,omitempty"`
	EstimatedHours    float64  `json:"estimatedHours,omitempty"`
}

// TaskSyncRecord is the wire shape submitted to the remote upsert endpoint.
// The remote creates or updates by ID.
type TaskSyncRecord struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Category          string   `json:"category,omitempty"`
	Priority          string   `json:"priority,omitempty"`
	Status            string   `json:"status,omitempty"`
	DueDate           string   `json:"due_date,omitempty"`
	ComplianceContext string   `json:"compliance_context"`
	ActionRequired    string   `json:"action_required"`
	FrameworkTags     []string `json:"framework_tags"`
	Sector            string   `json:"sector"`
	EstimatedHours    float64  `json:"estimated_hours,omitempty"`
}

// Record maps a staged task to its wire shape. Empty optional fields are
// left for the remote to default.
func (t StagedTask) Record() TaskSyncRecord {
	tags := t.FrameworkTags
	if tags == nil {
		tags = []string{}
	}
	return TaskSyncRecord{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		Category:          t.Category,
		Priority:          t.Priority,
		Status:            t.Status,
		DueDate:           t.DueDate,
		ComplianceContext: t.ComplianceContext,
		ActionRequired:    t.ActionRequired,
		FrameworkTags:     tags,
		Sector:            t.Sector,
		EstimatedHours:    t.EstimatedHours,
	}
}

// RecordError is one per-record failure reported by the remote.
type RecordError struct {
	TaskTitle string `json:"task_title"`
	Error     string `json:"error"`
}

// UpsertResponse is the remote's report for one batch.
type UpsertResponse struct {
	Message      string        `json:"message"`
	CreatedCount int           `json:"created_count"`
	UpdatedCount int           `json:"updated_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []RecordError `json:"errors,omitempty"`
}

// Options controls a reconciliation run.
type Options struct {
	// ClearLocalStorage removes staging after a run with zero remote errors.
	ClearLocalStorage bool `json:"clearLocalStorage"`
}

// Outcome reports one reconciliation run. Failures always carry Errors 1
// and zero counts.
type Outcome struct {
	Success bool   `json:"success"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Errors  int    `json:"errors"`
	Message string `json:"message"`
}

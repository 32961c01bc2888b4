// Package tenant namespaces key-value store keys per tenant and task.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// RecordKind is the kind of record stored under a tenant key.
type RecordKind string

const (
	// KindEvidence holds the evidence items uploaded against one task.
	KindEvidence RecordKind = "evidence"
	// KindTasks holds the staged task batch awaiting reconciliation.
	KindTasks RecordKind = "tasks"
	// KindAssessment holds the staged assessment-result snapshot.
	KindAssessment RecordKind = "assessment_results"
)

const (
	keyPrefix    = "esg"
	keySeparator = ":"
)

// Common errors.
var (
	ErrInvalidTenantID = errors.New("invalid tenant ID")
	ErrInvalidTaskID   = errors.New("invalid task ID")
	ErrInvalidKind     = errors.New("invalid record kind")
)

// maxIDLen bounds tenant and task identifiers.
const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID checks that id is usable inside a store key.
func ValidateID(id string) bool {
	return id != "" && len(id) <= maxIDLen && idPattern.MatchString(id)
}

// Key returns the store key for a tenant-scoped record:
//
//	esg:{kind}:{tenant}            tenant scope
//	esg:{kind}:{tenant}:{task}     tenant and task scope
//
// ValidateID rejects ":", so the parts of a key never run together.
// taskID is required for KindEvidence and must be empty otherwise.
func Key(kind RecordKind, tenantID, taskID string) (string, error) {
	if !ValidateID(tenantID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}

	switch kind {
	case KindEvidence:
		if !ValidateID(taskID) {
			return "", fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
		}
		return strings.Join([]string{keyPrefix, string(kind), tenantID, taskID}, keySeparator), nil

	case KindTasks, KindAssessment:
		if taskID != "" {
			return "", fmt.Errorf("%w: %s keys are tenant scoped", ErrInvalidTaskID, kind)
		}
		return strings.Join([]string{keyPrefix, string(kind), tenantID}, keySeparator), nil

	default:
		return "", ErrInvalidKind
	}
}

// EvidenceKey returns the key holding a task's evidence items.
func EvidenceKey(tenantID, taskID string) (string, error) {
	return Key(KindEvidence, tenantID, taskID)
}

// StagedTasksKey returns the key holding the tenant's staged task batch.
func StagedTasksKey(tenantID string) (string, error) {
	return Key(KindTasks, tenantID, "")
}

// AssessmentKey returns the key holding the tenant's staged assessment results.
func AssessmentKey(tenantID string) (string, error) {
	return Key(KindAssessment, tenantID, "")
}

package tenant

import (
	"errors"
	"strings"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name          string
		kind          RecordKind
		tenantID      string
		taskID        string
		expected      string
		expectedError error
	}{
		{
			name:     "evidence key",
			kind:     KindEvidence,
			tenantID: "acme",
			taskID:   "electricity_consumption",
			expected: "esg:evidence:acme:electricity_consumption",
		},
		{
			name:     "staged tasks key",
			kind:     KindTasks,
			tenantID: "acme-42",
			expected: "esg:tasks:acme-42",
		},
		{
			name:     "assessment key",
			kind:     KindAssessment,
			tenantID: "acme",
			expected: "esg:assessment_results:acme",
		},
		{
			name:          "missing tenant",
			kind:          KindTasks,
			expectedError: ErrInvalidTenantID,
		},
		{
			name:          "tenant with separator characters",
			kind:          KindTasks,
			tenantID:      "acme:other",
			expectedError: ErrInvalidTenantID,
		},
		{
			name:          "evidence without task",
			kind:          KindEvidence,
			tenantID:      "acme",
			expectedError: ErrInvalidTaskID,
		},
		{
			name:          "task on tenant-scoped kind",
			kind:          KindTasks,
			tenantID:      "acme",
			taskID:        "t1",
			expectedError: ErrInvalidTaskID,
		},
		{
			name:          "unknown kind",
			kind:          RecordKind("reports"),
			tenantID:      "acme",
			expectedError: ErrInvalidKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.kind, tt.tenantID, tt.taskID)
			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("Key() error = %v, want %v", err, tt.expectedError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Key() unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Key() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKeyHelpers(t *testing.T) {
	ev, err := EvidenceKey("acme", "t1")
	if err != nil || ev != "esg:evidence:acme:t1" {
		t.Errorf("EvidenceKey() = %q, %v", ev, err)
	}
	tasks, err := StagedTasksKey("acme")
	if err != nil || tasks != "esg:tasks:acme" {
		t.Errorf("StagedTasksKey() = %q, %v", tasks, err)
	}
	as, err := AssessmentKey("acme")
	if err != nil || as != "esg:assessment_results:acme" {
		t.Errorf("AssessmentKey() = %q, %v", as, err)
	}
}

func TestValidateID(t *testing.T) {
	if !ValidateID("tenant_1-a") {
		t.Error("ValidateID(tenant_1-a) = false")
	}
	for _, bad := range []string{"", "a b", "a/b", strings.Repeat("x", maxIDLen+1)} {
		if ValidateID(bad) {
			t.Errorf("ValidateID(%q) = true, want false", bad)
		}
	}
}

func TestKey_DistinctScopesNeverCollide(t *testing.T) {
	pairs := [][2][2]string{
		{{"acme", "west_energy"}, {"acme_west", "energy"}},
		{{"acme", "west-energy"}, {"acme-west", "energy"}},
		{{"a", "b_c_d"}, {"a_b", "c_d"}},
	}
	for _, p := range pairs {
		k1, err := EvidenceKey(p[0][0], p[0][1])
		if err != nil {
			t.Fatal(err)
		}
		k2, err := EvidenceKey(p[1][0], p[1][1])
		if err != nil {
			t.Fatal(err)
		}
		if k1 == k2 {
			t.Errorf("EvidenceKey(%q, %q) and EvidenceKey(%q, %q) share key %q", p[0][0], p[0][1], p[1][0], p[1][1], k1)
		}
	}

	// A tenant-scoped key never equals an evidence key of another tenant.
	staged, _ := StagedTasksKey("acme")
	for _, id := range []string{"tasks", "acme"} {
		ev, _ := EvidenceKey("esg", id)
		if ev == staged {
			t.Errorf("EvidenceKey(esg, %q) collides with StagedTasksKey(acme)", id)
		}
	}
}

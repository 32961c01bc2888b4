package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/fyrsmithlabs/esgmetrics/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_MergesByID(t *testing.T) {
	n := 0
	r, err := NewReconciler(kvstore.NewMemory(), nil, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))
	require.NoError(t, err)
	ctx := context.Background()

	batch, err := r.Stage(ctx, "acme", []StagedTask{{ID: "t1", Title: "first"}, {Title: "no id"}})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "gen-1", batch[1].ID)

	batch, err = r.Stage(ctx, "acme", []StagedTask{{ID: "t1", Title: "edited", Status: "in_progress"}, {ID: "t9", Title: "new"}})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, "edited", batch[0].Title)
	assert.Equal(t, "t9", batch[2].ID)

	staged, err := r.Staged(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, batch, staged)
}

func TestStage_InvalidTenant(t *testing.T) {
	r, err := NewReconciler(kvstore.NewMemory(), nil)
	require.NoError(t, err)

	_, err = r.Stage(context.Background(), "", []StagedTask{{Title: "x"}})
	assert.Error(t, err)
}

func TestStageAssessment(t *testing.T) {
	store := kvstore.NewMemory()
	r, err := NewReconciler(store, nil)
	require.NoError(t, err)

	require.NoError(t, r.StageAssessment(context.Background(), "acme", json.RawMessage(`{"score":72}`)))
	v, ok, err := store.Get(context.Background(), "esg:assessment_results:acme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"score":72}`, v)

	assert.Error(t, r.StageAssessment(context.Background(), "acme", json.RawMessage(`{`)))
}

func TestStagedTask_JSONShape(t *testing.T) {
	var task StagedTask
	require.NoError(t, json.Unmarshal([]byte(`{
		"id":"t1","title":"Track energy","dueDate":"2024-06-30",
		"complianceContext":"GRI 302-1","actionRequired":"Upload bills",
		"frameworkTags":["GRI"],"estimatedHours":2.5
	}`), &task))

	b, err := json.Marshal(task.Record())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":"t1","title":"Track energy","description":"","due_date":"2024-06-30",
		"compliance_context":"GRI 302-1","action_required":"Upload bills",
		"framework_tags":["GRI"],"sector":"","estimated_hours":2.5
	}`, string(b))
}

func TestNewReconciler_NilStore(t *testing.T) {
	_, err := NewReconciler(nil, nil)
	assert.Error(t, err)
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyrsmithlabs/esgmetrics/internal/evidence"
	"github.com/fyrsmithlabs/esgmetrics/internal/kvstore"
	"github.com/fyrsmithlabs/esgmetrics/internal/tenant"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }

func setupRedis(t *testing.T) (*kvstore.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	s, err := kvstore.NewRedis(&redis.Options{Addr: mr.Addr()}, "esg:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func newPipeline(t *testing.T, store kvstore.Store) *Pipeline {
	t.Helper()
	p, err := New(store, evidence.NewResolver(evidence.WithClock(fixedNow)))
	require.NoError(t, err)
	return p
}

func TestRun_FromRedis(t *testing.T) {
	store, mr := setupRedis(t)
	p := newPipeline(t, store)
	ctx := context.Background()

	csv := "Date,Energy (kWh),Water (L)\n2024-01-01,1200,2500\n2024-02-01,1150,2400"
	_, err := p.AddEvidence(ctx, "acme", "utility_upload", []evidence.Item{
		{Type: evidence.ItemFile, FileName: "utilities.csv", FileData: csv},
	})
	require.NoError(t, err)
	_, err = p.AddEvidence(ctx, "acme", "electricity_consumption", []evidence.Item{
		{Type: evidence.ItemData, Value: json.RawMessage(`1100`), UploadedAt: "2024-03-01"},
		{Type: evidence.ItemFile, FileName: "scan.pdf", FileType: "application/pdf", FileData: "JVBERi0xLjQK"},
	})
	require.NoError(t, err)

	// Stored under the tenant key with the store prefix.
	key, _ := tenant.EvidenceKey("acme", "utility_upload")
	assert.True(t, mr.Exists("esg:"+key))

	summary, err := p.Run(ctx, "acme", []string{"utility_upload", "electricity_consumption", "no_evidence_yet"})
	require.NoError(t, err)

	assert.Equal(t, "acme", summary.TenantID)
	assert.NotEmpty(t, summary.RuleVersion)
	assert.Len(t, summary.Observations, 5)

	energy := summary.Series["energy_consumption"]
	assert.Equal(t, []float64{1200, 1150, 1100}, energy.Values)
	assert.Equal(t, 1100.0, energy.Latest)
	assert.Equal(t, 3450.0, energy.Total)
	require.NotNil(t, energy.Change)
	assert.InDelta(t, (1100.0-1150.0)/1150.0*100, *energy.Change, 1e-9)

	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "electricity_consumption", summary.Skipped[0].TaskID)
	assert.Equal(t, evidence.SkipUnsupported, summary.Skipped[0].Kind)
	assert.Equal(t, 1, summary.Skipped[0].Index)
}

func TestRun_EmptyEvidence(t *testing.T) {
	p := newPipeline(t, kvstore.NewMemory())

	summary, err := p.Run(context.Background(), "acme", []string{"nothing"})
	require.NoError(t, err)
	assert.NotNil(t, summary.Series)
	assert.Empty(t, summary.Series)
	assert.NotNil(t, summary.Observations)
	assert.NotNil(t, summary.Skipped)
}

func TestRun_Errors(t *testing.T) {
	store := kvstore.NewMemory()
	p := newPipeline(t, store)
	ctx := context.Background()

	_, err := p.Run(ctx, "acme", nil)
	assert.ErrorIs(t, err, ErrNoTasks)

	_, err = p.Run(ctx, "bad tenant", []string{"t"})
	assert.ErrorIs(t, err, tenant.ErrInvalidTenantID)

	_, err = p.Run(ctx, "acme", []string{"bad/task"})
	assert.Error(t, err)

	key, _ := tenant.EvidenceKey("acme", "broken")
	require.NoError(t, store.Set(ctx, key, "{"))
	_, err = p.Run(ctx, "acme", []string{"broken"})
	assert.ErrorContains(t, err, "malformed evidence")
}

func TestAddEvidence_Appends(t *testing.T) {
	p := newPipeline(t, kvstore.NewMemory())
	ctx := context.Background()

	n, err := p.AddEvidence(ctx, "acme", "t1", []evidence.Item{{Type: evidence.ItemData, Value: json.RawMessage(`1`)}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.AddEvidence(ctx, "acme", "t1", []evidence.Item{{Type: evidence.ItemData, Value: json.RawMessage(`2`)}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := p.Evidence(ctx, "acme", "t1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `2`, string(items[1].Value))
}

// slowStore widens the window between a read and the write that follows it.
type slowStore struct {
	kvstore.Store
}

func (s slowStore) Get(ctx context.Context, key string) (string, bool, error) {
	time.Sleep(time.Millisecond)
	return s.Store.Get(ctx, key)
}

func TestAddEvidence_ConcurrentAppendsAreKept(t *testing.T) {
	redisStore, _ := setupRedis(t)
	stores := map[string]kvstore.Store{
		"memory": slowStore{kvstore.NewMemory()},
		"redis":  slowStore{redisStore},
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			p := newPipeline(t, store)
			ctx := context.Background()

			const writers = 50
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					item := evidence.Item{Type: evidence.ItemData, Value: json.RawMessage(fmt.Sprint(i))}
					if _, err := p.AddEvidence(ctx, "acme", "t1", []evidence.Item{item}); err != nil {
						errs <- err
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			items, err := p.Evidence(ctx, "acme", "t1")
			require.NoError(t, err)
			assert.Len(t, items, writers)
		})
	}
}

func TestSummary_JSON(t *testing.T) {
	p := newPipeline(t, kvstore.NewMemory())
	ctx := context.Background()

	_, err := p.AddEvidence(ctx, "acme", "t1", []evidence.Item{
		{Type: evidence.ItemFile, FileName: "x.zip", FileType: "application/zip", FileData: "UEsDBA=="},
	})
	require.NoError(t, err)
	summary, err := p.Run(ctx, "acme", []string{"t1"})
	require.NoError(t, err)

	b, err := json.Marshal(summary.Skipped[0])
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "t1", got["taskId"])
	assert.Equal(t, "x.zip", got["fileName"])
	assert.Equal(t, "unsupported", got["kind"])
}

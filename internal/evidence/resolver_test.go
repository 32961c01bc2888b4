package evidence

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
	"github.com/fyrsmithlabs/esgmetrics/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }

func dataURL(mediaType, body string) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString([]byte(body))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func newTestResolver() (*Resolver, *logging.TestLogger) {
	tl := logging.NewTestLogger()
	return NewResolver(WithClock(fixedNow), WithLogger(tl.Logger)), tl
}

func TestResolve_Manual(t *testing.T) {
	r, _ := newTestResolver()

	res := r.Resolve(context.Background(), "electricity_consumption", []Item{
		{Type: ItemData, Value: json.RawMessage(`450`), UploadedAt: "2024-02-01T00:00:00Z"},
		{Type: ItemData, Value: json.RawMessage(`"1,200"`)},
	})

	require.Empty(t, res.Skipped)
	require.Len(t, res.Observations, 2)
	assert.Equal(t, extraction.Observation{
		TaskID:     "electricity_consumption",
		Metric:     "energy_consumption",
		Value:      450,
		Unit:       "kWh",
		Source:     extraction.SourceManual,
		Timestamp:  "2024-02-01T00:00:00Z",
		Confidence: 1.0,
	}, res.Observations[0])
	assert.Equal(t, 1200.0, res.Observations[1].Value)
	assert.Equal(t, "2024-03-15T10:30:00Z", res.Observations[1].Timestamp)
}

func TestResolve_ManualUnknownTask(t *testing.T) {
	r, _ := newTestResolver()

	res := r.Resolve(context.Background(), "board_meetings", []Item{
		{Type: ItemData, Value: json.RawMessage(`12`)},
	})

	require.Len(t, res.Observations, 1)
	assert.Equal(t, "general_metric", res.Observations[0].Metric)
	assert.Equal(t, "units", res.Observations[0].Unit)
}

func TestResolve_CSVFile(t *testing.T) {
	r, _ := newTestResolver()
	csv := "Date,Energy (kWh),Water (L)\n2024-01-01,1200,2500\n2024-02-01,1150,2400"

	res := r.Resolve(context.Background(), "utility-upload", []Item{
		{Type: ItemFile, FileName: "Utilities.CSV", FileData: dataURL("text/csv", csv)},
	})

	require.Empty(t, res.Skipped)
	require.Len(t, res.Observations, 4)
	for _, o := range res.Observations {
		assert.Equal(t, extraction.SourceCSV, o.Source)
		assert.Equal(t, 0.95, o.Confidence)
	}
	assert.Equal(t, "energy_consumption", res.Observations[0].Metric)
	assert.Equal(t, "2024-02-01", res.Observations[3].Timestamp)
}

// A CSV upload without a .csv name is still tabular when its declared or
// data URL type is text/csv; other text/* types go to the text extractor.
func TestResolve_CSVByContentType(t *testing.T) {
	r, _ := newTestResolver()
	csv := "Date,Energy (kWh)\n2024-01-01,1200\n2024-02-01,1150"

	tests := []struct {
		name string
		item Item
	}{
		{"declared type", Item{Type: ItemFile, FileName: "export", FileType: "text/csv; charset=utf-8", FileData: base64.StdEncoding.EncodeToString([]byte(csv))}},
		{"data URL type", Item{Type: ItemFile, FileName: "export", FileData: dataURL("text/csv", csv)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(context.Background(), "utility-upload", []Item{tt.item})
			require.Empty(t, res.Skipped)
			require.Len(t, res.Observations, 2)
			for _, o := range res.Observations {
				assert.Equal(t, extraction.SourceCSV, o.Source)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want fileKind
	}{
		{"csv name wins over type", Item{FileName: "a.csv", FileType: "application/pdf"}, fileTabular},
		{"text/csv without name", Item{FileName: "a", FileType: "text/csv"}, fileTabular},
		{"text/plain", Item{FileName: "a", FileType: "text/plain"}, fileText},
		{"text/markdown", Item{FileName: "a", FileType: "text/markdown"}, fileText},
		{"pdf", Item{FileName: "a.pdf"}, fileUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := classify(tt.item)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_TextFile(t *testing.T) {
	r, _ := newTestResolver()

	tests := []struct {
		name string
		item Item
	}{
		{"declared type", Item{Type: ItemFile, FileName: "bill", FileType: "text/plain", FileData: "Electricity usage was 450 kWh this month"}},
		{"data URL type", Item{Type: ItemFile, FileName: "bill", FileData: dataURL("text/plain", "Electricity usage was 450 kWh this month")}},
		{"extension", Item{Type: ItemFile, FileName: "march-bill.txt", FileData: base64.StdEncoding.EncodeToString([]byte("Electricity usage was 450 kWh this month"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(context.Background(), "electricity_consumption", []Item{tt.item})
			require.Empty(t, res.Skipped)
			require.Len(t, res.Observations, 1)
			o := res.Observations[0]
			assert.Equal(t, "energy_consumption", o.Metric)
			assert.Equal(t, 450.0, o.Value)
			assert.Equal(t, extraction.SourceText, o.Source)
			assert.Equal(t, 0.7, o.Confidence)
		})
	}
}

func TestResolve_TextUsesTaskCategory(t *testing.T) {
	r, _ := newTestResolver()

	res := r.Resolve(context.Background(), "training_hours", []Item{
		{Type: ItemFile, FileName: "hr.txt", FileType: "text/plain", FileData: "Training hours: 4,800 across 1,250 employees"},
	})

	metrics := map[string]float64{}
	for _, o := range res.Observations {
		metrics[o.Metric] = o.Value
	}
	assert.Equal(t, 4800.0, metrics["training_hours"])
	assert.Equal(t, 1250.0, metrics["total_employees"])
}

func TestResolve_PartialSuccess(t *testing.T) {
	r, tl := newTestResolver()

	res := r.Resolve(context.Background(), "water_consumption", []Item{
		{Type: ItemFile, FileName: "report.pdf", FileType: "application/pdf", FileData: "JVBERi0xLjQK"},
		{Type: ItemFile, FileName: "meter.csv", FileData: "data:text/csv;base64,@@@"},
		{Type: ItemData, Value: json.RawMessage(`"n/a"`)},
		{Type: "photo"},
		{Type: ItemData, Value: json.RawMessage(`3200`)},
	})

	require.Len(t, res.Observations, 1)
	assert.Equal(t, "water_usage", res.Observations[0].Metric)
	assert.Equal(t, 3200.0, res.Observations[0].Value)

	require.Len(t, res.Skipped, 4)
	assert.Equal(t, Skipped{Index: 0, FileName: "report.pdf", Kind: SkipUnsupported, Reason: `unsupported content type "application/pdf"`}, res.Skipped[0])
	assert.Equal(t, 1, res.Skipped[1].Index)
	assert.Equal(t, SkipDecode, res.Skipped[1].Kind)
	assert.Equal(t, "meter.csv", res.Skipped[1].FileName)
	assert.Equal(t, SkipInvalidValue, res.Skipped[2].Kind)
	assert.Equal(t, SkipUnsupported, res.Skipped[3].Kind)

	tl.AssertLogged(t, zapcore.WarnLevel, "evidence item skipped")
	assert.Equal(t, 4, tl.FilterMessage("evidence item skipped").Len())
	tl.AssertField(t, "evidence item skipped", "item.file_name", "meter.csv")
}

func TestResolve_Empty(t *testing.T) {
	r, _ := newTestResolver()

	res := r.Resolve(context.Background(), "t", nil)
	assert.NotNil(t, res.Observations)
	assert.NotNil(t, res.Skipped)
	assert.Empty(t, res.Observations)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"observations":[],"skipped":[]}`, string(b))
}

func TestResolve_Metrics(t *testing.T) {
	r, _ := newTestResolver()
	m := NewMetrics()

	manualBefore := counterValue(t, m.ObservationsTotal.WithLabelValues("manual"))
	decodeBefore := counterValue(t, m.SkippedTotal.WithLabelValues("decode"))

	r.Resolve(context.Background(), "carbon_footprint", []Item{
		{Type: ItemData, Value: json.RawMessage(`0.4`)},
		{Type: ItemFile, FileName: "x.csv", FileData: ""},
	})

	assert.Equal(t, manualBefore+1, counterValue(t, m.ObservationsTotal.WithLabelValues("manual")))
	assert.Equal(t, decodeBefore+1, counterValue(t, m.SkippedTotal.WithLabelValues("decode")))
}

func TestResolve_CustomRules(t *testing.T) {
	rules, err := extraction.ParseRules("[[category.utilityBills]]\npattern = '(?i)(\\d+)\\s*therms'\nmetric = \"gas_usage\"\nunit = \"therms\"\n")
	require.NoError(t, err)

	r := NewResolver(WithRules(rules), WithClock(fixedNow))
	assert.Equal(t, rules.Version(), r.RuleVersion())

	res := r.Resolve(context.Background(), "gas", []Item{
		{Type: ItemFile, FileName: "gas.txt", FileData: "Used 84 therms"},
	})
	require.Len(t, res.Observations, 1)
	assert.Equal(t, "gas_usage", res.Observations[0].Metric)
}

func TestItem_JSON(t *testing.T) {
	var items []Item
	doc := `[
		{"type":"file","fileName":"a.csv","fileData":"data:text/csv;base64,QQ==","fileType":"text/csv","uploaded_at":"2024-01-01"},
		{"type":"data","value":"42.5"},
		{"type":"data","value":17}
	]`
	require.NoError(t, json.Unmarshal([]byte(doc), &items))
	require.Len(t, items, 3)
	assert.Equal(t, ItemFile, items[0].Type)
	assert.Equal(t, "2024-01-01", items[0].UploadedAt)

	v, err := items[1].NumericValue()
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)

	v, err = items[2].NumericValue()
	require.NoError(t, err)
	assert.Equal(t, 17.0, v)

	_, err = items[0].NumericValue()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

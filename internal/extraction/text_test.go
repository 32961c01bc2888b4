package extraction

import (
	"testing"
	"time"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }

func TestTextExtractor_Extract(t *testing.T) {
	x := NewTextExtractor(DefaultRuleTable(), fixedNow)

	tests := []struct {
		name     string
		text     string
		category Category
		want     map[string]float64
	}{
		{
			name:     "electricity bill",
			text:     "Electricity usage was 450 kWh this month",
			category: CategoryUtilityBills,
			want:     map[string]float64{"energy_consumption": 450},
		},
		{
			name:     "thousands separators",
			text:     "Consumption: 12,450.5 kWh. Water: 3,200 liters.",
			category: CategoryUtilityBills,
			want:     map[string]float64{"energy_consumption": 12450.5, "water_usage": 3200},
		},
		{
			name:     "megawatt hours scaled to kWh",
			text:     "Site used 2.5 MWh in March",
			category: CategoryUtilityBills,
			want:     map[string]float64{"energy_consumption": 2500},
		},
		{
			name:     "first rule for a metric wins",
			text:     "Metered 300 kWh, equivalent to 0.3 MWh",
			category: CategoryUtilityBills,
			want:     map[string]float64{"energy_consumption": 300},
		},
		{
			name:     "employee report",
			text:     "Total employees: 1,250. Training hours: 4800. 3 safety incidents. Satisfaction score was 82%.",
			category: CategoryEmployeeData,
			want: map[string]float64{
				"total_employees":       1250,
				"training_hours":        4800,
				"safety_incidents":      3,
				"employee_satisfaction": 82,
			},
		},
		{
			name:     "waste in tonnes scaled to kg",
			text:     "We generated 12 tonnes of waste and recycling reached 40%",
			category: CategoryWasteManagement,
			want:     map[string]float64{"waste_generated": 12000, "recycling_rate": 40},
		},
		{
			name:     "unknown category falls back to utility bills",
			text:     "Electricity usage was 450 kWh this month",
			category: Category("mystery"),
			want:     map[string]float64{"energy_consumption": 450},
		},
		{
			name:     "no match",
			text:     "Nothing to see here",
			category: CategoryUtilityBills,
			want:     map[string]float64{},
		},
		{
			name:     "empty text",
			text:     "",
			category: CategoryUtilityBills,
			want:     map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.Extract(tt.text, "task-1", tt.category)
			if got == nil {
				t.Fatal("Extract() returned nil, want empty slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() got %d observations %+v, want %d", len(got), got, len(tt.want))
			}
			for _, o := range got {
				want, ok := tt.want[o.Metric]
				if !ok {
					t.Errorf("unexpected metric %q", o.Metric)
					continue
				}
				if o.Value != want {
					t.Errorf("%s value = %v, want %v", o.Metric, o.Value, want)
				}
			}
		})
	}
}

func TestTextExtractor_ObservationFields(t *testing.T) {
	x := NewTextExtractor(nil, fixedNow)

	got := x.Extract("Electricity usage was 450 kWh this month", "electricity_consumption", CategoryUtilityBills)
	if len(got) != 1 {
		t.Fatalf("Extract() got %d observations, want 1", len(got))
	}

	want := Observation{
		TaskID:     "electricity_consumption",
		Metric:     "energy_consumption",
		Value:      450,
		Unit:       "kWh",
		Source:     SourceText,
		Timestamp:  "2024-03-15T10:30:00Z",
		Confidence: 0.7,
	}
	if got[0] != want {
		t.Errorf("Extract()[0] = %+v, want %+v", got[0], want)
	}
}

func TestTextExtractor_OnePerMatchingRule(t *testing.T) {
	x := NewTextExtractor(nil, fixedNow)

	text := "Bill total: AED 1,320.75 for 800 kWh and 15 m3 of water, 0.4 tCO2e"
	got := x.Extract(text, "t", CategoryUtilityBills)

	seen := make(map[string]int)
	for _, o := range got {
		seen[o.Metric]++
		if o.Confidence != ConfidenceText {
			t.Errorf("%s confidence = %v, want %v", o.Metric, o.Confidence, ConfidenceText)
		}
		if o.Source != SourceText {
			t.Errorf("%s source = %q, want %q", o.Metric, o.Source, SourceText)
		}
	}
	for metric, n := range seen {
		if n != 1 {
			t.Errorf("metric %q emitted %d times, want 1", metric, n)
		}
	}
	if seen["water_usage"] != 1 || seen["carbon_emissions"] != 1 || seen["utility_cost"] != 1 {
		t.Errorf("missing expected metrics, got %v", seen)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"450", 450, true},
		{"1,200", 1200, true},
		{" 12,450.50 ", 12450.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseNumber(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// Package aggregate groups observations by metric and computes the
// dashboard statistics for each group.
package aggregate

import (
	"sort"
	"time"

	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
)

// TrendPoint is one observation reshaped for charting.
type TrendPoint struct {
	Date   string            `json:"date"`
	Value  float64           `json:"value"`
	Source extraction.Source `json:"source"`
}

// MetricSeries summarizes every observation of one metric.
//
// Values, Latest and Change follow the order observations were produced.
// Trend holds the same points sorted by date, so the two orders differ
// when input arrives out of calendar order.
type MetricSeries struct {
	Metric  string       `json:"metric"`
	Unit    string       `json:"unit"`
	Values  []float64    `json:"values"`
	Trend   []TrendPoint `json:"trend"`
	Latest  float64      `json:"latest"`
	Average float64      `json:"average"`
	Total   float64      `json:"total"`
	// Change is the percent change between the last two values, nil with
	// fewer than two. A zero previous value yields ±Inf or NaN.
	Change *float64 `json:"change"`
}

// Aggregate groups observations by metric. The first observation seen for
// a metric fixes its unit; later units are not reconciled.
func Aggregate(observations []extraction.Observation) map[string]MetricSeries {
	groups := make(map[string]*group)
	for _, o := range observations {
		g, ok := groups[o.Metric]
		if !ok {
			g = &group{unit: o.Unit}
			groups[o.Metric] = g
		}
		g.values = append(g.values, o.Value)
		g.points = append(g.points, TrendPoint{Date: o.Timestamp, Value: o.Value, Source: o.Source})
	}

	out := make(map[string]MetricSeries, len(groups))
	for metric, g := range groups {
		out[metric] = g.series(metric)
	}
	return out
}

// Merge combines two aggregations, treating b's observations as produced
// after a's. Neither input is modified.
func Merge(a, b map[string]MetricSeries) map[string]MetricSeries {
	out := make(map[string]MetricSeries, len(a)+len(b))
	for metric, s := range a {
		other, ok := b[metric]
		if !ok {
			out[metric] = s
			continue
		}
		g := &group{
			unit:   s.Unit,
			values: concat(s.Values, other.Values),
			points: concat(s.Trend, other.Trend),
		}
		out[metric] = g.series(metric)
	}
	for metric, s := range b {
		if _, ok := a[metric]; !ok {
			out[metric] = s
		}
	}
	return out
}

type group struct {
	unit   string
	values []float64
	points []TrendPoint
}

func (g *group) series(metric string) MetricSeries {
	var total float64
	for _, v := range g.values {
		total += v
	}

	n := len(g.values)
	s := MetricSeries{
		Metric: metric,
		Unit:   g.unit,
		Values: g.values,
		Trend:  sortTrend(g.points),
		Total:  total,
	}
	if n == 0 {
		return s
	}
	s.Latest = g.values[n-1]
	s.Average = total / float64(n)

	if n >= 2 {
		// Processing order, not calendar order: dashboards depend on it.
		prev, last := g.values[n-2], g.values[n-1]
		change := (last - prev) / prev * 100
		s.Change = &change
	}
	return s
}

// dateLayouts are tried in order when sorting the trend.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortTrend returns points sorted by date. Points with unparseable dates
// sort after all others; ties keep their input order.
func sortTrend(points []TrendPoint) []TrendPoint {
	type keyed struct {
		p  TrendPoint
		t  time.Time
		ok bool
	}
	ks := make([]keyed, len(points))
	for i, p := range points {
		t, ok := parseDate(p.Date)
		ks[i] = keyed{p: p, t: t, ok: ok}
	}

	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].ok != ks[j].ok {
			return ks[i].ok
		}
		return ks[i].ok && ks[i].t.Before(ks[j].t)
	})

	out := make([]TrendPoint, len(ks))
	for i, k := range ks {
		out[i] = k.p
	}
	return out
}

func concat[T any](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

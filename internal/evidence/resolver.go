package evidence

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
	"github.com/fyrsmithlabs/esgmetrics/internal/logging"
	"go.uber.org/zap"
)

// Resolver dispatches evidence items to extractors.
//
// A Resolver holds no per-call state and is safe for concurrent use.
type Resolver struct {
	rules   *extraction.RuleTable
	now     extraction.Clock
	logger  *logging.Logger
	metrics *Metrics

	text    *extraction.TextExtractor
	tabular *extraction.TabularExtractor
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRules sets the rule table used for text evidence.
// If not set, the built-in table is used.
func WithRules(rules *extraction.RuleTable) ResolverOption {
	return func(r *Resolver) {
		r.rules = rules
	}
}

// WithClock sets the clock stamping observations without a timestamp.
func WithClock(now extraction.Clock) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the logger used for skipped items. If not set, the
// logger from the call context is used.
func WithLogger(logger *logging.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		now:     time.Now,
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rules == nil {
		r.rules = extraction.DefaultRuleTable()
	}

	r.text = extraction.NewTextExtractor(r.rules, r.now)
	r.tabular = extraction.NewTabularExtractor(r.now)
	return r
}

// RuleVersion reports the version of the rule table in use.
func (r *Resolver) RuleVersion() string {
	return r.rules.Version()
}

// Resolve converts items attached to taskID into observations. Items that
// cannot be used are reported in Result.Skipped; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, taskID string, items []Item) Result {
	res := Result{
		Observations: []extraction.Observation{},
		Skipped:      []Skipped{},
	}

	for i, item := range items {
		var (
			obs  []extraction.Observation
			skip *Skipped
		)
		switch item.Type {
		case ItemFile:
			obs, skip = r.resolveFile(taskID, item)
		case ItemData:
			obs, skip = r.resolveManual(taskID, item)
		default:
			skip = &Skipped{Kind: SkipUnsupported, Reason: fmt.Sprintf("unknown item type %q", item.Type)}
		}

		if skip != nil {
			skip.Index = i
			skip.FileName = item.FileName
			res.Skipped = append(res.Skipped, *skip)
			r.metrics.SkippedTotal.WithLabelValues(string(skip.Kind)).Inc()
			r.log(ctx).Warn(ctx, "evidence item skipped",
				zap.String("task.id", taskID),
				zap.Int("item.index", i),
				zap.String("item.file_name", item.FileName),
				zap.String("kind", string(skip.Kind)),
				zap.String("reason", skip.Reason),
			)
			continue
		}

		for _, o := range obs {
			r.metrics.ObservationsTotal.WithLabelValues(string(o.Source)).Inc()
		}
		res.Observations = append(res.Observations, obs...)
	}

	r.log(ctx).Debug(ctx, "evidence resolved",
		zap.String("task.id", taskID),
		zap.Int("items", len(items)),
		zap.Int("observations", len(res.Observations)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res
}

func (r *Resolver) log(ctx context.Context) *logging.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logging.FromContext(ctx)
}

type fileKind int

const (
	fileUnsupported fileKind = iota
	fileTabular
	fileText
)

// classify picks the extractor for a file item from its name and content
// type, before the payload is decoded.
func classify(item Item) (fileKind, string) {
	name := strings.ToLower(item.FileName)
	if strings.HasSuffix(name, ".csv") {
		return fileTabular, "text/csv"
	}

	contentType := item.FileType
	if contentType == "" {
		contentType = dataURLMediaType(item.FileData)
	}
	if contentType == "" {
		contentType = typeByExtension(filepath.Ext(name))
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case mediaType == "text/csv":
		return fileTabular, mediaType
	case strings.HasPrefix(mediaType, "text/"):
		return fileText, mediaType
	}
	return fileUnsupported, contentType
}

// textExtensions covers plain-text extensions missing from the platform
// MIME tables.
var textExtensions = map[string]string{
	".txt":  "text/plain",
	".text": "text/plain",
	".md":   "text/markdown",
	".log":  "text/plain",
}

func typeByExtension(ext string) string {
	if t, ok := textExtensions[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// dataURLMediaType returns the media type of a data URL, or "".
func dataURLMediaType(data string) string {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, "data:") {
		return ""
	}
	header, _, ok := strings.Cut(strings.TrimPrefix(data, "data:"), ",")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(header, ";")
	return strings.TrimSpace(mediaType)
}

func (r *Resolver) resolveFile(taskID string, item Item) ([]extraction.Observation, *Skipped) {
	kind, contentType := classify(item)
	if kind == fileUnsupported {
		if contentType == "" {
			contentType = "unknown"
		}
		return nil, &Skipped{Kind: SkipUnsupported, Reason: fmt.Sprintf("unsupported content type %q", contentType)}
	}

	payload, err := DecodePayload(item.FileData, item.FileType)
	if err != nil {
		return nil, &Skipped{Kind: SkipDecode, Reason: err.Error()}
	}

	if kind == fileTabular {
		return r.tabular.Extract(payload.Text, taskID), nil
	}
	return r.text.Extract(payload.Text, taskID, CategoryForTask(taskID)), nil
}

func (r *Resolver) resolveManual(taskID string, item Item) ([]extraction.Observation, *Skipped) {
	v, err := item.NumericValue()
	if err != nil {
		return nil, &Skipped{Kind: SkipInvalidValue, Reason: err.Error()}
	}

	ts := strings.TrimSpace(item.UploadedAt)
	if ts == "" {
		ts = extraction.FormatTimestamp(r.now())
	}

	m := MetricForTask(taskID)
	return []extraction.Observation{{
		TaskID:     taskID,
		Metric:     m.Metric,
		Value:      v,
		Unit:       m.Unit,
		Source:     extraction.SourceManual,
		Timestamp:  ts,
		Confidence: extraction.ConfidenceManual,
	}}, nil
}

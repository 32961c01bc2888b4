package evidence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
)

// ItemType distinguishes uploaded files from manually entered values.
type ItemType string

const (
	ItemFile ItemType = "file"
	ItemData ItemType = "data"
)

// Item is one piece of evidence attached to a task.
type Item struct {
	Type     ItemType `json:"type"`
	FileName string   `json:"fileName,omitempty"`
	FileData string   `json:"fileData,omitempty"`
	FileType string   `json:"fileType,omitempty"`
	// Value is a JSON number or a numeric string.
	Value      json.RawMessage `json:"value,omitempty"`
	UploadedAt string          `json:"uploaded_at,omitempty"`
}

// ErrInvalidValue is returned for manual values that are not finite numbers.
var ErrInvalidValue = errors.New("invalid manual value")

// NumericValue parses the manual value.
func (it Item) NumericValue() (float64, error) {
	raw := bytes.TrimSpace(it.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing", ErrInvalidValue)
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	} else {
		s = string(raw)
	}

	v, ok := extraction.ParseNumber(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return v, nil
}

// SkipKind classifies why an item produced no observations.
type SkipKind string

const (
	SkipDecode       SkipKind = "decode"
	SkipUnsupported  SkipKind = "unsupported"
	SkipInvalidValue SkipKind = "invalid_value"
)

// Skipped records an item the resolver could not use.
type Skipped struct {
	Index    int      `json:"index"`
	FileName string   `json:"fileName,omitempty"`
	Kind     SkipKind `json:"kind"`
	Reason   string   `json:"reason"`
}

// Result is the outcome of resolving a batch of items. Observations keep
// item order, then extractor order within an item.
type Result struct {
	Observations []extraction.Observation `json:"observations"`
	Skipped      []Skipped                `json:"skipped"`
}

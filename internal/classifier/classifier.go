// Package classifier turns free negotiation text into intents and entities.
package classifier

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

var ErrNotConfigured = errors.New("classifier not configured")

type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// EntityMetadata carries the normalized value of a numeric entity.
type EntityMetadata struct {
	NumericValue float64 `json:"numeric_value"`
	Unit         string  `json:"unit,omitempty"`
}

type Entity struct {
	Entity     string  `json:"entity"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
	Location   []int   `json:"location,omitempty"`

	// Older assistant versions report numeric values under metadata, newer
	// ones under interpretation. Either may be set.
	Metadata       *EntityMetadata `json:"metadata,omitempty"`
	Interpretation *EntityMetadata `json:"interpretation,omitempty"`
}

// Numeric returns the entity's numeric value, falling back to parsing Value.
func (e Entity) Numeric() (float64, bool) {
	if e.Metadata != nil {
		return e.Metadata.NumericValue, true
	}
	if e.Interpretation != nil {
		return e.Interpretation.NumericValue, true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(e.Value), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (e Entity) Unit() string {
	if e.Metadata != nil && e.Metadata.Unit != "" {
		return e.Metadata.Unit
	}
	if e.Interpretation != nil {
		return e.Interpretation.Unit
	}
	return ""
}

// Input is the message being classified together with who said it.
type Input struct {
	Text            string `json:"text"`
	Speaker         string `json:"speaker,omitempty"`
	Addressee       string `json:"addressee,omitempty"`
	Role            string `json:"role,omitempty"`
	EnvironmentUUID string `json:"environmentUUID,omitempty"`
}

type Classification struct {
	Intents  []Intent `json:"intents"`
	Entities []Entity `json:"entities"`
	Input    Input    `json:"input"`
}

// TopIntent returns the first intent, which the service ranks highest.
func (c Classification) TopIntent() (Intent, bool) {
	if len(c.Intents) == 0 {
		return Intent{}, false
	}
	return c.Intents[0], true
}

type Classifier interface {
	Classify(ctx context.Context, in Input) (Classification, error)
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, in Input) (Classification, error)

func (f Func) Classify(ctx context.Context, in Input) (Classification, error) {
	return f(ctx, in)
}

// Unavailable fails every call with ErrNotConfigured.
var Unavailable = Func(func(context.Context, Input) (Classification, error) {
	return Classification{}, ErrNotConfigured
})

// NormalizeText collapses runs of whitespace (tabs, newlines) to single
// spaces and trims the ends.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

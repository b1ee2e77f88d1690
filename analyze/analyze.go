// Package analyze defines the optional enhancement hook that turns raw
// change records into a narrative analysis.
//
// The comparison pipeline works entirely without it: a failing or disabled
// analyzer never fails the job. Implementations plug in an LLM or any other
// scoring backend behind the Analyzer interface.
package analyze

import (
	"context"

	"github.com/hazyhaar/doccmp/engine"
)

// Analysis is the narrative enhancement of a diff result. All fields may be
// empty when analysis is disabled. Err carries the failure message when the
// analyzer errored and the job degraded gracefully.
type Analysis struct {
	Summary         string   `json:"summary,omitempty"`
	KeyChanges      []string `json:"key_changes,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Err             string   `json:"error,omitempty"`
}

// Analyzer produces an Analysis from change records. prompt overrides the
// implementation's default instructions; docContext names the document kind
// (e.g. "tax document") for better framing.
type Analyzer interface {
	Analyze(ctx context.Context, records []engine.ChangeRecord, prompt, docContext string) (*Analysis, error)
}

// Disabled is the no-op Analyzer: it returns an empty Analysis and never
// fails. Used when no analysis backend is configured.
type Disabled struct{}

func (Disabled) Analyze(context.Context, []engine.ChangeRecord, string, string) (*Analysis, error) {
	return &Analysis{}, nil
}

// Func adapts a function to the Analyzer interface.
type Func func(ctx context.Context, records []engine.ChangeRecord, prompt, docContext string) (*Analysis, error)

func (f Func) Analyze(ctx context.Context, records []engine.ChangeRecord, prompt, docContext string) (*Analysis, error) {
	return f(ctx, records, prompt, docContext)
}

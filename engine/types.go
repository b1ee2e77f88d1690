// Package engine compares two line sequences and produces typed, scored,
// cited change records plus an aggregate summary.
//
// The engine is pure and synchronous: no I/O, no goroutines, no clock. It is
// invoked once per comparison job by the job runner, which is also where
// progress reporting lives.
package engine

// ChangeType categorises one difference between two documents.
type ChangeType string

const (
	Added     ChangeType = "added"
	Removed   ChangeType = "removed"
	Modified  ChangeType = "modified"
	Unchanged ChangeType = "unchanged"
)

// Tag identifies the kind of an aligned span.
type Tag string

const (
	TagEqual   Tag = "equal"
	TagInsert  Tag = "insert"
	TagDelete  Tag = "delete"
	TagReplace Tag = "replace"
)

// Span is a contiguous aligned region over both line sequences.
// It covers source lines [I1,I2) and target lines [J1,J2).
type Span struct {
	Tag Tag `json:"tag"`
	I1  int `json:"i1"`
	I2  int `json:"i2"`
	J1  int `json:"j1"`
	J2  int `json:"j2"`
}

// ChangeRecord is one reported difference with type, text, similarity,
// context and a human-readable citation.
//
// SourceLine and TargetLine are always the 1-based first line of the span on
// each side, even when that side carries no text (an Added record still has
// the source-side insertion point in SourceLine). LineNumber is the legacy
// single-field position: the source start when source text exists, otherwise
// the target start.
type ChangeRecord struct {
	Type          ChangeType `json:"type"`
	SourceLine    int        `json:"source_line"`
	TargetLine    int        `json:"target_line"`
	LineNumber    int        `json:"line_number"`
	SourceText    string     `json:"source_text,omitempty"`
	TargetText    string     `json:"target_text,omitempty"`
	ContextBefore string     `json:"context_before,omitempty"`
	ContextAfter  string     `json:"context_after,omitempty"`
	Similarity    float64    `json:"similarity"`
	Citation      string     `json:"citation"`
}

// Summary aggregates a sequence of change records.
type Summary struct {
	TotalCount        int            `json:"total_count"`
	AddedCount        int            `json:"added_count"`
	RemovedCount      int            `json:"removed_count"`
	ModifiedCount     int            `json:"modified_count"`
	UnchangedCount    int            `json:"unchanged_count"`
	AverageSimilarity float64        `json:"average_similarity"`
	BelowThreshold    []ChangeRecord `json:"below_threshold,omitempty"`
}

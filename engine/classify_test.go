package engine

import (
	"strings"
	"testing"
)

func classifyAll(t *testing.T, source, target []string, opts ClassifyOptions) []ChangeRecord {
	t.Helper()
	return Classify(source, target, Align(source, target), opts)
}

func TestClassifyScenarioRemoveAndAdd(t *testing.T) {
	source := []string{"Alpha\n", "Beta\n", "Gamma\n"}
	target := []string{"Alpha\n", "Gamma\n", "Delta\n"}

	records := classifyAll(t, source, target, ClassifyOptions{})
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(records), records)
	}

	removed := records[0]
	if removed.Type != Removed {
		t.Fatalf("first record type = %s, want removed", removed.Type)
	}
	if removed.SourceText != "Beta" {
		t.Errorf("removed SourceText = %q, want Beta", removed.SourceText)
	}
	if removed.TargetText != "" {
		t.Errorf("removed TargetText = %q, want empty", removed.TargetText)
	}
	if removed.SourceLine != 2 {
		t.Errorf("removed SourceLine = %d, want 2", removed.SourceLine)
	}
	if removed.Similarity != 0.0 {
		t.Errorf("removed Similarity = %f, want 0", removed.Similarity)
	}
	if removed.Citation != "Removed from line 2: 'Beta'" {
		t.Errorf("removed Citation = %q", removed.Citation)
	}

	added := records[1]
	if added.Type != Added {
		t.Fatalf("second record type = %s, want added", added.Type)
	}
	if added.TargetText != "Delta" {
		t.Errorf("added TargetText = %q, want Delta", added.TargetText)
	}
	if added.SourceText != "" {
		t.Errorf("added SourceText = %q, want empty", added.SourceText)
	}
	if added.TargetLine != 3 {
		t.Errorf("added TargetLine = %d, want 3", added.TargetLine)
	}
	if added.Citation != "Added at line 3: 'Delta'" {
		t.Errorf("added Citation = %q", added.Citation)
	}
}

func TestClassifyScenarioModified(t *testing.T) {
	source := []string{"foo bar\n"}
	target := []string{"foo baz\n"}

	records := classifyAll(t, source, target, ClassifyOptions{})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Type != Modified {
		t.Fatalf("type = %s, want modified", rec.Type)
	}
	want := 2.0 * 6 / 14 // "foo ba" matches out of 14 chars
	if diff := rec.Similarity - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Similarity = %f, want %f", rec.Similarity, want)
	}
	if rec.Citation != "Modified at line 1 → 1: 'foo bar' → 'foo baz'" {
		t.Errorf("Citation = %q", rec.Citation)
	}
}

func TestClassifyScenarioAllAdded(t *testing.T) {
	target := []string{"one\n", "two\n", "three\n"}

	records := classifyAll(t, nil, target, ClassifyOptions{})
	added := 0
	for _, rec := range records {
		if rec.Type != Added {
			t.Fatalf("unexpected record type %s", rec.Type)
		}
		added++
	}
	if added == 0 {
		t.Fatal("expected at least one added record")
	}

	s := Summarize(records, 0.85)
	if s.AddedCount != added {
		t.Errorf("AddedCount = %d, want %d", s.AddedCount, added)
	}
	if s.RemovedCount != 0 {
		t.Errorf("RemovedCount = %d, want 0", s.RemovedCount)
	}
}

func TestClassifyOneRecordPerSpan(t *testing.T) {
	source := []string{"a\n", "b\n", "c\n", "d\n"}
	target := []string{"a\n", "x\n", "c\n", "e\n", "f\n"}

	spans := Align(source, target)
	nonEqual := 0
	for _, sp := range spans {
		if sp.Tag != TagEqual {
			nonEqual++
		}
	}

	records := Classify(source, target, spans, ClassifyOptions{})
	if len(records) != nonEqual {
		t.Fatalf("got %d records for %d non-equal spans", len(records), nonEqual)
	}

	// With IncludeUnchanged every span yields exactly one record.
	all := Classify(source, target, spans, ClassifyOptions{IncludeUnchanged: true})
	if len(all) != len(spans) {
		t.Fatalf("got %d records for %d spans", len(all), len(spans))
	}
}

func TestClassifyUnchanged(t *testing.T) {
	source := []string{"same\n", "old\n"}
	target := []string{"same\n", "new\n"}

	records := classifyAll(t, source, target, ClassifyOptions{IncludeUnchanged: true})
	if records[0].Type != Unchanged {
		t.Fatalf("first record = %s, want unchanged", records[0].Type)
	}
	// Unchanged similarity is computed, not assumed.
	if records[0].Similarity != 1.0 {
		t.Errorf("identical text similarity = %f, want 1.0", records[0].Similarity)
	}
	if records[0].Citation != "Unchanged at line 1" {
		t.Errorf("Citation = %q", records[0].Citation)
	}
}

func TestClassifyContext(t *testing.T) {
	source := []string{"one\n", "two\n", "three\n", "OLD\n", "five\n", "six\n"}
	target := []string{"one\n", "two\n", "three\n", "NEW\n", "five\n", "six\n"}

	records := classifyAll(t, source, target, ClassifyOptions{ContextLines: 2})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.ContextBefore != "two\nthree" {
		t.Errorf("ContextBefore = %q", rec.ContextBefore)
	}
	if rec.ContextAfter != "five\nsix" {
		t.Errorf("ContextAfter = %q", rec.ContextAfter)
	}
}

func TestClassifyContextAtEdges(t *testing.T) {
	source := []string{"OLD\n"}
	target := []string{"NEW\n"}

	records := classifyAll(t, source, target, ClassifyOptions{})
	if records[0].ContextBefore != "" || records[0].ContextAfter != "" {
		t.Errorf("expected empty context at document edges, got %q / %q",
			records[0].ContextBefore, records[0].ContextAfter)
	}
}

func TestClassifyCitationTruncation(t *testing.T) {
	long := strings.Repeat("x", 80)
	records := classifyAll(t, nil, []string{long + "\n"}, ClassifyOptions{})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	want := "Added at line 1: '" + strings.Repeat("x", 50) + "...'"
	if records[0].Citation != want {
		t.Errorf("Citation = %q, want %q", records[0].Citation, want)
	}
}

func TestClassifyLineNumberFallback(t *testing.T) {
	// An insertion after the first line: the added record has no source text,
	// so LineNumber follows the target side while SourceLine still reports
	// the insertion point.
	source := []string{"keep\n"}
	target := []string{"keep\n", "new one\n", "new two\n"}

	records := classifyAll(t, source, target, ClassifyOptions{})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.SourceLine != 2 {
		t.Errorf("SourceLine (insertion point) = %d, want 2", rec.SourceLine)
	}
	if rec.TargetLine != 2 {
		t.Errorf("TargetLine = %d, want 2", rec.TargetLine)
	}
	if rec.LineNumber != rec.TargetLine {
		t.Errorf("LineNumber = %d, want target line %d", rec.LineNumber, rec.TargetLine)
	}

	// Removed records keep the source-side position.
	records = classifyAll(t, target, source, ClassifyOptions{})
	if records[0].LineNumber != records[0].SourceLine {
		t.Errorf("removed LineNumber = %d, want source line %d",
			records[0].LineNumber, records[0].SourceLine)
	}
}

func TestClassifySimilarityBounds(t *testing.T) {
	source := []string{"alpha\n", "beta becomes\n", "gamma\n", "gone\n"}
	target := []string{"alpha\n", "beta became\n", "gamma\n", "fresh\n", "more\n"}

	records := classifyAll(t, source, target, ClassifyOptions{IncludeUnchanged: true})
	for _, rec := range records {
		if rec.Similarity < 0.0 || rec.Similarity > 1.0 {
			t.Errorf("record %+v similarity out of bounds", rec)
		}
	}
}

func TestClassifyMalformedSpanPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-bounds span")
		}
	}()
	Classify([]string{"a\n"}, []string{"a\n"},
		[]Span{{Tag: TagDelete, I1: 0, I2: 5, J1: 0, J2: 0}}, ClassifyOptions{})
}

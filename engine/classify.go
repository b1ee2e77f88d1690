package engine

import (
	"fmt"
	"strings"
)

// ClassifyOptions tunes change-record emission.
type ClassifyOptions struct {
	// IncludeUnchanged emits a record for Equal spans too (scored and cited
	// the same way as Modified records). Default: false.
	IncludeUnchanged bool
	// ContextLines is how many source lines of context to capture on each
	// side of a span. Default: 2.
	ContextLines int
}

func (o *ClassifyOptions) defaults() {
	if o.ContextLines <= 0 {
		o.ContextLines = 2
	}
}

// Classify turns aligned spans into change records. Exactly one record is
// emitted per non-equal span; Equal spans are skipped unless
// opts.IncludeUnchanged is set.
//
// Span ranges must lie within the given line sequences. An out-of-bounds or
// inverted range is a programming error and panics.
func Classify(source, target []string, spans []Span, opts ClassifyOptions) []ChangeRecord {
	opts.defaults()

	var records []ChangeRecord
	for _, sp := range spans {
		checkSpan(sp, len(source), len(target))

		var typ ChangeType
		switch sp.Tag {
		case TagEqual:
			if !opts.IncludeUnchanged {
				continue
			}
			typ = Unchanged
		case TagDelete:
			typ = Removed
		case TagInsert:
			typ = Added
		case TagReplace:
			typ = Modified
		}

		sourceText := joinTrimmed(source[sp.I1:sp.I2])
		targetText := joinTrimmed(target[sp.J1:sp.J2])

		var similarity float64
		switch {
		case sourceText != "" && targetText != "":
			similarity = Ratio(sourceText, targetText)
		case sourceText == "" && targetText == "":
			similarity = 1.0
		default:
			similarity = 0.0
		}

		rec := ChangeRecord{
			Type:          typ,
			SourceLine:    sp.I1 + 1,
			TargetLine:    sp.J1 + 1,
			SourceText:    sourceText,
			TargetText:    targetText,
			ContextBefore: joinTrimmed(source[max(0, sp.I1-opts.ContextLines):sp.I1]),
			ContextAfter:  joinTrimmed(source[sp.I2:min(len(source), sp.I2+opts.ContextLines)]),
			Similarity:    similarity,
			Citation:      citation(typ, sp.I1+1, sp.J1+1, sourceText, targetText),
		}
		if sourceText != "" {
			rec.LineNumber = rec.SourceLine
		} else {
			rec.LineNumber = rec.TargetLine
		}
		records = append(records, rec)
	}
	return records
}

func checkSpan(sp Span, sourceLen, targetLen int) {
	if sp.I1 < 0 || sp.I1 > sp.I2 || sp.I2 > sourceLen ||
		sp.J1 < 0 || sp.J1 > sp.J2 || sp.J2 > targetLen {
		panic(fmt.Sprintf("engine: malformed span %+v (source %d lines, target %d lines)",
			sp, sourceLen, targetLen))
	}
}

// joinTrimmed concatenates lines (which keep their own newlines) and trims
// surrounding whitespace. Empty slices and all-blank slices yield "".
func joinTrimmed(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, ""))
}

// citation renders the human-readable audit string for one record.
func citation(typ ChangeType, sourceLine, targetLine int, sourceText, targetText string) string {
	switch typ {
	case Added:
		return fmt.Sprintf("Added at line %d: '%s'", targetLine, truncate(targetText, 50))
	case Removed:
		return fmt.Sprintf("Removed from line %d: '%s'", sourceLine, truncate(sourceText, 50))
	case Modified:
		return fmt.Sprintf("Modified at line %d → %d: '%s' → '%s'",
			sourceLine, targetLine, truncate(sourceText, 30), truncate(targetText, 30))
	default:
		return fmt.Sprintf("Unchanged at line %d", sourceLine)
	}
}

// truncate caps text at maxLen runes and appends an ellipsis when cut.
func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

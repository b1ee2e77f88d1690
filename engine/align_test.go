package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

func TestAlignCoversBothSequences(t *testing.T) {
	tests := []struct {
		name   string
		source []string
		target []string
	}{
		{"identical", []string{"a\n", "b\n"}, []string{"a\n", "b\n"}},
		{"disjoint", []string{"a\n", "b\n"}, []string{"x\n", "y\n"}},
		{"insert middle", []string{"a\n", "c\n"}, []string{"a\n", "b\n", "c\n"}},
		{"delete middle", []string{"a\n", "b\n", "c\n"}, []string{"a\n", "c\n"}},
		{"empty source", nil, []string{"a\n", "b\n"}},
		{"empty target", []string{"a\n", "b\n"}, nil},
		{"both empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := Align(tt.source, tt.target)
			assertCoverage(t, tt.source, tt.target, spans)
		})
	}
}

// assertCoverage checks the reconstruction property: source slices of
// Equal/Delete/Replace spans concatenate back to source, and target slices
// of Equal/Insert/Replace spans back to target, with ranges in order.
func assertCoverage(t *testing.T, source, target []string, spans []Span) {
	t.Helper()

	i, j := 0, 0
	var gotSource, gotTarget []string
	for _, sp := range spans {
		if sp.I1 != i || sp.J1 != j {
			t.Fatalf("span %+v does not continue at (%d,%d)", sp, i, j)
		}
		gotSource = append(gotSource, source[sp.I1:sp.I2]...)
		gotTarget = append(gotTarget, target[sp.J1:sp.J2]...)
		i, j = sp.I2, sp.J2
	}
	if i != len(source) || j != len(target) {
		t.Fatalf("spans end at (%d,%d), want (%d,%d)", i, j, len(source), len(target))
	}
	if strings.Join(gotSource, "") != strings.Join(source, "") {
		t.Fatalf("source slices do not reconstruct input")
	}
	if strings.Join(gotTarget, "") != strings.Join(target, "") {
		t.Fatalf("target slices do not reconstruct input")
	}
}

func TestAlignCoverageRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocab := []string{"alpha\n", "beta\n", "gamma\n", "delta\n", "epsilon\n"}

	for round := 0; round < 50; round++ {
		source := make([]string, rng.Intn(20))
		target := make([]string, rng.Intn(20))
		for i := range source {
			source[i] = vocab[rng.Intn(len(vocab))]
		}
		for i := range target {
			target[i] = vocab[rng.Intn(len(vocab))]
		}
		assertCoverage(t, source, target, Align(source, target))
	}
}

func TestAlignDeterministic(t *testing.T) {
	source := []string{"a\n", "b\n", "a\n", "b\n"}
	target := []string{"b\n", "a\n"}

	first := Align(source, target)
	for round := 0; round < 10; round++ {
		again := Align(source, target)
		if fmt.Sprint(again) != fmt.Sprint(first) {
			t.Fatalf("alignment not deterministic: %v vs %v", again, first)
		}
	}
}

func TestAlignTags(t *testing.T) {
	source := []string{"Alpha\n", "Beta\n", "Gamma\n"}
	target := []string{"Alpha\n", "Gamma\n", "Delta\n"}

	spans := Align(source, target)
	var tags []Tag
	for _, sp := range spans {
		tags = append(tags, sp.Tag)
	}
	want := []Tag{TagEqual, TagDelete, TagEqual, TagInsert}
	if fmt.Sprint(tags) != fmt.Sprint(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"foo bar", "foo bar", 1.0},
		{"", "", 1.0},
		{"abc", "xyz", 0.0},
		{"foo bar", "foo baz", 6.0 * 2 / 14},
	}

	for _, tt := range tests {
		got := Ratio(tt.a, tt.b)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Ratio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRatioBounds(t *testing.T) {
	samples := []string{"", "a", "hello world", "HELLO WORLD", "hello\nworld\n"}
	for _, a := range samples {
		for _, b := range samples {
			r := Ratio(a, b)
			if r < 0.0 || r > 1.0 {
				t.Errorf("Ratio(%q, %q) = %f out of [0,1]", a, b, r)
			}
		}
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a\n"}},
		{"a\nb", []string{"a\n", "b"}},
		{"a\nb\n", []string{"a\n", "b\n"}},
		{"\n\n", []string{"\n", "\n"}},
	}

	for _, tt := range tests {
		got := SplitLines(tt.text)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("SplitLines(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

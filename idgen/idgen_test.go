package idgen

import (
	"sort"
	"strings"
	"testing"
)

func TestUUIDv7Format(t *testing.T) {
	gen := UUIDv7()
	id := gen()
	// UUID format: 8-4-4-4-12
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestUUIDv7Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestUUIDv7Sortable(t *testing.T) {
	gen := UUIDv7()
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = gen()
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("UUIDv7: ids generated in sequence are not lexically sorted")
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("cmp_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "cmp_") {
		t.Fatalf("Prefixed: %q lacks prefix", id)
	}
	if len(id) != 4+36 {
		t.Fatalf("Prefixed: unexpected length %d", len(id))
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(id)
	if err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
	if got != id {
		t.Fatalf("Parse(%q) = %q, want identity", id, got)
	}

	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse accepted garbage")
	}
}

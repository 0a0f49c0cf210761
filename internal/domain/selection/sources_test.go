package selection

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/kfsearch/internal/domain"
)

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSources_AddDuplicate(t *testing.T) {
	var s Sources
	if err := s.Add("keyframes/L21_V001/00000005.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.Add("keyframes/L21_V001/00000005.jpg")
	if !errors.Is(err, domain.ErrAlreadySelected) {
		t.Fatalf("expected ErrAlreadySelected, got %v", err)
	}
	if len(s) != 1 {
		t.Errorf("expected 1 source, got %d", len(s))
	}
}

func TestSources_RemoveAndReorder(t *testing.T) {
	s := Sources{"a/1.jpg", "a/2.jpg", "a/3.jpg"}

	if !s.Reorder("a/3.jpg", Up) {
		t.Fatal("expected move up")
	}
	if !equalStrings(s, []string{"a/1.jpg", "a/3.jpg", "a/2.jpg"}) {
		t.Fatalf("unexpected order %v", s)
	}
	if s.Reorder("a/1.jpg", Up) {
		t.Error("expected no-op at top")
	}
	if s.Reorder("a/2.jpg", Down) {
		t.Error("expected no-op at bottom")
	}
	if s.Reorder("a/9.jpg", Down) {
		t.Error("expected no-op for absent source")
	}

	if !s.Remove("a/3.jpg") {
		t.Fatal("expected removal")
	}
	if s.Remove("a/3.jpg") {
		t.Error("expected second removal to report false")
	}
	if !equalStrings(s, []string{"a/1.jpg", "a/2.jpg"}) {
		t.Errorf("unexpected order %v", s)
	}
}

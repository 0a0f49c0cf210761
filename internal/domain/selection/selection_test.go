package selection

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/image"
)

func item(id int) Item {
	return NewItem(image.New(id, fmt.Sprintf("images/keyframes/L21_V001/%08d.jpg", id)), time.Unix(0, 0))
}

func ids(l *List) []int {
	out := make([]int, 0, l.Len())
	for _, it := range l.Items() {
		out = append(out, it.ID)
	}
	return out
}

func equalInts(a, b []int) bool {
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

func TestNewItem(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	it := NewItem(image.New(7, "images/keyframes/L21_V001/00000005.jpg"), now)

	if it.ID != 7 || it.Video != "L21_V001" || it.Frame != "00000005" {
		t.Errorf("unexpected item %+v", it)
	}
	if it.Path != "images/keyframes/L21_V001/00000005.jpg" || !it.AddedAt.Equal(now) {
		t.Errorf("unexpected item %+v", it)
	}
}

func TestAdd_Duplicate(t *testing.T) {
	var l List
	if err := l.Add(item(1)); err != nil {
		t.Fatalf("first add: %v", err)
	}

	err := l.Add(item(1))
	if !errors.Is(err, domain.ErrAlreadySelected) {
		t.Fatalf("expected ErrAlreadySelected, got %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("duplicate add changed length to %d", l.Len())
	}
}

func TestAdd_AppendsInOrder(t *testing.T) {
	var l List
	for _, id := range []int{3, 1, 2} {
		if err := l.Add(item(id)); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}
	if got := ids(&l); !equalInts(got, []int{3, 1, 2}) {
		t.Errorf("order = %v", got)
	}
}

func TestRemove(t *testing.T) {
	l := NewList([]Item{item(1), item(2), item(3)})

	if l.Remove(42) {
		t.Error("removing absent id reported true")
	}
	if got := ids(&l); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("absent remove changed list: %v", got)
	}

	if !l.Remove(2) {
		t.Error("expected removal of id 2")
	}
	if got := ids(&l); !equalInts(got, []int{1, 3}) {
		t.Errorf("after remove = %v", got)
	}
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name    string
		id      int
		dir     Direction
		want    []int
		changed bool
	}{
		{"first up is noop", 1, Up, []int{1, 2, 3}, false},
		{"last down is noop", 3, Down, []int{1, 2, 3}, false},
		{"middle up", 2, Up, []int{2, 1, 3}, true},
		{"middle down", 2, Down, []int{1, 3, 2}, true},
		{"first down", 1, Down, []int{2, 1, 3}, true},
		{"unknown id", 9, Up, []int{1, 2, 3}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewList([]Item{item(1), item(2), item(3)})
			changed := l.Reorder(tc.id, tc.dir)
			if changed != tc.changed {
				t.Errorf("changed = %v, want %v", changed, tc.changed)
			}
			if got := ids(&l); !equalInts(got, tc.want) {
				t.Errorf("order = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClear(t *testing.T) {
	l := NewList([]Item{item(1), item(2)})
	l.Clear()
	if l.Len() != 0 || len(l.Items()) != 0 {
		t.Errorf("expected empty list, got %v", ids(&l))
	}
}

func TestNewList_DropsDuplicates(t *testing.T) {
	l := NewList([]Item{item(1), item(2), item(1)})
	if got := ids(&l); !equalInts(got, []int{1, 2}) {
		t.Errorf("NewList = %v", got)
	}
}

func TestItems_ReturnsCopy(t *testing.T) {
	l := NewList([]Item{item(1)})
	items := l.Items()
	items[0].ID = 99
	if !l.Contains(1) || l.Contains(99) {
		t.Error("mutating Items() result changed the list")
	}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"up", "down"} {
		if _, err := ParseDirection(s); err != nil {
			t.Errorf("ParseDirection(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "UP", "left"} {
		if _, err := ParseDirection(s); !errors.Is(err, domain.ErrInvalidDirection) {
			t.Errorf("ParseDirection(%q) = %v, want ErrInvalidDirection", s, err)
		}
	}
}

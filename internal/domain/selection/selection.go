// Package selection holds the user-curated, ordered list of keyframes.
package selection

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/image"
)

// Item is a keyframe in the selection list.
type Item struct {
	ID      int
	Video   string
	Frame   string
	Path    string
	AddedAt time.Time
}

// NewItem derives a selection item from an image record.
func NewItem(r image.Record, now time.Time) Item {
	ref := r.Keyframe()
	return Item{
		ID:      r.ID(),
		Video:   ref.Video,
		Frame:   ref.Frame,
		Path:    r.Path(),
		AddedAt: now,
	}
}

// Direction is a reorder direction.
type Direction string

// Reorder directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidDirection, s)
	}
}

// List is an ordered set of items keyed by id. Insertion order is display order.
type List struct {
	items []Item
}

// NewList rebuilds a list from persisted items, dropping later duplicates of an id.
func NewList(items []Item) List {
	l := List{items: make([]Item, 0, len(items))}
	for _, it := range items {
		if !l.Contains(it.ID) {
			l.items = append(l.items, it)
		}
	}
	return l
}

// Add appends it unless an item with the same id is already present.
func (l *List) Add(it Item) error {
	if l.Contains(it.ID) {
		return fmt.Errorf("%w: id %d", domain.ErrAlreadySelected, it.ID)
	}
	l.items = append(l.items, it)
	return nil
}

// Remove drops the item with id. Reports whether anything was removed.
func (l *List) Remove(id int) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return true
}

// Reorder swaps the item with its neighbour in dir.
// Reports false at the list boundary or when id is absent.
func (l *List) Reorder(id int, dir Direction) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(l.items) {
		return false
	}
	l.items[i], l.items[j] = l.items[j], l.items[i]
	return true
}

// Clear empties the list.
func (l *List) Clear() { l.items = nil }

// Contains reports whether id is in the list.
func (l *List) Contains(id int) bool { return l.indexOf(id) >= 0 }

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the items in display order.
func (l *List) Items() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List) indexOf(id int) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

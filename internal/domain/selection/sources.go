package selection

import (
	"fmt"

	"github.com/kailas-cloud/kfsearch/internal/domain"
)

// Sources is the legacy selection: pasted keyframe paths in display order, without ids.
type Sources []string

// Add appends src unless it is already present.
func (s *Sources) Add(src string) error {
	if s.indexOf(src) >= 0 {
		return fmt.Errorf("%w: %s", domain.ErrAlreadySelected, src)
	}
	*s = append(*s, src)
	return nil
}

// Remove drops src. Reports whether anything was removed.
func (s *Sources) Remove(src string) bool {
	i := s.indexOf(src)
	if i < 0 {
		return false
	}
	*s = append((*s)[:i], (*s)[i+1:]...)
	return true
}

// Reorder swaps src with its neighbour in dir.
// Reports false at the list boundary or when src is absent.
func (s *Sources) Reorder(src string, dir Direction) bool {
	i := s.indexOf(src)
	if i < 0 {
		return false
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(*s) {
		return false
	}
	(*s)[i], (*s)[j] = (*s)[j], (*s)[i]
	return true
}

func (s Sources) indexOf(src string) int {
	for i, v := range s {
		if v == src {
			return i
		}
	}
	return -1
}

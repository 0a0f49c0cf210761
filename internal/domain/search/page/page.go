// Package page computes browse pagination.
package page

// State is the pagination position over the catalogue.
type State struct {
	current int
	size    int
	total   int
}

// New builds a state for total items split into pages of size, clamped to requested.
func New(requested, size, total int) State {
	if size <= 0 {
		size = 1
	}
	if total < 0 {
		total = 0
	}
	s := State{size: size, total: total}
	s.current = s.Clamp(requested)
	return s
}

// Current returns the 1-based current page.
func (s State) Current() int { return s.current }

// Size returns the page size.
func (s State) Size() int { return s.size }

// Total returns the total item count.
func (s State) Total() int { return s.total }

// TotalPages is ceil(total/size), at least 1.
func (s State) TotalPages() int {
	n := (s.total + s.size - 1) / s.size
	if n < 1 {
		return 1
	}
	return n
}

// Clamp limits n to [1, TotalPages].
func (s State) Clamp(n int) int {
	if n < 1 {
		return 1
	}
	if last := s.TotalPages(); n > last {
		return last
	}
	return n
}

// Bounds returns the half-open item index range of the current page.
func (s State) Bounds() (start, end int) {
	start = (s.current - 1) * s.size
	end = start + s.size
	if start > s.total {
		start = s.total
	}
	if end > s.total {
		end = s.total
	}
	return start, end
}

// HasPrev reports whether a previous page exists.
func (s State) HasPrev() bool { return s.current > 1 }

// HasNext reports whether a next page exists.
func (s State) HasNext() bool { return s.current < s.TotalPages() }

// Window returns page numbers within radius of the current page, clamped to valid pages.
func (s State) Window(radius int) []int {
	if radius < 0 {
		radius = 0
	}
	from := s.Clamp(s.current - radius)
	to := s.Clamp(s.current + radius)
	out := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		out = append(out, p)
	}
	return out
}

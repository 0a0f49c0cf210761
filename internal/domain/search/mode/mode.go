package mode

import (
	"fmt"

	"github.com/kailas-cloud/kfsearch/internal/domain"
)

// Mode is the grid display mode.
type Mode string

// Display modes.
const (
	// Browse pages through the full catalogue.
	Browse      Mode = "browse"
	ImageSearch Mode = "image-search"
	TextSearch  Mode = "text-search"
)

// All lists the modes in menu order.
var All = []Mode{Browse, ImageSearch, TextSearch}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Browse || m == ImageSearch || m == TextSearch
}

// IsSearch reports whether the mode shows a flat batch of search results.
func (m Mode) IsSearch() bool {
	return m == ImageSearch || m == TextSearch
}

// Prompt is the status line shown when the mode is entered.
func (m Mode) Prompt() string {
	switch m {
	case ImageSearch:
		return "Enter image ID or upload image to search"
	case TextSearch:
		return "Enter text query to search"
	default:
		return ""
	}
}

// Label is the human-readable menu label.
func (m Mode) Label() string {
	switch m {
	case Browse:
		return "Browse"
	case ImageSearch:
		return "Image search"
	case TextSearch:
		return "Text search"
	default:
		return string(m)
	}
}

// Parse validates a mode string.
func Parse(s string) (Mode, error) {
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidMode, s)
	}
	return m, nil
}

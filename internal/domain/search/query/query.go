// Package query holds validated search queries and their cache keys.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/mode"
)

// DefaultK is the result count hint sent to the search API.
const DefaultK = 200

// MaxTextLength bounds a text query.
const MaxTextLength = 1024

// Kind is the query type.
type Kind string

// Query kinds.
const (
	ByID     Kind = "id"
	ByText   Kind = "text"
	ByUpload Kind = "upload"
)

// Mode returns the display mode results of this kind are shown in.
func (k Kind) Mode() mode.Mode {
	if k == ByText {
		return mode.TextSearch
	}
	return mode.ImageSearch
}

// Query is a validated search request.
type Query struct {
	kind     Kind
	imageID  int
	text     string
	filename string
	upload   []byte
	k        int
}

// NewByID creates a similar-image query.
func NewByID(id, k int) (Query, error) {
	if id < 0 {
		return Query{}, fmt.Errorf("%w: image id must not be negative, got %d", domain.ErrInvalidQuery, id)
	}
	return Query{kind: ByID, imageID: id, k: normalizeK(k)}, nil
}

// NewByText creates a text query. Whitespace-only text is empty.
func NewByText(text string, k int) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, domain.ErrEmptyQuery
	}
	if len(text) > MaxTextLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxTextLength)
	}
	return Query{kind: ByText, text: text, k: normalizeK(k)}, nil
}

// NewByUpload creates a query by uploaded image bytes.
func NewByUpload(filename string, data []byte, k int) (Query, error) {
	if len(data) == 0 {
		return Query{}, domain.ErrEmptyQuery
	}
	if filename == "" {
		filename = "upload.jpg"
	}
	return Query{kind: ByUpload, filename: filename, upload: data, k: normalizeK(k)}, nil
}

func normalizeK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	return k
}

// Kind returns the query type.
func (q Query) Kind() Kind { return q.kind }

// ImageID returns the reference image id (ByID only).
func (q Query) ImageID() int { return q.imageID }

// Text returns the trimmed text (ByText only).
func (q Query) Text() string { return q.text }

// Filename returns the uploaded file name (ByUpload only).
func (q Query) Filename() string { return q.filename }

// Upload returns the uploaded bytes (ByUpload only).
func (q Query) Upload() []byte { return q.upload }

// K returns the result count hint.
func (q Query) K() int { return q.k }

// CacheKey identifies the query within a session's result cache.
// k is not part of the key; it is only a hint to the server.
func (q Query) CacheKey() string {
	switch q.kind {
	case ByID:
		return "id_" + strconv.Itoa(q.imageID)
	case ByText:
		return "text_" + q.text
	default:
		h := sha256.Sum256(q.upload)
		return "upload_" + hex.EncodeToString(h[:])
	}
}

// Describe is a short human-readable form for status lines.
func (q Query) Describe() string {
	switch q.kind {
	case ByID:
		return fmt.Sprintf("ID %d", q.imageID)
	case ByText:
		return strconv.Quote(q.text)
	default:
		return "uploaded image " + q.filename
	}
}

// Package image models keyframe images as returned by the search API.
package image

import (
	"strconv"
	"strings"
)

// Record is a single keyframe image. Identity is the numeric id.
type Record struct {
	id       int
	path     string
	score    float64
	hasScore bool
}

// New creates a record without a similarity score (browse results).
func New(id int, path string) Record {
	return Record{id: id, path: path}
}

// NewScored creates a record carrying a similarity score.
func NewScored(id int, path string, score float64) Record {
	return Record{id: id, path: path, score: score, hasScore: true}
}

// ID returns the image identifier.
func (r Record) ID() int { return r.id }

// Path returns the relative asset path.
func (r Record) Path() string { return r.path }

// Score returns the similarity score and whether one was provided.
func (r Record) Score() (float64, bool) { return r.score, r.hasScore }

// Keyframe parses the video and frame out of the record path.
func (r Record) Keyframe() KeyframeRef { return ParsePath(r.path) }

// KeyframeRef identifies a keyframe inside a source video.
type KeyframeRef struct {
	// Video is the parent directory name, e.g. L21_V001.
	Video string
	// Frame is the file stem with leading zeros kept, e.g. 00000005.
	Frame string
	// FrameNumber is Frame as an integer (0 when not numeric).
	FrameNumber int
}

// ParsePath extracts video and frame from a path shaped like .../<video>/<frame>.jpg.
func ParsePath(path string) KeyframeRef {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	file := parts[len(parts)-1]
	stem := file
	if dot := strings.LastIndexByte(file, '.'); dot > 0 {
		stem = file[:dot]
	}

	ref := KeyframeRef{Frame: stem}
	if len(parts) >= 2 {
		ref.Video = parts[len(parts)-2]
	}
	if n, err := strconv.Atoi(stem); err == nil {
		ref.FrameNumber = n
	}
	return ref
}

// AssetURL returns the path as an absolute URL path.
func AssetURL(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

// VideoFile maps a video name to its file under the video store, e.g.
// L01_V001 -> Videos_L01/L01_V001.mp4.
func VideoFile(video string) string {
	batch, _, _ := strings.Cut(video, "_")
	return "Videos_" + batch + "/" + video + ".mp4"
}

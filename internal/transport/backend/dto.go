package backend

import (
	"sort"
	"strconv"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
)

type imagePathsResponse struct {
	ImagePaths map[string]string `json:"image_paths"`
}

type imageSearchRequest struct {
	ImageID int `json:"image_id"`
	K       int `json:"k"`
}

type textSearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Results []resultRow `json:"results"`
}

type resultRow struct {
	ID    int      `json:"id"`
	Path  string   `json:"path"`
	Score *float64 `json:"score,omitempty"`
}

type videoInfoResponse struct {
	FPS float64 `json:"fps"`
}

func recordsFromRows(rows []resultRow) []image.Record {
	out := make([]image.Record, 0, len(rows))
	for _, r := range rows {
		if r.Score != nil {
			out = append(out, image.NewScored(r.ID, r.Path, *r.Score))
		} else {
			out = append(out, image.New(r.ID, r.Path))
		}
	}
	return out
}

// catalogFromPaths converts the id->path map, skipping non-integer keys,
// into records ordered by id.
func catalogFromPaths(m map[string]string) []image.Record {
	out := make([]image.Record, 0, len(m))
	for k, path := range m {
		id, err := strconv.Atoi(k)
		if err != nil || id < 0 {
			continue
		}
		out = append(out, image.New(id, path))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

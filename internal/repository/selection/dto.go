package selection

import (
	"encoding/json"
	"fmt"
	"time"

	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
)

// itemRow is the persisted JSON shape of a selection item.
// Field names match the browser-side selectedImageList format.
type itemRow struct {
	ID        int    `json:"id"`
	Video     string `json:"video"`
	Frame     string `json:"frame"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

func listToJSON(l domsel.List) ([]byte, error) {
	items := l.Items()
	rows := make([]itemRow, len(items))
	for i, it := range items {
		rows[i] = itemRow{
			ID:        it.ID,
			Video:     it.Video,
			Frame:     it.Frame,
			Path:      it.Path,
			Timestamp: it.AddedAt.UnixMilli(),
		}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal selection: %w", err)
	}
	return data, nil
}

func listFromJSON(data []byte) (domsel.List, error) {
	var rows []itemRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return domsel.List{}, fmt.Errorf("unmarshal selection: %w", err)
	}
	items := make([]domsel.Item, len(rows))
	for i, r := range rows {
		items[i] = domsel.Item{
			ID:      r.ID,
			Video:   r.Video,
			Frame:   r.Frame,
			Path:    r.Path,
			AddedAt: time.UnixMilli(r.Timestamp).UTC(),
		}
	}
	return domsel.NewList(items), nil
}

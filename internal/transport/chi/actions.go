package chi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Action names. Templates refer to handlers only through these.
const (
	ActMode          = "mode"
	ActPage          = "page"
	ActSearchID      = "search-id"
	ActSearchText    = "search-text"
	ActSearchUpload  = "search-upload"
	ActSimilar       = "similar"
	ActSelectAdd     = "select-add"
	ActSelectAddPath = "select-add-path"
	ActSelectRemove  = "select-remove"
	ActSelectMove    = "select-move"
	ActSelectClear   = "select-clear"
	ActView          = "view"
	ActClip          = "clip"
	ActClipLegacy    = "clip-legacy"
	ActExportCSV     = "export-csv"
	ActLegacyAdd     = "legacy-add"
	ActLegacyRemove  = "legacy-remove"
	ActLegacyMove    = "legacy-move"
	ActLegacyExport  = "legacy-export"
	ActSessionReset  = "session-reset"
)

// Action is one entry of the UI action table.
type Action struct {
	Name    string
	Method  string
	Pattern string
}

// uiActions is the action table. Every UI control posts to or links one of these.
var uiActions = []Action{
	{ActMode, http.MethodPost, "/mode/{mode}"},
	{ActPage, http.MethodGet, "/page/{page}"},
	{ActSearchID, http.MethodPost, "/search/id"},
	{ActSearchText, http.MethodPost, "/search/text"},
	{ActSearchUpload, http.MethodPost, "/search/upload"},
	{ActSimilar, http.MethodPost, "/similar/{id}"},
	{ActSelectAdd, http.MethodPost, "/selection/{id}/add"},
	{ActSelectAddPath, http.MethodPost, "/selection/path"},
	{ActSelectRemove, http.MethodPost, "/selection/{id}/remove"},
	{ActSelectMove, http.MethodPost, "/selection/{id}/move/{dir}"},
	{ActSelectClear, http.MethodPost, "/selection/clear"},
	{ActView, http.MethodGet, "/open/view"},
	{ActClip, http.MethodGet, "/open/clip"},
	{ActClipLegacy, http.MethodGet, "/open/clip-legacy"},
	{ActExportCSV, http.MethodPost, "/export/csv"},
	{ActLegacyAdd, http.MethodPost, "/legacy/add"},
	{ActLegacyRemove, http.MethodPost, "/legacy/remove"},
	{ActLegacyMove, http.MethodPost, "/legacy/move/{dir}"},
	{ActLegacyExport, http.MethodPost, "/export/legacy-csv"},
	{ActSessionReset, http.MethodPost, "/session/reset"},
}

// actionTable resolves action names to URLs.
type actionTable struct {
	byName map[string]Action
	order  []Action
}

func newActionTable(actions []Action) (*actionTable, error) {
	t := &actionTable{byName: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if _, dup := t.byName[a.Name]; dup {
			return nil, fmt.Errorf("duplicate action %q", a.Name)
		}
		t.byName[a.Name] = a
		t.order = append(t.order, a)
	}
	return t, nil
}

// URL builds the path of an action. Leading args fill the pattern's {params} in
// order; the remaining args are key/value query pairs.
func (t *actionTable) URL(name string, args ...any) (string, error) {
	a, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown action %q", name)
	}

	segs := strings.Split(a.Pattern, "/")
	for i, seg := range segs {
		if !strings.HasPrefix(seg, "{") {
			continue
		}
		if len(args) == 0 {
			return "", fmt.Errorf("action %q: missing value for %s", name, seg)
		}
		segs[i] = url.PathEscape(fmt.Sprint(args[0]))
		args = args[1:]
	}
	path := strings.Join(segs, "/")

	if len(args)%2 != 0 {
		return "", fmt.Errorf("action %q: odd number of query args", name)
	}
	if len(args) == 0 {
		return path, nil
	}
	q := url.Values{}
	for i := 0; i < len(args); i += 2 {
		q.Add(fmt.Sprint(args[i]), fmt.Sprint(args[i+1]))
	}
	return path + "?" + q.Encode(), nil
}

package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/kfsearch/internal/db/memory"
	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
	reposel "github.com/kailas-cloud/kfsearch/internal/repository/selection"
)

// --- Mocks ---

type mockRepo struct {
	mu        sync.Mutex
	lists     map[string]domsel.List
	legacy    map[string][]string
	loadErr   error
	legacyErr error
	saveErr   error
	saves     int
	legacySet int
}

func newMockRepo() *mockRepo {
	return &mockRepo{lists: map[string]domsel.List{}, legacy: map[string][]string{}}
}

func (m *mockRepo) Load(_ context.Context, sid string) (domsel.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domsel.List{}, m.loadErr
	}
	l := m.lists[sid]
	return domsel.NewList(l.Items()), nil
}

func (m *mockRepo) Save(_ context.Context, sid string, l domsel.List) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.lists[sid] = domsel.NewList(l.Items())
	return nil
}

func (m *mockRepo) LoadLegacy(_ context.Context, sid string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.legacyErr != nil {
		return nil, m.legacyErr
	}
	return m.legacy[sid], nil
}

func (m *mockRepo) SaveLegacy(_ context.Context, sid string, srcs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacySet++
	m.legacy[sid] = srcs
	return nil
}

type mockCatalog struct {
	byID   map[int]image.Record
	byPath map[string]image.Record
}

func newMockCatalog(recs ...image.Record) *mockCatalog {
	c := &mockCatalog{byID: map[int]image.Record{}, byPath: map[string]image.Record{}}
	for _, r := range recs {
		c.byID[r.ID()] = r
		c.byPath[r.Path()] = r
	}
	return c
}

func (m *mockCatalog) Lookup(_ context.Context, id int) (image.Record, bool) {
	r, ok := m.byID[id]
	return r, ok
}

func (m *mockCatalog) LookupPath(_ context.Context, path string) (image.Record, bool) {
	r, ok := m.byPath[path]
	return r, ok
}

func rec(id int) image.Record {
	return image.New(id, fmt.Sprintf("images/keyframes/L21_V001/%08d.jpg", id))
}

func ids(items []domsel.Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
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

// --- Tests ---

func TestAdd_DuplicateKeepsLength(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo, newMockCatalog(), 0, nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "s1", rec(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, err := svc.Add(ctx, "s1", rec(1))
	if !errors.Is(err, domain.ErrAlreadySelected) {
		t.Fatalf("expected ErrAlreadySelected, got %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
	if repo.saves != 1 {
		t.Errorf("duplicate add must not persist, saves=%d", repo.saves)
	}
}

func TestAdd_ParsesVideoAndFrame(t *testing.T) {
	svc := New(newMockRepo(), newMockCatalog(), 0, nil).
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) })

	items, err := svc.Add(context.Background(), "s1", image.New(5, "images/keyframes/L21_V001/00000005.jpg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	it := items[0]
	if it.Video != "L21_V001" || it.Frame != "00000005" {
		t.Errorf("unexpected item %+v", it)
	}
	if !it.AddedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected AddedAt %v", it.AddedAt)
	}
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo, newMockCatalog(), 0, nil)
	ctx := context.Background()

	_, _ = svc.Add(ctx, "s1", rec(1))
	items, err := svc.Remove(ctx, "s1", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalInts(ids(items), []int{1}) {
		t.Errorf("list changed: %v", ids(items))
	}
	if repo.saves != 1 {
		t.Errorf("no-op remove must not persist, saves=%d", repo.saves)
	}

	items, _ = svc.Remove(ctx, "s1", 1)
	if len(items) != 0 {
		t.Errorf("expected empty list, got %v", ids(items))
	}
}

func TestReorder_Bounds(t *testing.T) {
	svc := New(newMockRepo(), newMockCatalog(), 0, nil)
	ctx := context.Background()
	for _, id := range []int{1, 2, 3} {
		_, _ = svc.Add(ctx, "s1", rec(id))
	}

	tests := []struct {
		name string
		id   int
		dir  domsel.Direction
		want []int
	}{
		{"first up is noop", 1, domsel.Up, []int{1, 2, 3}},
		{"last down is noop", 3, domsel.Down, []int{1, 2, 3}},
		{"middle up", 2, domsel.Up, []int{2, 1, 3}},
		{"first down", 2, domsel.Down, []int{1, 2, 3}},
		{"unknown id", 42, domsel.Up, []int{1, 2, 3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, err := svc.Reorder(ctx, "s1", tc.id, tc.dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !equalInts(ids(items), tc.want) {
				t.Errorf("got %v, want %v", ids(items), tc.want)
			}
		})
	}
}

func TestClear_RequiresConfirmation(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo, newMockCatalog(), 0, nil)
	ctx := context.Background()
	_, _ = svc.Add(ctx, "s1", rec(1))
	repo.legacy["s1"] = []string{"http://localhost:5001/images/keyframes/L21_V001/00000001.jpg"}

	if err := svc.Clear(ctx, "s1", false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if n := len(svc.List(ctx, "s1")); n != 1 {
		t.Fatalf("unconfirmed clear changed the list: %d items", n)
	}

	if err := svc.Clear(ctx, "s1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(svc.List(ctx, "s1")); n != 0 {
		t.Errorf("expected empty list, got %d", n)
	}
	if len(svc.Legacy(ctx, "s1")) != 0 {
		t.Error("expected legacy list cleared")
	}
}

func TestMutate_SaveFailureIsNotSurfaced(t *testing.T) {
	repo := newMockRepo()
	repo.saveErr = errors.New("disk full")
	svc := New(repo, newMockCatalog(), 0, nil)

	items, err := svc.Add(context.Background(), "s1", rec(1))
	if err != nil {
		t.Fatalf("write failures must be swallowed, got %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected mutated list, got %d", len(items))
	}
}

func TestMutate_LoadFailureIsReturned(t *testing.T) {
	repo := newMockRepo()
	repo.loadErr = errors.New("connection refused")
	svc := New(repo, newMockCatalog(), 0, nil)

	if _, err := svc.Add(context.Background(), "s1", rec(1)); err == nil {
		t.Fatal("expected error when the stored list cannot be read")
	}
	if repo.saves != 0 {
		t.Error("must not overwrite a list it could not read")
	}
	if items := svc.List(context.Background(), "s1"); items != nil {
		t.Errorf("List should degrade to empty, got %v", items)
	}
}

func TestAddByID(t *testing.T) {
	cat := newMockCatalog(rec(4))
	svc := New(newMockRepo(), cat, 0, nil)
	ctx := context.Background()

	if _, err := svc.AddByID(ctx, "s1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddByID(ctx, "s1", 5); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddByPath(t *testing.T) {
	r := image.New(12, "images/keyframes/L21_V002/00000012.jpg")
	svc := New(newMockRepo(), newMockCatalog(r), 0, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"full url", "http://localhost:5001/images/keyframes/L21_V002/00000012.jpg", nil},
		{"relative", "images/keyframes/L21_V002/00000012.jpg", domain.ErrAlreadySelected},
		{"short form", " L21_V002/00000012.jpg ", domain.ErrAlreadySelected},
		{"unknown", "L99_V001/00000001.jpg", domain.ErrNotFound},
		{"blank", "   ", domain.ErrEmptyQuery},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddByPath(ctx, "s1", tc.raw)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConcurrentAdds_Serialised(t *testing.T) {
	svc := New(newMockRepo(), newMockCatalog(), 0, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, _ = svc.Add(ctx, "s1", image.New(id, "images/keyframes/L21_V001/x.jpg"))
		}(i)
	}
	wg.Wait()

	if n := len(svc.List(ctx, "s1")); n != 20 {
		t.Errorf("expected 20 items, lost updates: %d", n)
	}
}

func TestSelection_SurvivesReload(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first := New(reposel.New(store, "kfsearch:", nil), newMockCatalog(), 0, nil)
	if _, err := first.Add(ctx, "s1", image.New(7, "images/keyframes/L21_V001/00000007.jpg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A fresh manager over the same store stands in for a page reload.
	reloaded := New(reposel.New(store, "kfsearch:", nil), newMockCatalog(), 0, nil)
	items := reloaded.List(ctx, "s1")
	if !equalInts(ids(items), []int{7}) {
		t.Fatalf("expected [7] after reload, got %v", ids(items))
	}
	if items[0].Video != "L21_V001" || items[0].Frame != "00000007" {
		t.Errorf("unexpected item %+v", items[0])
	}
}

func TestAddLegacy(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo, newMockCatalog(), 0, nil)
	ctx := context.Background()

	srcs, err := svc.AddLegacy(ctx, "s1", " http://localhost:5001/keyframes/L21_V001/00000005.jpg?x=1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(srcs) != 1 || srcs[0] != "keyframes/L21_V001/00000005.jpg" {
		t.Fatalf("unexpected sources %v", srcs)
	}

	if _, err := svc.AddLegacy(ctx, "s1", "/keyframes/L21_V001/00000005.jpg"); !errors.Is(err, domain.ErrAlreadySelected) {
		t.Errorf("expected ErrAlreadySelected, got %v", err)
	}
	if _, err := svc.AddLegacy(ctx, "s1", "  "); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := svc.AddLegacy(ctx, "s1", "00000005.jpg"); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
	if n := len(svc.Legacy(ctx, "s1")); n != 1 {
		t.Errorf("expected 1 stored source, got %d", n)
	}
	if repo.legacySet != 1 {
		t.Errorf("expected 1 write, got %d", repo.legacySet)
	}
}

func TestLegacy_ReorderAndRemove(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo, newMockCatalog(), 0, nil)
	ctx := context.Background()
	for _, src := range []string{"keyframes/L21_V001/00000001.jpg", "keyframes/L21_V001/00000002.jpg"} {
		if _, err := svc.AddLegacy(ctx, "s1", src); err != nil {
			t.Fatalf("add %s: %v", src, err)
		}
	}

	srcs, err := svc.ReorderLegacy(ctx, "s1", "keyframes/L21_V001/00000002.jpg", domsel.Up)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if srcs[0] != "keyframes/L21_V001/00000002.jpg" {
		t.Fatalf("expected moved source first, got %v", srcs)
	}

	writes := repo.legacySet
	if _, err := svc.ReorderLegacy(ctx, "s1", "keyframes/L21_V001/00000002.jpg", domsel.Up); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.legacySet != writes {
		t.Error("no-op reorder must not write")
	}

	srcs, err = svc.RemoveLegacy(ctx, "s1", "keyframes/L21_V001/00000002.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(srcs) != 1 || srcs[0] != "keyframes/L21_V001/00000001.jpg" {
		t.Errorf("unexpected sources %v", srcs)
	}
}

func TestLegacy_LoadFailureIsReturned(t *testing.T) {
	repo := newMockRepo()
	repo.legacyErr = errors.New("connection refused")
	svc := New(repo, newMockCatalog(), 0, nil)

	if _, err := svc.AddLegacy(context.Background(), "s1", "keyframes/L21_V001/00000001.jpg"); err == nil {
		t.Fatal("expected error when the stored list cannot be read")
	}
	if repo.legacySet != 0 {
		t.Error("must not overwrite a list it could not read")
	}
}

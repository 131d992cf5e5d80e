package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "views.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestSaveLoad(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	if _, err := st.Save(ctx, "plains", "by=wfo&wfo=DMX,OAX&seconds=14400", at); err != nil {
		t.Fatalf("save: %v", err)
	}
	v, err := st.Load(ctx, "plains")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Query != "by=wfo&wfo=DMX,OAX&seconds=14400" {
		t.Errorf("query = %q", v.Query)
	}
	if !v.SavedAt.Equal(at) {
		t.Errorf("savedAt = %v, want %v", v.SavedAt, at)
	}
}

func TestSaveReplaces(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	_, _ = st.Save(ctx, "a", "by=wfo", now)
	_, _ = st.Save(ctx, "a", "by=state", now.Add(time.Minute))

	v, err := st.Load(ctx, "a")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Query != "by=state" {
		t.Errorf("query = %q, want replaced", v.Query)
	}
}

func TestListAndDelete(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	now := time.Now()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		if _, err := st.Save(ctx, name, "by=wfo", now); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	views, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 3 || views[0].Name != "alpha" || views[2].Name != "zulu" {
		t.Errorf("list = %+v", views)
	}

	if err := st.Delete(ctx, "mike"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.Delete(ctx, "mike"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
	if _, err := st.Load(ctx, "mike"); !errors.Is(err, ErrNotFound) {
		t.Errorf("load deleted = %v, want ErrNotFound", err)
	}
}

func TestSaveEmptyName(t *testing.T) {
	st := openTemp(t)
	if _, err := st.Save(context.Background(), "  ", "by=wfo", time.Now()); !errors.Is(err, ErrEmptyName) {
		t.Errorf("save empty name = %v, want ErrEmptyName", err)
	}
}

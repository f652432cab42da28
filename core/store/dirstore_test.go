package store

import (
	"context"
	"errors"
	"testing"
)

func TestDirStoreRoundTrip(t *testing.T) {
	store := NewDirStore(t.TempDir())
	ctx := context.Background()

	doc := Document{ID: "dragon", Title: "The Dragon of Ash Hill", Content: "Once upon a time..."}
	if err := store.Write(ctx, "stories", doc); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	got, err := store.Read(ctx, "stories", "dragon")
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if got.Title != doc.Title {
		t.Errorf("expected title %q, got %q", doc.Title, got.Title)
	}
	if got.Content != doc.Content {
		t.Errorf("expected content %q, got %q", doc.Content, got.Content)
	}
}

func TestDirStoreListSortsById(t *testing.T) {
	store := NewDirStore(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"wolf", "dragon", "mermaid"} {
		if err := store.Write(ctx, "stories", Document{ID: id, Title: id}); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
	}

	documents, err := store.List(ctx, "stories")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(documents))
	}
	for i, id := range []string{"dragon", "mermaid", "wolf"} {
		if documents[i].ID != id {
			t.Errorf("expected document %d to be %q, got %q", i, id, documents[i].ID)
		}
	}
}

func TestDirStoreListMissingCollectionIsEmpty(t *testing.T) {
	store := NewDirStore(t.TempDir())

	documents, err := store.List(context.Background(), "poems")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(documents) != 0 {
		t.Errorf("expected empty collection, got %d documents", len(documents))
	}
}

func TestDirStoreReadMissingDocument(t *testing.T) {
	store := NewDirStore(t.TempDir())

	_, err := store.Read(context.Background(), "stories", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirStoreDelete(t *testing.T) {
	store := NewDirStore(t.TempDir())
	ctx := context.Background()

	if err := store.Write(ctx, "stories", Document{ID: "dragon", Content: "..."}); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if err := store.Delete(ctx, "stories", "dragon"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := store.Read(ctx, "stories", "dragon"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

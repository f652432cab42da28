package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when a document or collection does not exist.
var ErrNotFound = fmt.Errorf("document not found")

// DirStore keeps each collection as a directory of markdown files. The file
// stem is the document id; a leading "# " heading is the title.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (s *DirStore) List(_ context.Context, collection string) ([]Document, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}

	var documents []Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".md")
		doc, err := s.readFile(collection, id)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].ID < documents[j].ID
	})
	return documents, nil
}

func (s *DirStore) Read(_ context.Context, collection, id string) (Document, error) {
	return s.readFile(collection, id)
}

func (s *DirStore) Write(_ context.Context, collection string, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}

	dir := filepath.Join(s.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	var content strings.Builder
	if doc.Title != "" {
		content.WriteString("# " + doc.Title + "\n\n")
	}
	content.WriteString(doc.Content)

	path := filepath.Join(dir, doc.ID+".md")
	if err := os.WriteFile(path, []byte(content.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write document %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

func (s *DirStore) Delete(_ context.Context, collection, id string) error {
	path := filepath.Join(s.root, collection, id+".md")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DirStore) readFile(collection, id string) (Document, error) {
	path := filepath.Join(s.root, collection, id+".md")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("failed to read document %s/%s: %w", collection, id, err)
	}

	doc := Document{ID: id, Content: string(raw)}
	lines := strings.SplitN(doc.Content, "\n", 2)
	if strings.HasPrefix(lines[0], "# ") {
		doc.Title = strings.TrimSpace(strings.TrimPrefix(lines[0], "# "))
		if len(lines) > 1 {
			doc.Content = strings.TrimLeft(lines[1], "\n")
		} else {
			doc.Content = ""
		}
	}
	return doc, nil
}

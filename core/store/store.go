// Package store provides the keyed document store that skills read their
// content from. Documents are markdown files grouped into collections, with
// the first heading line carrying the title.
package store

import "context"

// Document is a single stored content item.
type Document struct {
	ID      string
	Title   string
	Content string
}

// Store is a keyed document store grouped by collection.
type Store interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Read(ctx context.Context, collection, id string) (Document, error)
	Write(ctx context.Context, collection string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
}

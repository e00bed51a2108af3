// Package store implements the record store: a document backend addressed by
// collection name, and typed collections for each kind of back-office record.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an update targets a document that does not exist.
var ErrNotFound = errors.New("document not found")

// Fields maintained by the store. Values supplied by callers are discarded.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Document is a flat, schema-free record as kept by a backend.
type Document map[string]any

// Backend is a document database. Implementations must be safe for concurrent use.
type Backend interface {
	// Insert stores doc under id in collection.
	Insert(ctx context.Context, collection, id string, doc Document) error
	// FindAll returns every document in collection, newest createdAt first.
	// Each document carries its id under FieldID.
	FindAll(ctx context.Context, collection string) ([]Document, error)
	// FindOne returns the document with id, or nil if there is none.
	FindOne(ctx context.Context, collection, id string) (Document, error)
	// Merge overwrites the given fields of an existing document, leaving the
	// rest untouched. It returns ErrNotFound if the document does not exist.
	Merge(ctx context.Context, collection, id string, fields Document) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Count returns the number of documents in collection.
	Count(ctx context.Context, collection string) (int64, error)
	// Close releases the backend's connections.
	Close() error
}

// FormatTime renders a store timestamp.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// toDocument converts a record into a Document through its JSON form.
func toDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding record fields: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// fromDocument fills target from a Document through its JSON form.
func fromDocument(doc Document, target any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

// stripReserved removes the fields only the store may set.
func stripReserved(doc Document) {
	delete(doc, FieldID)
	delete(doc, FieldCreatedAt)
	delete(doc, FieldUpdatedAt)
}

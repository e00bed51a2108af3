package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collection is a typed view of one backend collection. R is the record type
// and P its partial-update type; both must round-trip through JSON.
type Collection[R, P any] struct {
	name    string
	backend Backend
	now     func() time.Time
	newID   func() string
}

// Option configures a Collection.
type Option func(*collectionOptions)

type collectionOptions struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *collectionOptions) { o.now = now }
}

// WithIDGenerator overrides how new document ids are made.
func WithIDGenerator(newID func() string) Option {
	return func(o *collectionOptions) { o.newID = newID }
}

// NewCollection binds a record type to a named collection on backend.
func NewCollection[R, P any](backend Backend, name string, opts ...Option) *Collection[R, P] {
	o := collectionOptions{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[R, P]{name: name, backend: backend, now: o.now, newID: o.newID}
}

// Name returns the collection name.
func (c *Collection[R, P]) Name() string {
	return c.name
}

// Create stores a new record and returns its assigned id. Any id or
// timestamps on the record are ignored.
func (c *Collection[R, P]) Create(ctx context.Context, record R) (string, error) {
	doc, err := toDocument(record)
	if err != nil {
		return "", fmt.Errorf("creating %s record: %w", c.name, err)
	}
	stripReserved(doc)
	doc[FieldCreatedAt] = FormatTime(c.now())

	id := c.newID()
	if err := c.backend.Insert(ctx, c.name, id, doc); err != nil {
		return "", fmt.Errorf("creating %s record: %w", c.name, err)
	}
	return id, nil
}

// List returns all records, newest first.
func (c *Collection[R, P]) List(ctx context.Context) ([]R, error) {
	docs, err := c.backend.FindAll(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.name, err)
	}

	records := make([]R, 0, len(docs))
	for _, doc := range docs {
		var r R
		if err := fromDocument(doc, &r); err != nil {
			return nil, fmt.Errorf("listing %s: %w", c.name, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Get returns a record by id, or nil if it does not exist.
func (c *Collection[R, P]) Get(ctx context.Context, id string) (*R, error) {
	doc, err := c.backend.FindOne(ctx, c.name, id)
	if err != nil {
		return nil, fmt.Errorf("getting %s record: %w", c.name, err)
	}
	if doc == nil {
		return nil, nil
	}

	r := new(R)
	if err := fromDocument(doc, r); err != nil {
		return nil, fmt.Errorf("getting %s record: %w", c.name, err)
	}
	return r, nil
}

// Update applies the non-nil fields of patch and stamps updatedAt.
func (c *Collection[R, P]) Update(ctx context.Context, id string, patch P) error {
	fields, err := toDocument(patch)
	if err != nil {
		return fmt.Errorf("updating %s record: %w", c.name, err)
	}
	return c.UpdateFields(ctx, id, fields)
}

// Overwrite writes every field of record over the stored one, as an edit form
// submission does. Fields the record omits are kept.
func (c *Collection[R, P]) Overwrite(ctx context.Context, id string, record R) error {
	fields, err := toDocument(record)
	if err != nil {
		return fmt.Errorf("updating %s record: %w", c.name, err)
	}
	return c.UpdateFields(ctx, id, fields)
}

// UpdateFields merges raw fields into the stored record and stamps updatedAt.
// Store-maintained fields in the input are ignored. It returns ErrNotFound if
// the record does not exist.
func (c *Collection[R, P]) UpdateFields(ctx context.Context, id string, fields Document) error {
	merged := make(Document, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	stripReserved(merged)
	merged[FieldUpdatedAt] = FormatTime(c.now())

	if err := c.backend.Merge(ctx, c.name, id, merged); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating %s record: %w", c.name, err)
	}
	return nil
}

// Delete removes a record. There is no undo.
func (c *Collection[R, P]) Delete(ctx context.Context, id string) error {
	if err := c.backend.Delete(ctx, c.name, id); err != nil {
		return fmt.Errorf("deleting %s record: %w", c.name, err)
	}
	return nil
}

// Count returns the number of records.
func (c *Collection[R, P]) Count(ctx context.Context) (int64, error) {
	n, err := c.backend.Count(ctx, c.name)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", c.name, err)
	}
	return n, nil
}

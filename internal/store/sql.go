package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/erazemk/vitrina/internal/db"
)

// SQLBackend keeps documents as JSON in the documents table of a SQLite or
// PostgreSQL database.
type SQLBackend struct {
	DB     *sql.DB
	driver string
}

// NewSQLBackend wraps an open database whose schema has been ensured.
func NewSQLBackend(database *sql.DB, driver string) *SQLBackend {
	return &SQLBackend{DB: database, driver: driver}
}

func (b *SQLBackend) q(query string) string {
	return db.Rebind(b.driver, query)
}

// Insert stores a new document.
func (b *SQLBackend) Insert(ctx context.Context, collection, id string, doc Document) error {
	createdAt, _ := doc[FieldCreatedAt].(string)
	data, err := encodeData(doc)
	if err != nil {
		return err
	}

	_, err = b.DB.ExecContext(ctx,
		b.q(`INSERT INTO documents (collection, id, data, created_at) VALUES (?, ?, ?, ?)`),
		collection, id, data, createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// FindAll returns a collection's documents, newest first.
func (b *SQLBackend) FindAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := b.DB.QueryContext(ctx,
		b.q(`SELECT id, data FROM documents WHERE collection = ?
		 ORDER BY created_at DESC, seq DESC`), collection,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc, err := decodeData(id, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// FindOne returns a document by id, or nil if it does not exist.
func (b *SQLBackend) FindOne(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	err := b.DB.QueryRowContext(ctx,
		b.q(`SELECT data FROM documents WHERE collection = ? AND id = ?`), collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return decodeData(id, data)
}

// Merge overlays fields on the stored document inside a transaction.
func (b *SQLBackend) Merge(ctx context.Context, collection, id string, fields Document) error {
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx,
		b.q(`SELECT data FROM documents WHERE collection = ? AND id = ?`), collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding stored document: %w", err)
	}
	maps.Copy(doc, fields)

	merged, err := encodeData(doc)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		b.q(`UPDATE documents SET data = ? WHERE collection = ? AND id = ?`),
		merged, collection, id,
	); err != nil {
		return fmt.Errorf("updating document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes a document.
func (b *SQLBackend) Delete(ctx context.Context, collection, id string) error {
	_, err := b.DB.ExecContext(ctx,
		b.q(`DELETE FROM documents WHERE collection = ? AND id = ?`), collection, id,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// Count returns the number of documents in a collection.
func (b *SQLBackend) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := b.DB.QueryRowContext(ctx,
		b.q(`SELECT COUNT(*) FROM documents WHERE collection = ?`), collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (b *SQLBackend) Close() error {
	return b.DB.Close()
}

// encodeData serialises a document without its id, which lives in its own column.
func encodeData(doc Document) (string, error) {
	body := maps.Clone(doc)
	delete(body, FieldID)
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	return string(data), nil
}

func decodeData(id string, data []byte) (Document, error) {
	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	doc[FieldID] = id
	return doc, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/ericfisherdev/vaultdesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DocumentStore = (*DocumentRepo)(nil)

// fieldNamePattern restricts queryable field names so they can be inlined
// into a JSON path expression, which lets SQLite use the expression index
// on tenantId.
var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// DocumentRepo is the SQLite implementation of the DocumentStore port.
// Each document is a row keyed by (collection, id) with its fields stored as a JSON object.
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new DocumentRepo backed by the given DB.
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Get returns the document with the given id, or driven.ErrDocumentNotFound.
func (r *DocumentRepo) Get(ctx context.Context, collection, id string) (driven.Document, error) {
	const query = `SELECT fields FROM documents WHERE collection = ? AND id = ?`

	var raw string
	err := r.db.Reader.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return driven.Document{}, fmt.Errorf("get document %s/%s: %w", collection, id, driven.ErrDocumentNotFound)
	}
	if err != nil {
		return driven.Document{}, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return driven.Document{}, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}

	return driven.Document{ID: id, Fields: fields}, nil
}

// Put inserts the document or replaces all fields of an existing one.
func (r *DocumentRepo) Put(ctx context.Context, collection string, doc driven.Document) error {
	if doc.ID == "" {
		return errors.New("put document: empty id")
	}

	raw, err := encodeFields(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, doc.ID, err)
	}

	const query = `
		INSERT INTO documents (collection, id, fields) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET fields = excluded.fields`

	if _, err := r.db.Writer.ExecContext(ctx, query, collection, doc.ID, raw); err != nil {
		return fmt.Errorf("put document %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// Merge applies fields to an existing document in a single statement using
// SQLite's json_patch, so concurrent merges are serialized per document.
func (r *DocumentRepo) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return fmt.Errorf("encode patch %s/%s: %w", collection, id, err)
	}

	const query = `UPDATE documents SET fields = json_patch(fields, ?) WHERE collection = ? AND id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, raw, collection, id)
	if err != nil {
		return fmt.Errorf("merge document %s/%s: %w", collection, id, err)
	}
	return requireAffected(result, collection, id)
}

// Delete removes the document permanently.
func (r *DocumentRepo) Delete(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = ? AND id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	return requireAffected(result, collection, id)
}

// QueryByField returns all documents in collection whose top-level field equals value, ordered by id.
func (r *DocumentRepo) QueryByField(ctx context.Context, collection, field, value string) ([]driven.Document, error) {
	if !fieldNamePattern.MatchString(field) {
		return nil, fmt.Errorf("query documents: invalid field name %q", field)
	}

	query := fmt.Sprintf(
		`SELECT id, fields FROM documents WHERE collection = ? AND json_extract(fields, '$.%s') = ? ORDER BY id`,
		field,
	)

	rows, err := r.db.Reader.QueryContext(ctx, query, collection, value)
	if err != nil {
		return nil, fmt.Errorf("query documents %s by %s: %w", collection, field, err)
	}
	defer rows.Close()

	var docs []driven.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
		}
		docs = append(docs, driven.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

func requireAffected(result sql.Result, collection, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, driven.ErrDocumentNotFound)
	}
	return nil
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeFields(raw string) (map[string]any, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

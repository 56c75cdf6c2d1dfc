package driven

import (
	"context"
	"errors"
)

// ErrDocumentNotFound is returned by DocumentStore when no document has the given ID.
var ErrDocumentNotFound = errors.New("document not found")

// Document is a schemaless record: an ID and a map of JSON-compatible field values.
type Document struct {
	ID     string
	Fields map[string]any
}

// DocumentStore is a minimal collection-oriented document database. The only
// consistency requirement is per-document atomicity of Put, Merge, and Delete.
type DocumentStore interface {
	// Get returns the document or ErrDocumentNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Put creates or fully replaces a document.
	Put(ctx context.Context, collection string, doc Document) error

	// Merge applies fields to an existing document with JSON merge-patch
	// (RFC 7396) semantics: given keys are overwritten, nested objects are
	// merged, and keys set to nil are removed. Returns ErrDocumentNotFound if absent.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Returns ErrDocumentNotFound if absent.
	Delete(ctx context.Context, collection, id string) error

	// QueryByField returns all documents whose top-level string field equals value.
	QueryByField(ctx context.Context, collection, field, value string) ([]Document, error)
}

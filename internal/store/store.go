package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document or principal does not exist.
// Deletion paths in the reconciler treat it as already-satisfied.
var ErrNotFound = errors.New("not found")

// Document is one record in a named collection. ID and CreatedAt live
// outside Fields and are addressable in filters as "$id" / "$createdAt".
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    map[string]any
}

// String returns the named field as a string ("" when absent or not a string).
func (d Document) String(key string) string {
	v, _ := d.Fields[key].(string)
	return v
}

// Bool returns the named field as a bool (false when absent).
func (d Document) Bool(key string) bool {
	v, _ := d.Fields[key].(bool)
	return v
}

// Time parses the named field as an RFC3339 timestamp.
// Returns nil when the field is absent, null, or unparseable.
func (d Document) Time(key string) *time.Time {
	switch v := d.Fields[key].(type) {
	case time.Time:
		return &v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return &t
		}
	}
	return nil
}

// StringSlice returns the named field as a list of strings. Both []string
// and []any (the shape JSON decoding produces) are accepted.
func (d Document) StringSlice(key string) []string {
	switch v := d.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// DocumentStore is the document-side backing system. Implementations are
// treated as fallible RPC services; every call may return a transport error.
type DocumentStore interface {
	// List returns the documents of a collection matching all filters.
	List(ctx context.Context, collection string, filters []Filter) ([]Document, error)

	// Create inserts a document. An empty id asks the store to generate one.
	Create(ctx context.Context, collection, id string, fields map[string]any) (*Document, error)

	// Update merges fields into an existing document.
	// Returns ErrNotFound when the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Returns ErrNotFound when already gone.
	Delete(ctx context.Context, collection, id string) error
}

// IdentityStore is the auth-side backing system holding principal accounts.
type IdentityStore interface {
	// CreatePrincipal registers an authentication identity and returns its id.
	CreatePrincipal(ctx context.Context, email, secret, displayName string) (string, error)

	// DeletePrincipal removes a principal.
	// Returns ErrNotFound when the principal does not exist.
	DeletePrincipal(ctx context.Context, principalID string) error

	// SetLabels replaces the principal's role-marker labels.
	SetLabels(ctx context.Context, principalID string, labels []string) error
}

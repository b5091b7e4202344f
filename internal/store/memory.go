package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDocumentStore keeps collections in process memory. It backs the
// reconciler when no real store is configured and serves as the test double
// for the engine.
type MemoryDocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document // collection -> id -> doc
	clock       func() time.Time
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		collections: map[string]map[string]Document{},
		clock:       time.Now,
	}
}

var _ DocumentStore = (*MemoryDocumentStore)(nil)

// SetClock overrides document timestamping, for tests.
func (s *MemoryDocumentStore) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *MemoryDocumentStore) List(_ context.Context, collection string, filters []Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := -1
	var preds []Filter
	for _, f := range filters {
		if f.Op == OpLimit {
			if len(f.Values) == 1 {
				if n, ok := f.Values[0].(int); ok {
					limit = n
				}
			}
			continue
		}
		preds = append(preds, f)
	}

	var out []Document
	for _, doc := range s.collections[collection] {
		match := true
		for _, f := range preds {
			ok, err := matches(doc, f)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			out = append(out, cloneDocument(doc))
		}
	}
	// Stable order so repeated runs see the same candidate sequence.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryDocumentStore) Create(_ context.Context, collection, id string, fields map[string]any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	col := s.collections[collection]
	if col == nil {
		col = map[string]Document{}
		s.collections[collection] = col
	}
	if _, exists := col[id]; exists {
		return nil, fmt.Errorf("document %s already exists in %s", id, collection)
	}
	now := s.clock()
	doc := Document{ID: id, CreatedAt: now, UpdatedAt: now, Fields: cloneFields(fields)}
	col[id] = doc
	result := cloneDocument(doc)
	return &result, nil
}

func (s *MemoryDocumentStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc.Fields[k] = v
	}
	doc.UpdatedAt = s.clock()
	s.collections[collection][id] = doc
	return nil
}

func (s *MemoryDocumentStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

// Get returns one document by id, for test assertions.
func (s *MemoryDocumentStore) Get(collection, id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return Document{}, false
	}
	return cloneDocument(doc), true
}

func matches(doc Document, f Filter) (bool, error) {
	switch f.Op {
	case OpEqual:
		v, present := fieldValue(doc, f.Field)
		if !present {
			return false, nil
		}
		for _, want := range f.Values {
			if valueEquals(v, want) {
				return true, nil
			}
		}
		return false, nil
	case OpNotEqual:
		v, present := fieldValue(doc, f.Field)
		if !present {
			return true, nil
		}
		return !valueEquals(v, f.Values[0]), nil
	case OpLessThan:
		v, present := fieldValue(doc, f.Field)
		if !present {
			return false, nil
		}
		return valueLess(v, f.Values[0]), nil
	case OpIsNull:
		v, present := fieldValue(doc, f.Field)
		return !present || v == nil, nil
	case OpOr:
		for _, sub := range f.Sub {
			ok, err := matches(doc, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported filter op %q", f.Op)
	}
}

// fieldValue resolves a filter field against a document, including the
// meta fields "$id" and "$createdAt".
func fieldValue(doc Document, field string) (any, bool) {
	switch field {
	case "$id":
		return doc.ID, true
	case "$createdAt":
		return doc.CreatedAt.UTC().Format(time.RFC3339), true
	}
	v, ok := doc.Fields[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// valueEquals compares scalar field values. Non-scalar values (slices, maps)
// never match; comparing them directly would panic.
func valueEquals(a, b any) bool {
	if na, aok := asNumber(a); aok {
		if nb, bok := asNumber(b); bok {
			return na == nb
		}
	}
	switch av := normalize(a).(type) {
	case string:
		bv, ok := normalize(b).(string)
		return ok && av == bv
	case bool:
		bv, ok := normalize(b).(bool)
		return ok && av == bv
	}
	return false
}

func valueLess(a, b any) bool {
	if na, aok := asNumber(a); aok {
		if nb, bok := asNumber(b); bok {
			return na < nb
		}
	}
	sa, aok := normalize(a).(string)
	sb, bok := normalize(b).(string)
	return aok && bok && sa < sb
}

// normalize flattens times to RFC3339 strings so stored values and filter
// values compare the same way regardless of which shape the caller used.
func normalize(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return v
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cloneDocument(doc Document) Document {
	doc.Fields = cloneFields(doc.Fields)
	return doc
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// MemoryIdentityStore is the in-process counterpart for principal accounts.
type MemoryIdentityStore struct {
	mu         sync.RWMutex
	principals map[string]Principal
}

// Principal is an authentication identity held by the identity store.
type Principal struct {
	ID     string
	Email  string
	Name   string
	Labels []string
}

func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{principals: map[string]Principal{}}
}

var _ IdentityStore = (*MemoryIdentityStore)(nil)

func (s *MemoryIdentityStore) CreatePrincipal(_ context.Context, email, _, displayName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.principals[id] = Principal{ID: id, Email: email, Name: displayName}
	return id, nil
}

func (s *MemoryIdentityStore) DeletePrincipal(_ context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.principals[principalID]; !ok {
		return ErrNotFound
	}
	delete(s.principals, principalID)
	return nil
}

func (s *MemoryIdentityStore) SetLabels(_ context.Context, principalID string, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[principalID]
	if !ok {
		return ErrNotFound
	}
	p.Labels = append([]string(nil), labels...)
	s.principals[principalID] = p
	return nil
}

// AddPrincipal seeds a principal with a fixed id, for tests.
func (s *MemoryIdentityStore) AddPrincipal(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = p
}

// HasPrincipal reports whether a principal exists, for test assertions.
func (s *MemoryIdentityStore) HasPrincipal(principalID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.principals[principalID]
	return ok
}

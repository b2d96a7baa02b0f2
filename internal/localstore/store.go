package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
)

type Document map[string]any

// Query matches documents by top-level field equality.
type Query struct {
	Selector   Document
	SortBy     string
	Descending bool
	Limit      int
}

// Store is the schema-validated local mirror. Writes are visible to reads in
// the same process as soon as the call returns.
type Store struct {
	mu        sync.RWMutex
	schemas   map[string]*Schema
	data      map[string]map[string]Document
	persister Persister
}

func New(persister Persister, schemas ...*Schema) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	s := &Store{
		schemas:   make(map[string]*Schema, len(schemas)),
		data:      make(map[string]map[string]Document, len(schemas)),
		persister: persister,
	}
	for _, schema := range schemas {
		s.schemas[schema.Name] = schema
		s.data[schema.Name] = map[string]Document{}
	}
	return s
}

// Load restores every collection from the persister, migrating older records.
// Records that fail migration or validation abort the load.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, schema := range s.schemas {
		records, err := s.persister.LoadAll(ctx, name)
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		docs := make(map[string]Document, len(records))
		for id, rec := range records {
			doc, err := schema.Migrate(rec.Version, rec.Doc)
			if err != nil {
				return err
			}
			schema.applyDefaults(doc)
			if err := schema.Validate(doc); err != nil {
				return fmt.Errorf("load %s/%s: %w", name, id, err)
			}
			if rec.Version != schema.Version {
				if err := s.persister.Save(ctx, name, id, Record{Version: schema.Version, Doc: doc}); err != nil {
					return fmt.Errorf("rewrite migrated %s/%s: %w", name, id, err)
				}
			}
			docs[id] = doc
		}
		s.data[name] = docs
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, collection string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, err := s.schema(collection)
	if err != nil {
		return err
	}
	normalized, err := normalize(collection, doc)
	if err != nil {
		return err
	}
	return s.write(ctx, schema, normalized)
}

func (s *Store) FindOne(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.schema(collection); err != nil {
		return nil, err
	}
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, apperror.ErrNotFound)
	}
	return cloneDocument(doc), nil
}

func (s *Store) Find(_ context.Context, collection string, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.schema(collection); err != nil {
		return nil, err
	}
	selector, err := normalize(collection, q.Selector)
	if err != nil {
		return nil, err
	}

	out := []Document{}
	for _, doc := range s.data[collection] {
		if matches(doc, selector) {
			out = append(out, cloneDocument(doc))
		}
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = s.schemas[collection].PrimaryKey
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(out[i][sortBy], out[j][sortBy])
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Patch merges partial into the stored document and re-validates the result.
func (s *Store) Patch(ctx context.Context, collection, id string, partial Document) (Document, error) {
	return s.PatchFunc(ctx, collection, id, func(doc Document) (Document, error) {
		for k, v := range partial {
			doc[k] = v
		}
		return doc, nil
	})
}

// PatchFunc is a read-modify-write under the store lock. fn receives a copy.
func (s *Store) PatchFunc(ctx context.Context, collection, id string, fn func(Document) (Document, error)) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, err := s.schema(collection)
	if err != nil {
		return nil, err
	}
	current, ok := s.data[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, apperror.ErrNotFound)
	}

	next, err := fn(cloneDocument(current))
	if err != nil {
		return nil, err
	}
	next[schema.PrimaryKey] = id

	normalized, err := normalize(collection, next)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, schema, normalized); err != nil {
		return nil, err
	}
	return cloneDocument(normalized), nil
}

func (s *Store) Remove(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.schema(collection); err != nil {
		return err
	}
	if _, ok := s.data[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, apperror.ErrNotFound)
	}
	if err := s.persister.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("persist delete %s/%s: %w", collection, id, err)
	}
	delete(s.data[collection], id)
	return nil
}

func (s *Store) Count(collection string, selector Document) int {
	docs, err := s.Find(context.Background(), collection, Query{Selector: selector})
	if err != nil {
		return 0
	}
	return len(docs)
}

func (s *Store) write(ctx context.Context, schema *Schema, doc Document) error {
	schema.applyDefaults(doc)
	if err := schema.Validate(doc); err != nil {
		return err
	}
	id := doc[schema.PrimaryKey].(string)
	if err := s.persister.Save(ctx, schema.Name, id, Record{Version: schema.Version, Doc: doc}); err != nil {
		return fmt.Errorf("persist %s/%s: %w", schema.Name, id, err)
	}
	s.data[schema.Name][id] = doc
	return nil
}

func (s *Store) schema(collection string) (*Schema, error) {
	schema, ok := s.schemas[collection]
	if !ok {
		return nil, apperror.NewValidation(collection, "", "unknown collection")
	}
	return schema, nil
}

// normalize round-trips through JSON so stored values have one representation
// (numbers as float64, nested maps as map[string]any) and share no memory with the caller.
func normalize(collection string, doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, apperror.NewValidation(collection, "", err.Error())
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperror.NewValidation(collection, "", err.Error())
	}
	return out, nil
}

// Encode converts a typed value (struct with json tags) into a Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode fills out from a Document.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func matches(doc, selector Document) bool {
	for k, want := range selector {
		if compareValues(doc[k], want) != 0 {
			return false
		}
	}
	return true
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	if b == nil {
		return 1
	}
	// Mixed or composite types: fall back to their JSON form.
	ra, _ := json.Marshal(a)
	rb, _ := json.Marshal(b)
	switch {
	case string(ra) < string(rb):
		return -1
	case string(ra) > string(rb):
		return 1
	}
	return 0
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case Document:
		return cloneDocument(t)
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	}
	return v
}

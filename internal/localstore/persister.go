package localstore

import (
	"context"
	"sync"
)

// Record is the persisted form of a document, tagged with the schema version it was written under.
type Record struct {
	Version int      `json:"v"`
	Doc     Document `json:"doc"`
}

// Persister is the durable backing of the local store.
type Persister interface {
	Save(ctx context.Context, collection, id string, rec Record) error
	Delete(ctx context.Context, collection, id string) error
	LoadAll(ctx context.Context, collection string) (map[string]Record, error)
}

// MemoryPersister keeps records in process memory; used in tests and when no Redis is configured.
type MemoryPersister struct {
	mu      sync.Mutex
	records map[string]map[string]Record
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{records: map[string]map[string]Record{}}
}

func (p *MemoryPersister) Save(_ context.Context, collection, id string, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.records[collection] == nil {
		p.records[collection] = map[string]Record{}
	}
	p.records[collection][id] = Record{Version: rec.Version, Doc: cloneDocument(rec.Doc)}
	return nil
}

func (p *MemoryPersister) Delete(_ context.Context, collection, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.records[collection], id)
	return nil
}

func (p *MemoryPersister) LoadAll(_ context.Context, collection string) (map[string]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Record, len(p.records[collection]))
	for id, rec := range p.records[collection] {
		out[id] = Record{Version: rec.Version, Doc: cloneDocument(rec.Doc)}
	}
	return out, nil
}

// Package memory holds in-memory repository implementations used by tests
// and by local development without a database.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"alcyxob/neuralfit/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
)

// Write records one WriteMerge call as it was received.
type Write struct {
	UserID string
	Fields bson.M
}

// DocumentStore is an in-memory repository.DocumentStore. Documents pass
// through a BSON round-trip on every write, so subscribers see the same
// value types the MongoDB store would hand out.
type DocumentStore struct {
	mu       sync.Mutex
	docs     map[string]bson.M
	subs     map[string]map[int]repository.UpdateFunc
	nextSub  int
	failures []error
	writes   []Write
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]bson.M),
		subs: make(map[string]map[int]repository.UpdateFunc),
	}
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

// Subscribe delivers the current document synchronously, then every change.
func (m *DocumentStore) Subscribe(ctx context.Context, userID string, onUpdate repository.UpdateFunc) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[int]repository.UpdateFunc)
	}
	m.subs[userID][id] = onUpdate
	doc := m.snapshotLocked(userID)
	m.mu.Unlock()

	onUpdate(doc)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[userID], id)
			m.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return cancel, nil
}

// WriteMerge applies fields, or fails with the next injected error.
func (m *DocumentStore) WriteMerge(ctx context.Context, userID string, fields bson.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := roundTrip(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		m.mu.Unlock()
		return err
	}
	m.writes = append(m.writes, Write{UserID: userID, Fields: normalized})
	doc := m.docs[userID]
	if doc == nil {
		doc = bson.M{}
		m.docs[userID] = doc
	}
	for path, v := range normalized {
		setPath(doc, path, v)
	}
	m.mu.Unlock()

	m.notify(userID)
	return nil
}

// Put replaces a whole document, as an external writer would, and notifies
// subscribers. The value goes through a BSON round-trip first.
func (m *DocumentStore) Put(userID string, doc bson.M) error {
	normalized, err := roundTrip(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[userID] = normalized
	m.mu.Unlock()

	m.notify(userID)
	return nil
}

// Get returns a copy of the stored document, or nil.
func (m *DocumentStore) Get(userID string) bson.M {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[userID]; !ok {
		return nil
	}
	return m.snapshotLocked(userID)
}

// FailNext makes the next WriteMerge calls fail with errs, in order.
func (m *DocumentStore) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Writes returns the successful writes so far, oldest first.
func (m *DocumentStore) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *DocumentStore) notify(userID string) {
	m.mu.Lock()
	doc := m.snapshotLocked(userID)
	subs := make([]repository.UpdateFunc, 0, len(m.subs[userID]))
	for _, fn := range m.subs[userID] {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(doc)
	}
}

func (m *DocumentStore) snapshotLocked(userID string) bson.M {
	doc, ok := m.docs[userID]
	if !ok {
		return bson.M{}
	}
	out, err := roundTrip(doc)
	if err != nil {
		// Stored values were already round-tripped once.
		panic(fmt.Sprintf("memory store: copy document: %v", err))
	}
	return out
}

func roundTrip(doc bson.M) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("memory store: encode: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("memory store: decode: %w", err)
	}
	return out, nil
}

// setPath assigns v at a dotted path, creating intermediate documents.
func setPath(doc bson.M, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			if d, isD := cur[p].(bson.D); isD {
				next = d.Map()
			} else {
				next = bson.M{}
			}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"skylift/internal/deploy"
)

// StoredObject is one object written to a MemoryStore.
type StoredObject struct {
	Key         string
	ContentType string
	Metadata    map[string]string
	Body        []byte
}

// MemoryStore is an in-memory deploy.ObjectStore. It tracks the maximum
// number of concurrent Put calls so tests can assert upload parallelism
// stays within bounds. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.Mutex
	objects     map[string]*StoredObject
	inFlight    int
	maxInFlight int

	// PutErr, when set, is returned by every Put call.
	PutErr error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*StoredObject)}
}

func (s *MemoryStore) Put(ctx context.Context, key, contentType string, metadata map[string]string, body io.Reader) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading body for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	s.objects[key] = &StoredObject{
		Key:         key,
		ContentType: contentType,
		Metadata:    metadata,
		Body:        data,
	}
	return nil
}

// Object returns the stored object for key, or nil.
func (s *MemoryStore) Object(key string) *StoredObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Keys returns all stored object keys in no particular order.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// MaxInFlight returns the highest number of Put calls observed running at
// the same time.
func (s *MemoryStore) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

var _ deploy.ObjectStore = (*MemoryStore)(nil)

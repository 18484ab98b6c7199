package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// Persisted keys. Values are opaque JSON blobs.
const (
	KeyActor               = "actor"
	KeyPendingVerification = "pending_verification"
	KeyPendingReset        = "pending_reset"
)

// Values is a string key-value bag; *shared.Session satisfies it.
type Values interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// ValueStore is an ActorStore over a Values bag. The optional renew hook runs
// whenever the stored actor changes, typically rotating the session ID.
type ValueStore struct {
	values Values
	renew  func()
}

// NewValueStore builds a ValueStore.
func NewValueStore(values Values, renew func()) *ValueStore {
	return &ValueStore{values: values, renew: renew}
}

// Get implements ActorStore.
func (s *ValueStore) Get(ctx context.Context) (*rbac.Actor, error) {
	raw := s.values.Get(KeyActor)
	if raw == "" {
		return nil, nil
	}
	var actor rbac.Actor
	if err := json.Unmarshal([]byte(raw), &actor); err != nil {
		s.values.Delete(KeyActor)
		return nil, fmt.Errorf("decode actor: %w", err)
	}
	return &actor, nil
}

// Set implements ActorStore.
func (s *ValueStore) Set(ctx context.Context, actor rbac.Actor) error {
	data, err := json.Marshal(actor)
	if err != nil {
		return fmt.Errorf("encode actor: %w", err)
	}
	if s.renew != nil && s.values.Get(KeyActor) != string(data) {
		s.renew()
	}
	s.values.Set(KeyActor, string(data))
	return nil
}

// Clear implements ActorStore.
func (s *ValueStore) Clear(ctx context.Context) error {
	s.values.Delete(KeyActor)
	return nil
}

// MemoryValues is an in-process Values bag for tests and tools.
type MemoryValues struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryValues returns an empty bag.
func NewMemoryValues() *MemoryValues {
	return &MemoryValues{values: make(map[string]string)}
}

// Get implements Values.
func (m *MemoryValues) Get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// Set implements Values.
func (m *MemoryValues) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Delete implements Values.
func (m *MemoryValues) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// NewMemoryStore returns an ActorStore that lives only in process memory.
func NewMemoryStore() *ValueStore {
	return NewValueStore(NewMemoryValues(), nil)
}

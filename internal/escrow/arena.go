package escrow

import (
	"sync"

	"github.com/google/uuid"
)

// Arena holds the live contract instances, one per escrow agreement. It
// guarantees a single state machine per contract ID so all callers serialize
// on the same lock.
type Arena struct {
	mu        sync.RWMutex
	contracts map[uuid.UUID]*Contract
}

func NewArena() *Arena {
	return &Arena{contracts: make(map[uuid.UUID]*Contract)}
}

// Get returns the live instance for id, if loaded.
func (a *Arena) Get(id uuid.UUID) (*Contract, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.contracts[id]
	return c, ok
}

// GetOrPut registers c under id unless another instance won the race, in
// which case the existing one is returned.
func (a *Arena) GetOrPut(id uuid.UUID, c *Contract) *Contract {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.contracts[id]; ok {
		return existing
	}
	a.contracts[id] = c
	return c
}

// Remove drops the live instance. The persisted snapshot remains the source
// of truth.
func (a *Arena) Remove(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.contracts, id)
}

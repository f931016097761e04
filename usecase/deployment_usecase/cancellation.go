package deployment_usecase

import (
	"sync"
)

// CancelRegistry carries in-flight cancellation intents. Cancellation is
// cooperative: a platform deploy that already started runs to completion,
// targets that have not started are skipped.
type CancelRegistry struct {
	mu        sync.Mutex
	cancelled map[string]bool
}

// NewCancelRegistry creates an empty cancel registry
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancelled: make(map[string]bool)}
}

// RequestCancel flags a transaction for cancellation
func (c *CancelRegistry) RequestCancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled[id] = true
}

// IsCancelled reports whether cancellation was requested for a transaction
func (c *CancelRegistry) IsCancelled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[id]
}

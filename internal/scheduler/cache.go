package scheduler

import (
	"sync"
	"time"

	"github.com/sentinelsla/sentinel/internal/sla"
)

// WindowState is the most recently computed window for a subject, plus the
// policy that produced it.
type WindowState struct {
	Window    *sla.Window
	PolicyID  string
	UpdatedAt time.Time
}

// StateCache is a thread-safe cache of the latest window per subject.
type StateCache struct {
	mu     sync.RWMutex
	states map[string]*WindowState
}

// NewStateCache creates a new state cache.
func NewStateCache() *StateCache {
	return &StateCache{
		states: make(map[string]*WindowState),
	}
}

// Get retrieves the cached state for a subject.
func (c *StateCache) Get(subject sla.Subject) (*WindowState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, exists := c.states[subject.Key()]
	return state, exists
}

// Set stores the state for a subject.
func (c *StateCache) Set(subject sla.Subject, state *WindowState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[subject.Key()] = state
}

// GetAll returns a snapshot of all cached states keyed by subject key.
func (c *StateCache) GetAll() map[string]*WindowState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]*WindowState, len(c.states))
	for k, v := range c.states {
		snapshot[k] = v
	}

	return snapshot
}

// Delete removes a cached state.
func (c *StateCache) Delete(subject sla.Subject) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.states, subject.Key())
}

// Clear removes all cached states.
func (c *StateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states = make(map[string]*WindowState)
}

// Size returns the number of cached states.
func (c *StateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.states)
}

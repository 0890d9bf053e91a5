package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by Registry lookups for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// ProviderFactory builds the provider for a new session.
type ProviderFactory func() (Provider, error)

// Registry owns a set of isolated sessions keyed by id.
type Registry struct {
	factory ProviderFactory
	opts    Options

	mu       sync.RWMutex
	sessions map[string]*Store
}

// NewRegistry creates a registry whose sessions are built by factory and
// share opts (observers, metrics, logger). ID in opts is ignored.
func NewRegistry(factory ProviderFactory, opts Options) *Registry {
	return &Registry{
		factory:  factory,
		opts:     opts,
		sessions: make(map[string]*Store),
	}
}

// Create builds and registers a new disconnected session.
func (r *Registry) Create() (*Store, error) {
	provider, err := r.factory()
	if err != nil {
		return nil, err
	}

	opts := r.opts
	opts.ID = uuid.NewString()
	store := NewStore(provider, opts)

	r.mu.Lock()
	r.sessions[store.ID()] = store
	n := len(r.sessions)
	r.mu.Unlock()

	r.opts.Metrics.RecordSessionsActive(n)
	return store, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return store, nil
}

// IDs returns the ids of all registered sessions in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove disconnects, closes and unregisters a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	store, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	r.opts.Metrics.RecordSessionsActive(n)

	store.Disconnect()
	store.Close()
	return nil
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Store)
	r.mu.Unlock()

	for _, store := range sessions {
		store.Close()
	}
	r.opts.Metrics.RecordSessionsActive(0)
}

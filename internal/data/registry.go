package data

import (
	"context"
	"sync"

	"github.com/Veraticus/spice-dash/internal/common"
)

// Registry hands out the single Manager of a process.
type Registry struct {
	manager *Manager
	mu      sync.Mutex
}

// Initialize creates and starts the Manager. It fails with
// common.ErrAlreadyInitialized when called twice.
func (r *Registry) Initialize(ctx context.Context, cfg Config) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.manager != nil {
		return nil, common.ErrAlreadyInitialized
	}
	m, err := NewManager(cfg)
	if err != nil {
		return nil, err
	}
	if err := m.Start(ctx); err != nil {
		m.Close()
		return nil, err
	}
	r.manager = m
	return m, nil
}

// Instance returns the started Manager, or common.ErrUninitialized.
func (r *Registry) Instance() (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.manager == nil {
		return nil, common.ErrUninitialized
	}
	return r.manager, nil
}

// Shutdown closes the Manager and forgets it.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.manager != nil {
		r.manager.Close()
		r.manager = nil
	}
}

var defaultRegistry Registry

// Initialize starts the process-wide Manager.
func Initialize(ctx context.Context, cfg Config) (*Manager, error) {
	return defaultRegistry.Initialize(ctx, cfg)
}

// Instance returns the process-wide Manager.
func Instance() (*Manager, error) {
	return defaultRegistry.Instance()
}

// Shutdown closes the process-wide Manager.
func Shutdown() {
	defaultRegistry.Shutdown()
}

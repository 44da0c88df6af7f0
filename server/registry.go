// Package server hosts the named-store registry and TCP listener that
// make a collection of in-memory stores reachable over the wire.
package server

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/CylonicRaider/hkv"
)

// Registry maps store names to live MemStore instances, creating a
// store the first time its name is referenced and never removing one
// on its own: stores are never implicitly closed or garbage-collected.
// Concurrent first-opens of the same name are deduplicated with
// singleflight so exactly one MemStore is created.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*hkv.MemStore
	group  singleflight.Group
	log    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		stores: make(map[string]*hkv.MemStore),
		log:    log.Named("registry"),
	}
}

// GetOrCreate returns the named store, creating it if this is the
// first reference. It implements session.Registry.
func (r *Registry) GetOrCreate(name string) hkv.Store {
	r.mu.RLock()
	s, ok := r.stores[name]
	r.mu.RUnlock()
	if ok {
		return s
	}

	v, _, _ := r.group.Do(name, func() (interface{}, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if s, ok := r.stores[name]; ok {
			return s, nil
		}
		s := hkv.NewMemStore()
		r.stores[name] = s
		r.log.Info("store created", zap.String("store", name))
		return s, nil
	})
	return v.(*hkv.MemStore)
}

// Names returns a snapshot of the currently known store names, for
// diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.stores))
	for name := range r.stores {
		out = append(out, name)
	}
	return out
}

// CloseAll closes every store in the registry. Intended for server
// shutdown only; a closed store's subsequent use is undefined.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.stores {
		s.Close()
		r.log.Debug("store closed", zap.String("store", name))
	}
}

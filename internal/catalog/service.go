package catalog

import (
	"context"
	"sync/atomic"
	"time"

	"actionbroker/internal/discovery"
)

// built pairs a catalog with the discovery snapshot it was derived from.
type built struct {
	snap    *discovery.Snapshot
	methods []MethodSpec
}

// Service produces the current catalog from the discovery cache. The
// catalog is rebuilt only when the underlying snapshot changes; the
// last build is reused otherwise, swapped atomically like the snapshot
// itself.
type Service struct {
	cache *discovery.Cache
	caps  discovery.Capabilities
	last  atomic.Pointer[built]
}

// NewService creates a Service over the discovery cache and the loaded
// capabilities enrichment.
func NewService(cache *discovery.Cache, caps discovery.Capabilities) *Service {
	return &Service{cache: cache, caps: caps}
}

// Methods returns the current catalog and the time its discovery
// snapshot was built.
func (s *Service) Methods(ctx context.Context) ([]MethodSpec, time.Time, error) {
	snap, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return s.methodsFor(snap), snap.BuiltAt, nil
}

// Refresh forces a discovery re-scan and returns the rebuilt catalog.
func (s *Service) Refresh(ctx context.Context) ([]MethodSpec, time.Time, error) {
	snap, err := s.cache.Refresh(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return s.methodsFor(snap), snap.BuiltAt, nil
}

func (s *Service) methodsFor(snap *discovery.Snapshot) []MethodSpec {
	if last := s.last.Load(); last != nil && last.snap == snap {
		return last.methods
	}
	methods := Build(snap.Endpoints, s.caps)
	s.last.Store(&built{snap: snap, methods: methods})
	return methods
}

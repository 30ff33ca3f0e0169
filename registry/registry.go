// Package registry hands out named tcache instances and enforces id
// uniqueness. A Registry is an explicit object, never a process-wide
// singleton, so independent registries can coexist (and be thrown away) in
// tests.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gerrors "github.com/dlshle/gommon/errors"
	"github.com/dlshle/gommon/logging"
	"github.com/dlshle/tcache/cache"
	"github.com/dlshle/tcache/scheduler"
)

var (
	// ErrInvalidID is returned by Create for an empty id.
	ErrInvalidID = errors.New("cache id must be a non-empty string")

	// ErrDuplicateID is returned by Create when the id is already in use.
	ErrDuplicateID = errors.New("cache id already in use")

	// ErrNotFound is returned by Destroy for an unknown id.
	ErrNotFound = errors.New("no cache with the given id")
)

// Option configures a Registry at construction time.
type Option func(*Registry)

func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry maps unique ids to live cache instances. Destroying an instance,
// directly or through the registry, releases its id for reuse.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*cache.Cache
	sched  scheduler.Scheduler
	logger logging.Logger
	ctx    context.Context
}

// New returns an empty registry whose instances run on sched.
func New(sched scheduler.Scheduler, opts ...Option) *Registry {
	r := &Registry{
		caches: make(map[string]*cache.Cache),
		sched:  sched,
		logger: logging.GlobalLogger.WithPrefix("[tcache-registry]"),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates id and cfg and returns a new instance registered under
// id. On any failure no instance is reachable from the registry.
func (r *Registry) Create(id string, cfg *cache.Config) (*cache.Cache, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caches[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	c, err := cache.New(id, cfg, r.sched, cache.WithOnDestroy(func() {
		r.release(id)
	}))
	if err != nil {
		r.logger.TrackableError(r.ctx, gerrors.WrapWithStackTrace(err), "failed to create cache "+id)
		return nil, err
	}
	r.caches[id] = c
	r.logger.Infof(r.ctx, "created cache %q", id)
	return c, nil
}

// Get returns the live instance registered under id.
func (r *Registry) Get(id string) (*cache.Cache, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caches[id]
	return c, ok
}

// Destroy tears down the instance registered under id, releasing the id.
func (r *Registry) Destroy(id string) error {
	c, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c.Destroy()
}

// Size reports the number of live instances.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caches)
}

// InfoAll snapshots every live instance's info, keyed by id. Instances
// destroyed mid-walk are skipped.
func (r *Registry) InfoAll() map[string]cache.Info {
	r.mu.RLock()
	caches := make(map[string]*cache.Cache, len(r.caches))
	for id, c := range r.caches {
		caches[id] = c
	}
	r.mu.RUnlock()

	out := make(map[string]cache.Info, len(caches))
	for id, c := range caches {
		info, err := c.Info()
		if err != nil {
			continue
		}
		out[id] = info
	}
	return out
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, id)
	r.logger.Infof(r.ctx, "released cache id %q", id)
}

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dlshle/gommon/logging"
	"github.com/dlshle/tcache/scheduler"
)

// entry is the stored value plus its expiry bookkeeping. insertedAt and
// expiresAt are only meaningful while an expiry is armed; entries without an
// effective max age never carry a timer.
type entry struct {
	value      any
	insertedAt time.Time
	expiresAt  time.Time
	task       scheduler.Handle
	armSeq     uint64
}

// Info is a point-in-time snapshot of an instance's configuration and size.
// It carries no internal handles.
type Info struct {
	ID            string
	Capacity      int
	MaxAge        time.Duration
	FlushInterval time.Duration
	Size          int
}

// Stats tracks runtime counters for one instance.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

// Option configures a Cache at construction time.
type Option func(*Cache)

func WithLogger(logger logging.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithOnDestroy registers a hook fired once after Destroy has torn the
// instance down. The registry uses it to release the instance's id.
func WithOnDestroy(fn func()) Option {
	return func(c *Cache) {
		c.onDestroy = fn
	}
}

// Cache is a single named, capacity-bounded, time-aware key-value store.
// Entries are evicted in strict least-recently-used order once Capacity is
// breached, expire individually after their effective max age, and are wiped
// wholesale on the configured flush interval.
//
// All state is guarded by one mutex; timer callbacks re-enter through the
// same locked entry points as ordinary callers, so every operation executes
// as a discrete unit.
type Cache struct {
	mu sync.Mutex

	id            string
	capacity      int
	maxAge        time.Duration
	flushInterval time.Duration

	entries map[string]*entry
	order   *orderList
	size    int
	armSeq  uint64

	sched     scheduler.Scheduler
	flushTask scheduler.Handle
	onDestroy func()
	destroyed bool

	stats  Stats
	logger logging.Logger
	ctx    context.Context
}

// New validates cfg and returns a running instance. cfg may be nil for an
// unbounded cache with no expiry and no flushing. When a flush interval is
// configured the periodic full clear is armed immediately.
func New(id string, cfg *Config, sched scheduler.Scheduler, opts ...Option) (*Cache, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Cache{
		id:      id,
		entries: make(map[string]*entry),
		order:   newOrderList(),
		sched:   sched,
		logger:  logging.GlobalLogger.WithPrefix("[cache-" + id + "]"),
		ctx:     context.Background(),
	}
	if cfg != nil {
		c.capacity = cfg.Capacity
		c.maxAge = cfg.MaxAge
		c.flushInterval = cfg.FlushInterval
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.flushInterval > 0 {
		c.flushTask = sched.Every(c.flushInterval, c.flush)
	}
	return c, nil
}

// ID returns the instance's registry identifier.
func (c *Cache) ID() string {
	return c.id
}

// Put stores value under key and marks it most recently used, returning the
// stored value. A nil value is the absence sentinel: nothing is stored, but
// an already-present key is refreshed in recency order.
//
// The effective max age is the per-call WithMaxAge when given, else the
// configured default; entries with neither never self-expire. Overwriting a
// key always restarts its countdown. When the store breaches capacity the
// stale-end entry is evicted; exactly one eviction can occur per call since
// at most one entry is added.
func (c *Cache) Put(key string, value any, opts ...PutOption) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrDestroyed
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	var po putOptions
	for _, opt := range opts {
		if err := opt(&po); err != nil {
			return nil, err
		}
	}

	if value == nil {
		// Recency refresh only. Keys not present are not linked; the order
		// list must stay identical to the entry store.
		if _, ok := c.entries[key]; ok {
			c.order.touch(key)
		}
		return nil, nil
	}

	e, exists := c.entries[key]
	if !exists {
		e = &entry{}
		c.entries[key] = e
		c.size++
	}
	e.value = value
	c.order.touch(key)

	maxAge := c.maxAge
	if po.hasMaxAge {
		maxAge = po.maxAge
	}
	c.disarmLocked(e)
	if maxAge > 0 {
		c.armLocked(key, e, maxAge)
	} else {
		e.insertedAt = time.Time{}
		e.expiresAt = time.Time{}
	}

	if c.capacity > 0 && c.size > c.capacity {
		if victim, ok := c.order.staleKey(); ok {
			c.removeLocked(victim)
			c.stats.Evictions++
			c.logger.Debugf(c.ctx, "evicted %q over capacity %d", victim, c.capacity)
		}
	}
	return value, nil
}

// Get returns the value stored under key and marks it most recently used.
// Misses report (nil, false, nil); absence is not an error. An entry whose
// deadline has passed but whose timer has not fired yet is treated as absent
// and removed, never revived.
func (c *Cache) Get(key string) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, false, ErrDestroyed
	}
	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false, nil
	}
	if c.expiredLocked(e) {
		c.removeLocked(key)
		c.stats.Misses++
		c.stats.Expirations++
		return nil, false, nil
	}
	c.order.touch(key)
	c.stats.Hits++
	return e.value, true, nil
}

// Has reports whether key is present, without touching recency order.
func (c *Cache) Has(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return false, ErrDestroyed
	}
	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if c.expiredLocked(e) {
		c.removeLocked(key)
		c.stats.Expirations++
		return false, nil
	}
	return true, nil
}

// Keys returns the present keys ordered stale to fresh. Entries whose
// deadline passed before their timer fired are dropped, not listed, so Keys
// agrees with Get and Has about presence.
func (c *Cache) Keys() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrDestroyed
	}
	keys := make([]string, 0, c.size)
	for _, key := range c.order.keys() {
		if c.expiredLocked(c.entries[key]) {
			c.removeLocked(key)
			c.stats.Expirations++
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Remove deletes key's entry, disarming its timer. Absent keys are a no-op.
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrDestroyed
	}
	c.removeLocked(key)
	return nil
}

// RemoveAll disarms every entry timer and clears the store and recency
// order. The flush interval, when configured, keeps running.
func (c *Cache) RemoveAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrDestroyed
	}
	c.removeAllLocked()
	return nil
}

// Destroy stops the flush timer, clears all state and marks the instance
// unusable. Every later operation fails with ErrDestroyed. The on-destroy
// hook fires once, after teardown, outside the instance lock.
func (c *Cache) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if c.flushTask != nil {
		c.flushTask.Cancel()
		c.flushTask = nil
	}
	c.removeAllLocked()
	c.entries = nil
	c.order = nil
	c.destroyed = true
	onDestroy := c.onDestroy
	c.mu.Unlock()

	c.logger.Infof(c.ctx, "cache %q destroyed", c.id)
	if onDestroy != nil {
		onDestroy()
	}
	return nil
}

// Info returns a snapshot of configuration plus current size.
func (c *Cache) Info() (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return Info{}, ErrDestroyed
	}
	return Info{
		ID:            c.id,
		Capacity:      c.capacity,
		MaxAge:        c.maxAge,
		FlushInterval: c.flushInterval,
		Size:          c.size,
	}, nil
}

// Stats returns a snapshot of the instance's runtime counters.
func (c *Cache) Stats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return Stats{}, ErrDestroyed
	}
	return c.stats, nil
}

// armLocked (re)schedules expiry for key after maxAge. The callback captures
// the arm sequence so an obsolete firing can never act on a key that has
// since been removed or re-armed.
func (c *Cache) armLocked(key string, e *entry, maxAge time.Duration) {
	c.armSeq++
	seq := c.armSeq
	e.armSeq = seq
	e.insertedAt = c.sched.Now()
	e.expiresAt = e.insertedAt.Add(maxAge)
	e.task = c.sched.Once(maxAge, func() {
		c.expire(key, seq)
	})
}

func (c *Cache) disarmLocked(e *entry) {
	if e.task != nil {
		e.task.Cancel()
		e.task = nil
	}
	e.armSeq = 0
}

// expire is the timer-driven removal path. It re-enters like an ordinary
// caller and verifies the arm sequence before mutating anything.
func (c *Cache) expire(key string, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	e, ok := c.entries[key]
	if !ok || e.armSeq != seq {
		return
	}
	c.removeLocked(key)
	c.stats.Expirations++
	c.logger.Debugf(c.ctx, "expired %q", key)
}

// flush is the interval-driven full clear.
func (c *Cache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.removeAllLocked()
	c.logger.Debugf(c.ctx, "flush interval fired, cache cleared")
}

func (c *Cache) expiredLocked(e *entry) bool {
	return e.task != nil && !c.sched.Now().Before(e.expiresAt)
}

func (c *Cache) removeLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.disarmLocked(e)
	c.order.unlink(key)
	delete(c.entries, key)
	c.size--
}

// removeAllLocked disarms every per-entry timer before the store and order
// list are dropped, so no captured key outlives its entry.
func (c *Cache) removeAllLocked() {
	for _, e := range c.entries {
		c.disarmLocked(e)
	}
	c.entries = make(map[string]*entry)
	c.order.clear()
	c.size = 0
}

// Package cache implements the tcache instance engine: a named in-process
// key-value store combining strict LRU eviction, per-entry time-to-live and
// an optional cache-wide flush interval.
//
// Instances are usually created through the registry package, but can be
// built directly:
//
//	sched := scheduler.NewDefault()
//	c, err := cache.New("sessions", &cache.Config{
//		Capacity: 1024,
//		MaxAge:   30 * time.Minute,
//	}, sched)
//	if err != nil {
//		// invalid configuration, no instance exists
//	}
//
//	c.Put("user:42", session)
//	c.Put("token:9", tok, cache.WithMaxAge(time.Minute))
//
//	if v, ok, _ := c.Get("user:42"); ok {
//		// v was marked most recently used
//	}
//
//	c.Destroy() // cancels all timers; instance unusable afterwards
//
// Expiry and eviction are driven by an injected scheduler.Scheduler, never
// by ambient global timers, so tests can run entirely on virtual time.
package cache

package cache

import (
	"fmt"
	"time"
)

// Config controls capacity, default expiry and flushing for one instance.
// It is immutable after creation. Zero values mean "unset":
//   - Capacity == 0 means unbounded (no LRU eviction). A bounded capacity is
//     therefore always >= 1.
//   - MaxAge == 0 means entries do not expire unless a put says otherwise.
//   - FlushInterval == 0 disables the periodic full clear.
type Config struct {
	Capacity      int
	MaxAge        time.Duration
	FlushInterval time.Duration
}

func (c *Config) validate() error {
	if c == nil {
		return nil
	}
	if c.Capacity < 0 {
		return fmt.Errorf("%w: capacity %d must not be negative", ErrInvalidConfig, c.Capacity)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("%w: max age %v must not be negative", ErrInvalidConfig, c.MaxAge)
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("%w: flush interval %v must not be negative", ErrInvalidConfig, c.FlushInterval)
	}
	return nil
}

type putOptions struct {
	maxAge    time.Duration
	hasMaxAge bool
}

// PutOption adjusts a single Put call.
type PutOption func(*putOptions) error

// WithMaxAge sets the entry's max age for this put, overriding the cache's
// configured default. d > 0 arms expiry after d; d == 0 pins the entry as
// never self-expiring even when a default max age is configured.
func WithMaxAge(d time.Duration) PutOption {
	return func(o *putOptions) error {
		if d < 0 {
			return fmt.Errorf("%w: max age %v must not be negative", ErrInvalidConfig, d)
		}
		o.maxAge = d
		o.hasMaxAge = true
		return nil
	}
}

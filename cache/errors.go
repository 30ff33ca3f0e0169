package cache

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure. A cache
	// whose config fails validation never comes into existence.
	ErrInvalidConfig = errors.New("invalid cache config")

	// ErrInvalidKey is returned by Put for an empty key. Nothing is mutated.
	ErrInvalidKey = errors.New("cache key must be a non-empty string")

	// ErrDestroyed is returned by every operation on a destroyed instance.
	ErrDestroyed = errors.New("cache instance has been destroyed")
)

package kv

import "errors"

// ErrEmptyKey is returned when a key is empty.
var ErrEmptyKey = errors.New("kv: empty key")

// Store persists opaque values by key.
type Store interface {
	// Get returns the value stored under key and whether it was present.
	Get(key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error
}

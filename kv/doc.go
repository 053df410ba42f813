// Package kv defines the small key-value contract used to persist the
// watchlist and the auto-refresh settings, with an in-memory backend and a
// single-file JSON backend.
package kv

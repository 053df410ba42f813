// Package store holds the latest status of every watched entry.
//
// This package is internal to whichport. It owns the only shared mutable
// state of the probing core: the per-entry status map, the set of entries
// with a probe in flight, and the live set of entry addresses. All three are
// guarded by one lock, so checking that an entry is live and idle and
// marking it as checking happen as a single step.
//
// The main components are:
//
//   - [Store]: Interface defining the check lifecycle and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Status]: Stored status of one entry, wrapping the last probe result
//
// Subscribers receive every mutation via channels with non-blocking sends
// (slow subscribers miss updates rather than block probes).
package store

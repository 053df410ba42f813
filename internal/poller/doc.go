// Package poller drives probes for whichport.
//
// This package is internal to whichport. It owns the two moving parts of
// the probing core:
//
//   - [Batch]: fans a "check all" request out to one probe per entry and
//     applies each begin/probe/complete cycle through the status store
//   - [Scheduler]: repeats a callback on a jittered interval, rebuilt from
//     scratch on every configuration change
//
// The scheduler knows nothing about entries; the whichport package wires
// its callback to [Batch.CheckAll].
//
// Users of the whichport library should not need to interact with this
// package directly. Configuration is done through the main whichport package.
package poller

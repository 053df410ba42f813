// Package probe performs single reachability checks against watched ports.
//
// A probe is a two-tier strategy. The first tier issues a GET and reads the
// response, recording the status code and page title. When that fails for
// any reason the second tier issues a HEAD that only needs to observe some
// response arriving, even one that cannot be parsed. A target that answers
// either tier is active; otherwise it is inactive with the cause recorded.
//
// The main components are:
//
//   - [Prober]: HTTP client wrapper that runs both tiers under one deadline
//   - [Target]: the (host, port, path) triple being probed
//   - [Result]: sealed outcome, one of [Active], [Opaque] or [Inactive]
//
// Users of the whichport library should not need to interact with this
// package directly. Probing is driven through the main whichport package.
package probe

// Package whichport watches a list of local network endpoints and reports
// whether anything is listening on each of them.
//
// Every watched entry is a host, a port and an optional path. A check sends
// a GET to http://host:port/path; any HTTP response, whatever its status
// code, means the entry is active, and the page title is recorded when the
// body has one. If that request fails, a HEAD request that does not follow
// redirects is tried, and any bytes coming back still count as active, with
// no title or status code. Only when both fail is the entry inactive.
//
// # Quick Start
//
//	store, _ := kv.NewFileStore("whichport.json")
//	m, _ := whichport.New(whichport.WithStore(store))
//	defer m.Close()
//
//	m.AddEntry(whichport.NewEntry{Port: 5173, Label: "Vite"})
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # Statuses
//
// Each entry is [StatusUnknown] until its first check, [StatusChecking]
// while a check runs (keeping the previous title and latency visible), and
// then [StatusActive] or [StatusInactive]. At most one check per entry runs
// at a time; asking again while one is running is a no-op.
//
// # Auto-refresh
//
// By default every entry is checked every 10 seconds. Each wait is jittered
// by ±10% so a group of watchers does not fire in lockstep. Changing the
// configuration with [Monitor.SetAutoRefresh] cancels the pending refresh
// and schedules a new one.
//
// # Architecture
//
//   - internal/probe: The two-tier HTTP probe and title extraction
//   - internal/store: Per-entry status with an in-flight guard and pub/sub
//   - internal/poller: Batch checks and the jittered scheduler
//   - kv: Persistence for the watchlist and settings
//   - internal/server: HTTP API and Server-Sent Events for the dashboard
//   - dashboard: Embedded web UI assets
package whichport

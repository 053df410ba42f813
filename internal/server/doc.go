// Package server provides the HTTP server for the dashboard and its JSON API.
//
// This package is internal and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: Entry management, on-demand checks and auto-refresh settings under "/api"
//   - Server-Sent Events: Real-time status updates at "/api/sse"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests. It is wired up by the whichport
// command's serve subcommand.
package server

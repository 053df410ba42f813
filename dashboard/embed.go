// Package dashboard provides the embedded web UI for whichport.
//
// The page lists watched ports with their live status, lets users add, edit
// and remove entries, and controls auto-refresh. It talks only to the JSON
// API and SSE stream served by the server package, so the binary ships as a
// single file.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Dashboard page with inline CSS and JavaScript
//
// The server replaces every {{.Title}} marker in index.html with the
// configured, HTML-escaped title.
//
//go:embed assets/*
var Assets embed.FS

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kamath/whichport"
	"github.com/kamath/whichport/dashboard"
	"github.com/kamath/whichport/internal/server"
)

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// fake dev servers that come and go (see mock_server.go)
	go StartFlappingServer(ctx, 3000, "React App")
	go StartFlappingServer(ctx, 5173, "Vite + TS")

	m, err := whichport.New(
		whichport.WithAutoRefresh(whichport.AutoRefreshConfig{Enabled: true, IntervalSeconds: 5}),
		whichport.WithStatusCallback(func(r whichport.EntryStatus) {
			fmt.Printf("  %-8s %s %s\n", r.Status.Status, r.Entry.URL(), r.Status.PageTitle)
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}
	defer func() { _ = m.Close() }()

	// the two mock servers, plus one port nothing listens on
	for _, n := range []whichport.NewEntry{
		{Port: 3000, Label: "React Dev"},
		{Port: 5173, Label: "Vite Dev"},
		{Port: 9000, Label: "Nothing here"},
	} {
		if _, err := m.AddEntry(n); err != nil {
			slog.Error("failed to add entry", "port", n.Port, "error", err)
			os.Exit(1)
		}
	}

	srv := server.NewServer(m, 8080, dashboard.Assets, "whichport demo", slog.Default())
	if err := srv.Start(ctx); err != nil {
		slog.Error("failed to start dashboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   whichport Demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Watching:                                           ║")
	fmt.Println("  ║   • 3000 and 5173 (mock servers going up and down)    ║")
	fmt.Println("  ║   • 9000 (always inactive)                            ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	if err := m.Start(ctx); err != nil {
		slog.Error("monitor error", "error", err)
		os.Exit(1)
	}
}

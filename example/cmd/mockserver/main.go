// Standalone mock dev servers for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/whichport serve -c example/whichport.yaml
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	ports := flag.String("ports", "3000,5173,8000", "comma separated ports to serve")
	flag.Parse()

	fmt.Println("Mock dev servers starting on", *ports)
	fmt.Println("Stop one with Ctrl+C and watch it go inactive on the dashboard")
	fmt.Println()

	errCh := make(chan error, 1)
	for _, p := range strings.Split(*ports, ",") {
		port, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			slog.Error("invalid port", "port", p)
			os.Exit(1)
		}

		title := fmt.Sprintf("Mock dev server :%d", port)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			ReadHeaderTimeout: 5 * time.Second,
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = fmt.Fprintf(w, "<html><head><title>%s</title></head><body>%s</body></html>", title, r.URL.Path)
			}),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("port %d: %w", port, err)
			}
		}()
	}

	if err := <-errCh; err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// StartFlappingServer runs a fake dev server on port that goes up and down.
// It serves a page titled title for 20-60 seconds, shuts down for 10-30
// seconds, and repeats until ctx is cancelled.
func StartFlappingServer(ctx context.Context, port int, title string) {
	page := fmt.Sprintf("<!doctype html><html><head><title>%s</title></head><body>%s</body></html>", title, title)

	for ctx.Err() == nil {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			ReadHeaderTimeout: 5 * time.Second,
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// simulate small latency variance
				time.Sleep(time.Duration(5+rand.Intn(45)) * time.Millisecond)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte(page))
			}),
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("mock server error", "port", port, "error", err)
			}
		}()
		slog.Info("mock server up", "port", port, "title", title)

		if !sleep(ctx, time.Duration(20+rand.Intn(41))*time.Second) {
			_ = srv.Close()
			return
		}

		_ = srv.Close()
		slog.Info("mock server down", "port", port)

		if !sleep(ctx, time.Duration(10+rand.Intn(21))*time.Second) {
			return
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

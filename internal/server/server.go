package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kamath/whichport"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// maxRequestBody caps JSON request bodies.
	maxRequestBody = 64 << 10

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Which Port"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Monitor is the part of [whichport.Monitor] the server drives.
type Monitor interface {
	Snapshot() []whichport.EntryStatus
	Subscribe(ctx context.Context) <-chan whichport.PortStatus
	AddEntry(n whichport.NewEntry) (whichport.WatchEntry, error)
	UpdateEntry(id string, u whichport.EntryUpdate) (whichport.WatchEntry, error)
	RemoveEntry(id string) error
	CheckAll(ctx context.Context) int
	CheckOne(ctx context.Context, id string) (bool, error)
	AutoRefresh() whichport.AutoRefreshConfig
	SetAutoRefresh(c whichport.AutoRefreshConfig) (whichport.AutoRefreshConfig, error)
}

// Server handles HTTP requests for the dashboard and its JSON API.
//
// Routes:
//   - GET /: Embedded dashboard HTML
//   - GET /api/status: Every entry with its status
//   - GET /api/sse: Server-Sent Events stream of status changes
//   - POST /api/entries: Add an entry
//   - PATCH /api/entries/{id}: Edit an entry
//   - DELETE /api/entries/{id}: Remove an entry
//   - POST /api/check: Check every entry, waiting for all results
//   - POST /api/entries/{id}/check: Check one entry
//   - GET, PUT /api/refresh: Read or change auto-refresh
//   - GET /api/common-ports: Quick-add presets
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	monitor    Monitor
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - m: Monitor serving the data and mutations
//   - port: TCP port to listen on
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "Which Port" if empty)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(m Monitor, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		monitor: m,
		port:    port,
		assets:  assets,
		title:   title,
		logger:  logger,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("POST /api/entries", s.handleAddEntry)
	mux.HandleFunc("PATCH /api/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleRemoveEntry)
	mux.HandleFunc("POST /api/check", s.handleCheckAll)
	mux.HandleFunc("POST /api/entries/{id}/check", s.handleCheckOne)
	mux.HandleFunc("GET /api/refresh", s.handleGetRefresh)
	mux.HandleFunc("PUT /api/refresh", s.handleSetRefresh)
	mux.HandleFunc("GET /api/common-ports", s.handleCommonPorts)

	if s.assets != nil {
		mux.HandleFunc("GET /", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx, which stops SSE handlers on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// escape to prevent XSS through the configured title
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleStatus returns every entry joined with its status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var n whichport.NewEntry
	if !s.decode(w, r, &n) {
		return
	}

	entry, err := s.monitor.AddEntry(n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var u whichport.EntryUpdate
	if !s.decode(w, r, &u) {
		return
	}

	entry, err := s.monitor.UpdateEntry(r.PathValue("id"), u)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.RemoveEntry(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheckAll blocks until every entry has been checked.
func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	n := s.monitor.CheckAll(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]int{"checked": n})
}

// handleCheckOne reports checked=false when a check was already running.
func (s *Server) handleCheckOne(w http.ResponseWriter, r *http.Request) {
	ran, err := s.monitor.CheckOne(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"checked": ran})
}

func (s *Server) handleGetRefresh(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.AutoRefresh())
}

// handleSetRefresh applies a new auto-refresh config and returns it clamped.
func (s *Server) handleSetRefresh(w http.ResponseWriter, r *http.Request) {
	var c whichport.AutoRefreshConfig
	if !s.decode(w, r, &c) {
		return
	}

	applied, err := s.monitor.SetAutoRefresh(c)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, applied)
}

func (s *Server) handleCommonPorts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, whichport.CommonPorts())
}

// handleSSE streams status updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// not every ResponseWriter supports deadlines
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot so no change falls between them
	updates := s.monitor.Subscribe(r.Context())

	for _, es := range s.monitor.Snapshot() {
		data, err := json.Marshal(es.Status)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(status)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}

// decode reads a JSON request body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps monitor errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, whichport.ErrEntryNotFound):
		code = http.StatusNotFound
	case errors.Is(err, whichport.ErrDuplicateEntry):
		code = http.StatusConflict
	case errors.Is(err, whichport.ErrInvalidPort):
		code = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, code, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

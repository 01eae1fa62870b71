package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/tickframe/internal/snapshot"
	"github.com/nvandessel/tickframe/internal/store"
)

// Server exposes recorded runs over HTTP: the run list, each run's final
// graph and its metric series.
type Server struct {
	store      store.RunStore
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a new run browser backed by the given store.
func NewServer(rs store.RunStore) *Server {
	return &Server{store: rs}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/runs/{id}/graph", s.handleGraph)
	mux.HandleFunc("GET /api/runs/{id}/metrics", s.handleMetricNames)
	mux.HandleFunc("GET /api/runs/{id}/metrics/{name}", s.handleMetric)
	return mux
}

// ListenAndServe starts the HTTP server on addr (an OS-assigned port when
// addr is empty) and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = "localhost:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Unlock()

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit: "+v, http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, "list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	id := r.PathValue("id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "run not found: "+id, http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "get run: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, run)
}

// handleGraph renders the run's final snapshot as JSON (default) or DOT.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	format := FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := ParseFormat(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = f
	}

	state, _, err := snapshot.Read(filepath.Join(run.ResultsDir, snapshot.FinalFile))
	if err != nil {
		http.Error(w, "read snapshot: "+err.Error(), http.StatusNotFound)
		return
	}

	if format == FormatDOT {
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		fmt.Fprint(w, RenderDOT(state, Options{Name: run.Name, Positions: true}))
		return
	}
	writeJSON(w, RenderJSON(state))
}

func (s *Server) handleMetricNames(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	names, err := s.store.MetricNames(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "run not found: "+id, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "metric names: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"run_id": id, "metrics": names})
}

func (s *Server) handleMetric(w http.ResponseWriter, r *http.Request) {
	id, name := r.PathValue("id"), r.PathValue("name")
	points, err := s.store.Metrics(r.Context(), id, name)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "run not found: "+id, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "metrics: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": id,
		"metric": name,
		"points": finitePoints(points),
	})
}

// finitePoints replaces NaN and infinite values with nil so the series
// encodes as JSON.
func finitePoints(points []store.Point) []map[string]interface{} {
	out := make([]map[string]interface{}, len(points))
	for i, p := range points {
		var v interface{}
		if !isNonFinite(p.Value) {
			v = p.Value
		}
		out[i] = map[string]interface{}{"tick": p.Tick, "value": v}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode: "+err.Error(), http.StatusInternalServerError)
	}
}

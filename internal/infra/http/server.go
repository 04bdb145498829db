package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/* Состояние прогонов для /status */

type RunStatus struct {
	Cabinet    string    `json:"cabinet"`
	FinishedAt time.Time `json:"finished_at"`
	Summary    string    `json:"summary"`
	Error      string    `json:"error,omitempty"`
}

// Board хранит итог последнего прогона по каждому кабинету.
type Board struct {
	mu   sync.RWMutex
	runs map[string]RunStatus
}

func NewBoard() *Board { return &Board{runs: map[string]RunStatus{}} }

func (b *Board) Record(cabinet, summary string, err error, at time.Time) {
	st := RunStatus{Cabinet: cabinet, FinishedAt: at, Summary: summary}
	if err != nil {
		st.Error = err.Error()
	}
	b.mu.Lock()
	b.runs[cabinet] = st
	b.mu.Unlock()
}

func (b *Board) Snapshot() []RunStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]RunStatus, 0, len(b.runs))
	for _, st := range b.runs {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cabinet < out[j].Cabinet })
	return out
}

type Server struct {
	srv *http.Server
}

func New(addr string, exposeMetrics bool, board *Board) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           Handler(exposeMetrics, board),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func Handler(exposeMetrics bool, board *Board) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if board != nil {
		mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(board.Snapshot())
		})
	}

	if exposeMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

// Start блокирует до Shutdown; штатная остановка ошибкой не считается.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

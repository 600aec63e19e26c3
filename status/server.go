// Package status serves a small read-only HTTP view of a running worker.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rustyeddy/tradequeue/journal"
	"github.com/rustyeddy/tradequeue/queue"
	"github.com/rustyeddy/tradequeue/worker"
	log "github.com/sirupsen/logrus"
)

type QueueStats interface {
	Stats() (queue.Stats, error)
}

type Trades interface {
	Get(ctx context.Context, commandID string) (journal.TradeRecord, error)
	List(ctx context.Context, status journal.Status, limit int) ([]journal.TradeRecord, error)
}

type Health interface {
	Healthy() bool
	LastHealthy() time.Time
	LastError() error
}

type Counters interface {
	ID() string
	Stats() worker.Stats
}

type Server struct {
	queue    QueueStats
	trades   Trades
	health   Health
	counters Counters
	router   *mux.Router
}

func New(q QueueStats, t Trades, h Health, c Counters) *Server {
	s := &Server{queue: q, trades: t, health: h, counters: c, router: mux.NewRouter()}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	s.router.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/trades/{id}", s.handleTrade).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("status listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	WorkerID    string       `json:"workerId"`
	Healthy     bool         `json:"healthy"`
	LastHealthy *time.Time   `json:"lastHealthy,omitempty"`
	LastError   string       `json:"lastError,omitempty"`
	Stats       worker.Stats `json:"stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		WorkerID: s.counters.ID(),
		Healthy:  s.health.Healthy(),
		Stats:    s.counters.Stats(),
	}
	if t := s.health.LastHealthy(); !t.IsZero() {
		t = t.UTC()
		resp.LastHealthy = &t
	}
	if err := s.health.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	code := http.StatusOK
	if !resp.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	st, err := s.queue.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	st := journal.Status(r.URL.Query().Get("status"))
	switch st {
	case "", journal.StatusPending, journal.StatusFilled, journal.StatusFailed:
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown status"))
		return
	}

	recs, err := s.trades.List(r.Context(), st, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []journal.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.trades.Get(r.Context(), id)
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("writing status response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

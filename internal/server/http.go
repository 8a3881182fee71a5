package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"TermPool/internal/observability"
	"TermPool/internal/pool"
	"TermPool/internal/query"
)

// HTTPServer serves the read API, health endpoints, and Prometheus
// metrics. All mutations go through the NATS command stream; the HTTP
// surface is read-only.
type HTTPServer struct {
	addr    string
	engine  *pool.Engine
	queries *query.QueryService
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
	srv     *http.Server
}

func NewHTTPServer(
	addr string,
	engine *pool.Engine,
	queries *query.QueryService,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *HTTPServer {
	return &HTTPServer{
		addr:    addr,
		engine:  engine,
		queries: queries,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

// Start runs the server until ctx is cancelled, then shuts down with a
// 5s drain window.
func (s *HTTPServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.health.LivenessHandler)
	mux.HandleFunc("/readyz", s.health.ReadinessHandler)

	mux.HandleFunc("/v1/pool", s.instrument("pool", s.handlePoolInfo))
	mux.HandleFunc("/v1/trades", s.instrument("trades", s.handleTrades))
	mux.HandleFunc("/v1/trades/", s.instrument("trade", s.handleTrade))
	mux.HandleFunc("/v1/positions/", s.instrument("positions", s.handlePositions))
	mux.HandleFunc("/v1/checkpoints", s.instrument("checkpoints", s.handleCheckpoints))
	mux.HandleFunc("/v1/volume", s.instrument("volume", s.handleVolume))

	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// instrument wraps a handler with request counting and latency metrics.
func (s *HTTPServer) instrument(endpoint string, next func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := next(w, r)
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

func (s *HTTPServer) handlePoolInfo(w http.ResponseWriter, r *http.Request) int {
	info, err := s.engine.PoolInfo(time.Now().Unix())
	if err != nil {
		return s.writeError(w, http.StatusConflict, err)
	}
	return s.writeJSON(w, http.StatusOK, info)
}

func (s *HTTPServer) handleTrades(w http.ResponseWriter, r *http.Request) int {
	q := r.URL.Query()

	var trader *uuid.UUID
	if v := q.Get("trader"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return s.writeError(w, http.StatusBadRequest, err)
		}
		trader = &id
	}

	var operation *string
	if v := q.Get("operation"); v != "" {
		operation = &v
	}

	var before *time.Time
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return s.writeError(w, http.StatusBadRequest, err)
		}
		before = &t
	}

	limit := parseLimit(q.Get("limit"), 100)

	trades, err := s.queries.GetTradeHistory(r.Context(), trader, operation, limit, before)
	if err != nil {
		s.log.Error().Err(err).Msg("trade history query")
		return s.writeError(w, http.StatusInternalServerError, err)
	}
	return s.writeJSON(w, http.StatusOK, map[string]interface{}{"trades": trades})
}

func (s *HTTPServer) handleTrade(w http.ResponseWriter, r *http.Request) int {
	idStr := strings.TrimPrefix(r.URL.Path, "/v1/trades/")
	tradeID, err := uuid.Parse(idStr)
	if err != nil {
		return s.writeError(w, http.StatusBadRequest, err)
	}

	trade, err := s.queries.GetTrade(r.Context(), tradeID)
	if err != nil {
		s.log.Error().Err(err).Msg("trade query")
		return s.writeError(w, http.StatusInternalServerError, err)
	}
	if trade == nil {
		return s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "trade not found"})
	}
	return s.writeJSON(w, http.StatusOK, trade)
}

func (s *HTTPServer) handlePositions(w http.ResponseWriter, r *http.Request) int {
	idStr := strings.TrimPrefix(r.URL.Path, "/v1/positions/")
	trader, err := uuid.Parse(idStr)
	if err != nil {
		return s.writeError(w, http.StatusBadRequest, err)
	}

	positions, err := s.queries.GetPositions(r.Context(), trader)
	if err != nil {
		s.log.Error().Err(err).Msg("positions query")
		return s.writeError(w, http.StatusInternalServerError, err)
	}
	return s.writeJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
}

func (s *HTTPServer) handleCheckpoints(w http.ResponseWriter, r *http.Request) int {
	q := r.URL.Query()

	var after *int64
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s.writeError(w, http.StatusBadRequest, err)
		}
		after = &n
	}

	limit := parseLimit(q.Get("limit"), 100)

	checkpoints, err := s.queries.GetCheckpoints(r.Context(), limit, after)
	if err != nil {
		s.log.Error().Err(err).Msg("checkpoints query")
		return s.writeError(w, http.StatusInternalServerError, err)
	}
	return s.writeJSON(w, http.StatusOK, map[string]interface{}{"checkpoints": checkpoints})
}

func (s *HTTPServer) handleVolume(w http.ResponseWriter, r *http.Request) int {
	since := time.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return s.writeError(w, http.StatusBadRequest, err)
		}
		since = t
	}

	volumes, err := s.queries.GetVolume(r.Context(), since)
	if err != nil {
		s.log.Error().Err(err).Msg("volume query")
		return s.writeError(w, http.StatusInternalServerError, err)
	}
	return s.writeJSON(w, http.StatusOK, map[string]interface{}{"volumes": volumes})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
	return status
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, err error) int {
	return s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseLimit(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 1000 {
		return def
	}
	return n
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"kabinet/internal/config"
	"kabinet/internal/domain"
	"kabinet/internal/metrics"
	"kabinet/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Store - то, что API читает напрямую из базы.
type Store interface {
	PingContext(ctx context.Context) error
	GetActiveServices(ctx context.Context) ([]*models.Service, error)
	GetFunnels(ctx context.Context, activeOnly bool) ([]*models.Funnel, error)
	CountSyncTasks(ctx context.Context) (map[string]int, error)
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
}

// FunnelReader отдаёт курс и его статистику прохождения.
type FunnelReader interface {
	GetFunnel(ctx context.Context, id int64) (*models.Funnel, error)
	Stats(ctx context.Context, funnelID int64) (models.FunnelStats, error)
}

// HTTPServer - служебный HTTP: пробы, метрики и read-only JSON API для администратора.
type HTTPServer struct {
	cfg     *config.APIConfig
	db      Store
	funnels FunnelReader
	metrics *metrics.Metrics
	server  *http.Server
	auth    *HTTPAuth
	logger  zerolog.Logger
}

func NewHTTPServer(
	cfg *config.APIConfig,
	db Store,
	funnels FunnelReader,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *zerolog.Logger,
) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:     cfg,
		db:      db,
		funnels: funnels,
		metrics: m,
		auth:    NewHTTPAuth(cfg),
		logger:  base,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("GET /readyz", srv.handleReadyz)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/services", srv.handleServices)
	api.HandleFunc("GET /api/v1/funnels", srv.handleFunnels)
	api.HandleFunc("GET /api/v1/funnels/{id}/stats", srv.handleFunnelStats)
	api.HandleFunc("GET /api/v1/sync", srv.handleSyncStatus)
	mux.Handle("/api/v1/", srv.auth.Wrap(api))

	srv.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           srv.loggingMiddleware(corsMiddleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.metrics.IncHTTP("healthz")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncHTTP("readyz")
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncHTTP("services")
	services, err := s.db.GetActiveServices(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if services == nil {
		services = []*models.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleFunnels(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncHTTP("funnels")
	activeOnly := r.URL.Query().Get("active") == "true"
	funnels, err := s.db.GetFunnels(r.Context(), activeOnly)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if funnels == nil {
		funnels = []*models.Funnel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"funnels": funnels})
}

func (s *HTTPServer) handleFunnelStats(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncHTTP("funnel_stats")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}

	f, err := s.funnels.GetFunnel(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "funnel not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	stats, err := s.funnels.Stats(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"funnel": f,
		"stats":  stats,
	})
}

// handleSyncStatus показывает очередь выгрузки заявок в Google Sheets.
func (s *HTTPServer) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncHTTP("sync")
	counts, err := s.db.CountSyncTasks(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	failed, err := s.db.GetFailedSyncTasks(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if failed == nil {
		failed = []models.SyncTask{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counts": counts,
		"failed": failed,
	})
}

func (s *HTTPServer) internalError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("api request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

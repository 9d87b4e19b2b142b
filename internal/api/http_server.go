package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/domain"
	"housekeeper/internal/logging"
	"housekeeper/internal/metrics"
	"housekeeper/internal/price"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the trigger surface: sync triggers, price
// calculation, team channel tests and schedule export.
type HTTPServer struct {
	cfg        config.Config
	syncer     domain.Syncer
	calculator *price.Calculator
	pmsAPI     domain.PMSClient
	teams      domain.TeamStore
	runs       domain.RunStore
	dispatcher domain.Dispatcher
	exporter   ScheduleExporter
	server     *http.Server
	auth       *HTTPAuth
	logger     zerolog.Logger
}

// ScheduleExporter is the export surface the server needs.
type ScheduleExporter interface {
	WriteSchedule(ctx context.Context, w io.Writer, propertyID int64, start, end time.Time) error
}

func NewHTTPServer(
	cfg config.Config,
	syncer domain.Syncer,
	calculator *price.Calculator,
	pmsAPI domain.PMSClient,
	teams domain.TeamStore,
	runs domain.RunStore,
	dispatcher domain.Dispatcher,
	exporter ScheduleExporter,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:        cfg,
		syncer:     syncer,
		calculator: calculator,
		pmsAPI:     pmsAPI,
		teams:      teams,
		runs:       runs,
		dispatcher: dispatcher,
		exporter:   exporter,
		logger:     logging.Component(logger, "api"),
	}
	srv.auth = NewHTTPAuth(cfg.API)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sync", srv.handleSync)
	mux.HandleFunc("/api/v1/sync/scheduled", srv.handleScheduledSync)
	mux.HandleFunc("/api/v1/price/calculate", srv.handlePriceCalculate)
	mux.HandleFunc("/api/v1/teams/", srv.handleTeams)
	mux.HandleFunc("/api/v1/runs", srv.handleRuns)
	mux.HandleFunc("/api/v1/tasks/export", srv.handleTasksExport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// HTTPAuth provides API-key auth and per-key rate limiting. The scheduled
// sync endpoint carries its own bearer secret and is exempt here.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/sync/scheduled" || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.IsEnabled() {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if err == errPermissionDenied {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

var errPermissionDenied = fmt.Errorf("permission denied")

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader()))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader()))
	if apiKey == "" || extra == "" {
		return fmt.Errorf("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return fmt.Errorf("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return fmt.Errorf("invalid extra header")
	}

	return a.checkPermissions(client, r)
}

func (a *HTTPAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermission(r)
	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/api/v1/sync":
		return "trigger:sync"
	case path == "/api/v1/price/calculate":
		return "calculate:price"
	case strings.HasPrefix(path, "/api/v1/teams/"):
		return "manage:teams"
	case path == "/api/v1/runs":
		return "read:runs"
	case path == "/api/v1/tasks/export":
		return "read:tasks"
	}
	return ""
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}
	if !a.getLimiter(a.clientKey(r)).Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader())); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (a *HTTPAuth) apiKeyHeader() string {
	h := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)
	if h == "" {
		h = "x-api-key"
	}
	return h
}

func (a *HTTPAuth) extraHeader() string {
	h := strings.TrimSpace(a.cfg.Auth.HeaderExtra)
	if h == "" {
		h = "x-api-extra"
	}
	return h
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"success":   false,
		"error":     message,
		"timestamp": time.Now().UTC(),
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

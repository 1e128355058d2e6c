package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storebridge/internal/config"
	"storebridge/internal/domain"
	"storebridge/internal/events"
	"storebridge/internal/metrics"
	"storebridge/internal/models"

	"github.com/rs/zerolog"
)

// EventIntake accepts a raw checkout payload for asynchronous processing.
type EventIntake interface {
	EnqueueEvent(ctx context.Context, tenantID, cartToken string, payload []byte) error
}

// SyncRunner starts one sync run for a tenant.
type SyncRunner interface {
	Run(ctx context.Context, tenant models.Tenant, pageSize int) *models.SyncRun
}

// Server is the admin and webhook HTTP surface. Sync runs triggered
// through it take the per-tenant run lock so overlapping triggers for
// the same tenant are rejected instead of racing.
type Server struct {
	cfg     config.Config
	tenants domain.TenantStore
	runs    domain.RunStore
	creds   domain.CredentialStore
	queue   domain.EventQueueStore
	intake  EventIntake
	runner  SyncRunner
	lock    domain.RunLock
	bus     domain.EventPublisher
	server  *http.Server
	auth    *Auth
	logger  *zerolog.Logger
}

func NewServer(cfg config.Config, tenants domain.TenantStore, runs domain.RunStore, creds domain.CredentialStore, queue domain.EventQueueStore, intake EventIntake, runner SyncRunner, lock domain.RunLock, bus domain.EventPublisher, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	srv := &Server{
		cfg:     cfg,
		tenants: tenants,
		runs:    runs,
		creds:   creds,
		queue:   queue,
		intake:  intake,
		runner:  runner,
		lock:    lock,
		bus:     bus,
		logger:  logger,
	}
	srv.auth = NewAuth(cfg.API)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/webhooks/checkouts", srv.handleCheckoutWebhook)
	mux.HandleFunc("/api/v1/sync/", srv.handleTriggerSync)
	mux.HandleFunc("/api/v1/tenants/", srv.handleTenantSubresource)
	mux.HandleFunc("/api/v1/tenants", srv.handleTenants)
	mux.HandleFunc("/api/v1/runs", srv.handleRuns)
	mux.HandleFunc("/api/v1/events/failed", srv.handleFailedEvents)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	// No WriteTimeout: the sync trigger holds its connection open for
	// the whole run, and a large tenant takes longer than any sane
	// fixed deadline. Run duration is bounded by the run lock TTL.
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

// Handler exposes the composed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("api: listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"app":     s.cfg.App.Name,
		"version": s.cfg.App.Version,
	})
}

// handleCheckoutWebhook always acknowledges a syntactically valid
// delivery with 200; the platform treats anything else as a failed
// delivery and retries the whole webhook. Internal enqueue failures are
// logged and counted, never surfaced to the platform.
func (s *Server) handleCheckoutWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		tenantID = r.Header.Get("X-Tenant-ID")
	}
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}

	var event models.CheckoutEvent
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := decoder.Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := event.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid checkout payload")
		return
	}

	if err := s.intake.EnqueueEvent(r.Context(), tenantID, event.CartToken, raw); err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("api: enqueue checkout event")
		metrics.IncWebhookDropped()
	} else if s.bus != nil {
		_ = s.bus.PublishJSON(events.EventCheckoutUpdated, events.CheckoutEventPayload{
			TenantID:  tenantID,
			CartToken: event.CartToken,
			Raw:       raw,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleTriggerSync runs the whole orchestration synchronously and
// answers with the finished SyncRun, so the response can take minutes
// for a large tenant. The server carries no write deadline for this
// reason; the run lock TTL is the effective upper bound.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tenantID := pathTail(r.URL.Path, "/api/v1/sync/")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}

	tenant, err := s.tenants.GetTenant(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tenant lookup failed")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}

	ttl := time.Duration(s.cfg.Sync.RunLockSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultRunLockTTL) * time.Second
	}
	acquired, err := s.lock.Acquire(r.Context(), tenantID, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "run lock unavailable")
		return
	}
	if !acquired {
		writeError(w, http.StatusConflict, "sync already running for tenant")
		return
	}
	defer func() {
		if err := s.lock.Release(context.Background(), tenantID); err != nil {
			s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("api: release run lock")
		}
	}()

	run := s.runner.Run(r.Context(), *tenant, s.cfg.Sync.PageSize)

	if s.bus != nil {
		_ = s.bus.PublishJSON(events.EventSyncRunFinished, run)
	}

	status := http.StatusOK
	if run.Status == models.RunStatusFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, run)
}

// handleTenantSubresource routes /api/v1/tenants/{id}/credential.
func (s *Server) handleTenantSubresource(w http.ResponseWriter, r *http.Request) {
	rest := pathTail(r.URL.Path, "/api/v1/tenants/")
	tenantID, sub, ok := splitOnce(rest)
	if !ok || sub != "credential" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.handleSetCredential(w, r, tenantID)
	case http.MethodDelete:
		s.handleDeleteCredential(w, r, tenantID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request, tenantID string) {
	var body struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Credential == "" {
		writeError(w, http.StatusBadRequest, "credential is required")
		return
	}

	tenant, err := s.tenants.GetTenant(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tenant lookup failed")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}

	if err := s.creds.Set(r.Context(), tenantID, body.Credential); err != nil {
		writeError(w, http.StatusInternalServerError, "credential store failed")
		return
	}

	if s.bus != nil {
		_ = s.bus.PublishJSON(events.EventCredentialRotated, map[string]string{"tenant_id": tenantID})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request, tenantID string) {
	if err := s.creds.Delete(r.Context(), tenantID); err != nil {
		writeError(w, http.StatusInternalServerError, "credential store failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTenants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tenants, err := s.tenants.GetAllTenants(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "tenant lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
	case http.MethodPost:
		var tenant models.Tenant
		if err := json.NewDecoder(r.Body).Decode(&tenant); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if tenant.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := s.tenants.UpsertTenant(r.Context(), &tenant); err != nil {
			writeError(w, http.StatusInternalServerError, "tenant store failed")
			return
		}
		writeJSON(w, http.StatusOK, tenant)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tenantID := r.URL.Query().Get("tenant")
	limit := 50
	runs, err := s.runs.GetSyncRuns(r.Context(), tenantID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "run history lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleFailedEvents exposes checkout events that exhausted processing,
// so operators can inspect what the dead-letter queue holds without
// attaching to redis.
func (s *Server) handleFailedEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tasks, err := s.queue.GetFailedEventTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "event queue lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": tasks})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("api: request")
	})
}

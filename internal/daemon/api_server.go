package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"devopsmirror/internal/api"
	"devopsmirror/internal/config"
	"devopsmirror/internal/logging"
	"devopsmirror/internal/metrics"
	"devopsmirror/internal/services"
)

const defaultListLimit = 100

type apiServer struct {
	bind     string
	maxBody  int64
	logger   *slog.Logger
	service  *api.WorkItemService
	metrics  *metrics.Collector
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, svc *api.WorkItemService, collector *metrics.Collector, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(cfg.HTTP.Bind),
		maxBody: cfg.HTTP.MaxBodyBytes,
		logger:  logger,
		service: svc,
		metrics: collector,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /webhook/workitem/updated", s.handleWebhook)
	mux.HandleFunc("GET /workitems", s.handleList)
	mux.HandleFunc("GET /workitems/{id}", s.handleDescribe)
	mux.HandleFunc("GET /workitems/{id}/time-in-state", s.handleTimeInState)
	return s.withRequestContext(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Health(r.Context())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.log()), "health check failed", "health_check_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify database connectivity"),
			logging.String(logging.FieldImpact, "webhook ingestion is likely failing"),
		)
		s.writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.metrics.WriteText(r.Context(), &buf); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrStorage, "api-server", "metrics", "", err))
		return
	}
	w.Header().Set("Content-Type", metrics.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *apiServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
				Error:     fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Kind:      services.KindValidation,
				RequestID: requestIDFrom(r),
			})
			return
		}
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api-server", "read body", "", err))
		return
	}

	result, err := s.service.Ingest(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api-server", "list", "limit must be a non-negative integer", nil))
			return
		}
		limit = parsed
	}
	items, err := s.service.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkItemList{Items: items})
}

func (s *apiServer) handleDescribe(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleTimeInState(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.TimeInState(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.log().Error("request failed",
			logging.String(logging.FieldEventType, "request_failed"),
			logging.String(logging.FieldCorrelationID, requestIDFrom(r)),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	retryable := services.Retryable(err)
	if retryable {
		w.Header().Set("Retry-After", "1")
	}
	s.writeJSON(w, status, api.ErrorResponse{
		Error:     err.Error(),
		Kind:      services.Kind(err),
		RequestID: requestIDFrom(r),
		Retryable: retryable,
	})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}

// statusForError maps a service error marker onto an HTTP status.
func statusForError(err error) int {
	switch services.Kind(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func requestIDFrom(r *http.Request) string {
	id, _ := services.RequestIDFromContext(r.Context())
	return id
}

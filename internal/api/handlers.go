// Package api exposes the HTTP surface for the authenticated user: on-demand
// sync, metric and activity reads, and provider account management.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"example.com/healthscore/internal/auth"
	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/persistence"
)

const (
	defaultRangeDays = 7
	maxBodyBytes     = 1 << 16
)

// Syncer runs one sync for a user.
type Syncer interface {
	RunSync(ctx context.Context, userID string) (*domain.SyncLog, error)
}

// Handler coordinates HTTP requests with the domain service and orchestrator.
type Handler struct {
	service *domain.Service
	syncer  Syncer
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a Handler.
type Option func(*Handler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, syncer Syncer, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		syncer:  syncer,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/me/sync", h.requireScope(auth.ScopeSyncWrite, h.sync))
	mux.HandleFunc("GET /v1/me/metrics", h.requireScope(auth.ScopeMetricsRead, h.listMetrics))
	mux.HandleFunc("GET /v1/me/metrics/summary", h.requireScope(auth.ScopeMetricsRead, h.summary))
	mux.HandleFunc("GET /v1/me/metrics/{date}", h.requireScope(auth.ScopeMetricsRead, h.getMetric))
	mux.HandleFunc("GET /v1/me/activities", h.requireScope(auth.ScopeMetricsRead, h.listActivities))
	mux.HandleFunc("GET /v1/me/sync-logs", h.requireScope(auth.ScopeMetricsRead, h.listSyncLogs))
	mux.HandleFunc("PUT /v1/me/provider-credential", h.requireScope(auth.ScopeCredentialsWrite, h.putCredential))
	mux.HandleFunc("DELETE /v1/me/provider-credential", h.requireScope(auth.ScopeCredentialsWrite, h.deleteCredential))
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (h *Handler) requireScope(scope string, next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !claims.HasScope(scope) {
			writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
			return
		}
		next(w, r, claims.Subject)
	}
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request, userID string) {
	entry, err := h.syncer.RunSync(r.Context(), userID)
	if entry == nil {
		if err == nil {
			err = errors.New("sync returned no result")
		}
		h.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = syncFailureStatus(domain.KindOf(err))
	}
	writeJSON(w, status, toSyncLogView(*entry))
}

func (h *Handler) getMetric(w http.ResponseWriter, r *http.Request, userID string) {
	date, err := domain.ParseDay(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}

	metric, err := h.service.GetDailyMetric(r.Context(), userID, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyMetricView(*metric))
}

func (h *Handler) listMetrics(w http.ResponseWriter, r *http.Request, userID string) {
	query := r.URL.Query()
	to := domain.Day(h.now())
	if raw := query.Get("to"); raw != "" {
		parsed, err := domain.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -(defaultRangeDays - 1))
	if raw := query.Get("from"); raw != "" {
		parsed, err := domain.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}

	metrics, err := h.service.ListDailyMetrics(r.Context(), userID, from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ListDailyMetricsResponse{
		From:  from.Format(domain.DateLayout),
		To:    to.Format(domain.DateLayout),
		Items: make([]DailyMetricView, 0, len(metrics)),
	}
	for _, m := range metrics {
		resp.Items = append(resp.Items, toDailyMetricView(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request, userID string) {
	q, ok := parseListQuery(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), userID, q.Days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := SummaryResponse{
		From:                    summary.From.Format(domain.DateLayout),
		To:                      summary.To.Format(domain.DateLayout),
		DaysWithData:            summary.DaysWithData,
		AverageRecovery:         summary.AverageRecovery,
		AverageStrain:           summary.AverageStrain,
		AverageSleepPerformance: summary.AverageSleepPerformance,
		AverageSleepHours:       summary.AverageSleepHours,
	}
	if summary.Latest != nil {
		latest := toDailyMetricView(*summary.Latest)
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request, userID string) {
	q, ok := parseListQuery(w, r)
	if !ok {
		return
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.service.ListActivities(r.Context(), userID, cursor, q.Limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ListActivitiesResponse{
		Items:      make([]ActivityView, 0, len(activities)),
		NextCursor: persistence.EncodeCursor(next),
	}
	for _, a := range activities {
		resp.Items = append(resp.Items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listSyncLogs(w http.ResponseWriter, r *http.Request, userID string) {
	q, ok := parseListQuery(w, r)
	if !ok {
		return
	}

	logs, err := h.service.ListSyncLogs(r.Context(), userID, q.Limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ListSyncLogsResponse{Items: make([]SyncLogView, 0, len(logs))}
	for _, l := range logs {
		resp.Items = append(resp.Items, toSyncLogView(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) putCredential(w http.ResponseWriter, r *http.Request, userID string) {
	var req ProviderCredentialRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	cred := domain.Credential{Email: req.Email, Password: req.Password}
	if err := h.service.ConnectProvider(r.Context(), userID, cred); err != nil {
		h.logger.Warn("provider connect failed", "user_id", userID, "credential", cred, "error_kind", domain.KindOf(err))
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCredential(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.service.DisconnectProvider(r.Context(), userID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListQuery(w http.ResponseWriter, r *http.Request) (listQuery, bool) {
	var q listQuery
	values := r.URL.Query()
	for key, dst := range map[string]*int{"limit": &q.Limit, "days": &q.Days} {
		raw := values.Get(key)
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", key+" must be an integer")
			return q, false
		}
		*dst = parsed
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return q, false
	}
	return q, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	detail := err.Error()
	if status >= http.StatusInternalServerError && code == "server_error" {
		h.logger.Error("request failed", "error", err)
		detail = "internal error"
	}
	writeError(w, status, code, detail)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

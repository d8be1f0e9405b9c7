// Package rest exposes the timer service as a JSON HTTP API. Callers are
// identified by the X-User-ID header, which an upstream gateway resolves.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/focustide/internal/platform/httpx"
	"github.com/louisbranch/focustide/internal/services/timer/app"
	"github.com/louisbranch/focustide/internal/services/timer/domain/session"
	"github.com/louisbranch/focustide/internal/services/timer/storage"
)

const ownerHeader = "X-User-ID"

// API is the slice of the application service the HTTP layer needs.
type API interface {
	Start(ctx context.Context, input session.StartInput) (app.View, error)
	Pause(ctx context.Context, ownerID string) (app.View, error)
	Resume(ctx context.Context, ownerID string) (app.View, error)
	Stop(ctx context.Context, ownerID string, input app.StopInput) (app.Result, error)
	Cancel(ctx context.Context, ownerID string) (app.Result, error)
	Amend(ctx context.Context, ownerID, sessionID string, rating int, notes string) (app.Result, error)
	GetActive(ctx context.Context, ownerID string) (app.View, bool, error)
	History(ctx context.Context, ownerID string, filter storage.Filter) ([]app.View, error)
	SuggestNext(ctx context.Context, ownerID string) (session.Suggestion, error)
	Summarize(ctx context.Context, ownerID string, at time.Time) (app.Summary, error)
}

// Handler serves the timer JSON routes.
type Handler struct {
	api API
}

// NewHandler creates a Handler over the given API.
func NewHandler(api API) *Handler {
	return &Handler{api: api}
}

// Routes builds the route table with shared middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/sessions", http.HandlerFunc(h.sessions))
	mux.Handle("/v1/sessions/pause", httpx.RequireMethod(http.MethodPost)(http.HandlerFunc(h.pause)))
	mux.Handle("/v1/sessions/resume", httpx.RequireMethod(http.MethodPost)(http.HandlerFunc(h.resume)))
	mux.Handle("/v1/sessions/stop", httpx.RequireMethod(http.MethodPost)(http.HandlerFunc(h.stop)))
	mux.Handle("/v1/sessions/cancel", httpx.RequireMethod(http.MethodPost)(http.HandlerFunc(h.cancel)))
	mux.Handle("/v1/sessions/active", httpx.RequireMethod(http.MethodGet)(http.HandlerFunc(h.active)))
	mux.Handle("/v1/sessions/suggestion", httpx.RequireMethod(http.MethodGet)(http.HandlerFunc(h.suggestion)))
	mux.Handle("/v1/sessions/summary", httpx.RequireMethod(http.MethodGet)(http.HandlerFunc(h.summary)))
	mux.Handle("/v1/sessions/{id}/amend", httpx.RequireMethod(http.MethodPost)(http.HandlerFunc(h.amend)))
	mux.Handle("/healthz", httpx.RequireMethod(http.MethodGet)(http.HandlerFunc(h.healthz)))
	return httpx.Chain(mux, httpx.RequestID(), httpx.RecoverPanic())
}

// sessions dispatches the collection route: POST starts a session, GET
// lists history.
func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.start(w, r)
	case http.MethodGet:
		h.history(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type startRequest struct {
	Kind           string `json:"kind"`
	Title          string `json:"title"`
	PlannedMinutes int    `json:"plannedMinutes"`
	GoalID         string `json:"goalId"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.api.Start(httpx.RequestContext(r), session.StartInput{
		OwnerID:        ownerID,
		Kind:           session.Kind(req.Kind),
		Title:          req.Title,
		PlannedMinutes: req.PlannedMinutes,
		GoalID:         req.GoalID,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, viewPayload(view))
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	view, err := h.api.Pause(httpx.RequestContext(r), ownerID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, viewPayload(view))
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	view, err := h.api.Resume(httpx.RequestContext(r), ownerID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, viewPayload(view))
}

type stopRequest struct {
	Rating int    `json:"rating"`
	Notes  string `json:"notes"`
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req stopRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.api.Stop(httpx.RequestContext(r), ownerID, app.StopInput{Rating: req.Rating, Notes: req.Notes})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, resultPayload(result))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	result, err := h.api.Cancel(httpx.RequestContext(r), ownerID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, resultPayload(result))
}

type amendRequest struct {
	Rating int    `json:"rating"`
	Notes  string `json:"notes"`
}

func (h *Handler) amend(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	sessionID := strings.TrimSpace(r.PathValue("id"))
	if sessionID == "" {
		httpx.WriteError(w, storage.ErrNotFound)
		return
	}
	var req amendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.api.Amend(httpx.RequestContext(r), ownerID, sessionID, req.Rating, req.Notes)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, resultPayload(result))
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	view, found, err := h.api.GetActive(httpx.RequestContext(r), ownerID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if !found {
		httpx.WriteError(w, session.ErrNoActiveSession)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, viewPayload(view))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		_ = httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	views, err := h.api.History(httpx.RequestContext(r), ownerID, filter)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(views))
	for _, view := range views {
		payload = append(payload, viewPayload(view))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": payload})
}

func (h *Handler) suggestion(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	suggestion, err := h.api.SuggestNext(httpx.RequestContext(r), ownerID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"kind":    string(suggestion.Kind),
		"minutes": suggestion.Minutes,
		"reason":  suggestion.Reason,
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	at := time.Now().UTC()
	if day := strings.TrimSpace(r.URL.Query().Get("day")); day != "" {
		parsed, err := time.Parse("2006-01-02", day)
		if err != nil {
			_ = httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be formatted as YYYY-MM-DD"})
			return
		}
		at = parsed
	}
	summary, err := h.api.Summarize(httpx.RequestContext(r), ownerID, at)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"day":               summary.Day.Format("2006-01-02"),
		"completedFocus":    summary.CompletedFocus,
		"completedBreaks":   summary.CompletedBreaks,
		"cancelled":         summary.Cancelled,
		"expired":           summary.Expired,
		"productiveMinutes": summary.ProductiveMinutes,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := strings.TrimSpace(r.Header.Get(ownerHeader))
	if ownerID == "" {
		httpx.WriteError(w, session.ErrEmptyOwnerID)
		return "", false
	}
	return ownerID, true
}

// decodeBody parses a JSON request body. An empty body decodes to the zero
// request so endpoints with all-optional fields accept bare POSTs.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		_ = httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func parseFilter(r *http.Request) (storage.Filter, error) {
	query := r.URL.Query()
	filter := storage.Filter{
		Kind:  session.Kind(strings.TrimSpace(query.Get("kind"))),
		State: session.State(strings.TrimSpace(query.Get("state"))),
	}
	if raw := strings.TrimSpace(query.Get("startedAfter")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return storage.Filter{}, fmt.Errorf("startedAfter must be an RFC 3339 timestamp")
		}
		filter.StartedAfter = parsed
	}
	if raw := strings.TrimSpace(query.Get("startedBefore")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return storage.Filter{}, fmt.Errorf("startedBefore must be an RFC 3339 timestamp")
		}
		filter.StartedBefore = parsed
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return storage.Filter{}, fmt.Errorf("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func viewPayload(view app.View) map[string]any {
	return map[string]any{
		"id":              view.ID,
		"kind":            string(view.Kind),
		"title":           view.Title,
		"plannedDuration": view.PlannedMinutes * 60,
		"startedAt":       view.StartedAt.UTC().Format(time.RFC3339),
		"state":           string(view.State),
		"elapsed":         int(view.Elapsed.Seconds()),
		"remaining":       int(view.Remaining.Seconds()),
		"pauseCount":      view.PauseCount,
	}
}

func resultPayload(result app.Result) map[string]any {
	payload := viewPayload(result.View)
	payload["actualMinutes"] = result.ActualMinutes
	payload["completionPercent"] = result.CompletionPercent
	return payload
}

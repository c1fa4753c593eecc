package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"VideoScanner/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type sourceRequest struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Boost       int               `json:"boost"`
	Verified    *bool             `json:"verified"`
	Kind        domain.SourceKind `json:"kind"`
	Scanner     string            `json:"scanner"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

func (s *Server) runCycle(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.TryRunCycle(r.Context())
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.log.Error("cycle over http failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, summary)
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is not running")
		return
	}
	if !s.trigger.Trigger() {
		s.log.Warn("check already queued", "remote_ip", r.RemoteAddr)
		writeJSON(w, http.StatusTooManyRequests, map[string]bool{"queued": false})
		return
	}
	s.log.Info("manual check triggered", "remote_ip", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.svc.ApproveAndPublish(r.Context(), chi.URLParam(r, "id")), http.StatusOK)
}

func (s *Server) markSpam(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.svc.MarkSpam(r.Context(), chi.URLParam(r, "id")), http.StatusOK)
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	items, err := s.svc.GetPending(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list pending", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	maxAge, ok := intParam(w, r, "maxAgeDays")
	if !ok {
		return
	}
	items, err := s.svc.GetRecent(r.Context(), limit, maxAge)
	if err != nil {
		s.internalError(w, "list recent", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.svc.Sources()))
}

func (s *Server) registerSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	verified := true
	if req.Verified != nil {
		verified = *req.Verified
	}
	writeResult(w, s.svc.RegisterSourceEntry(r.Context(), domain.SourceEntry{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		Kind:        req.Kind,
		Verified:    verified,
		Boost:       req.Boost,
		Scanner:     req.Scanner,
	}), http.StatusCreated)
}

func (s *Server) quota(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.GetQuotaStatus(r.Context())
	if err != nil {
		s.internalError(w, "quota status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) today(w http.ResponseWriter, r *http.Request) {
	dash, err := s.svc.Dashboard(r.Context())
	if err != nil {
		s.internalError(w, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

// intParam reads an optional non-negative integer query parameter; zero means unset.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// writeResult maps an ActionResult; failures are 422 with the reason.
func writeResult(w http.ResponseWriter, res domain.ActionResult, okStatus int) {
	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, okStatus, res)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

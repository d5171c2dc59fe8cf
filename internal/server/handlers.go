package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/search"
)

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query   string         `json:"query"`
	K       int            `json:"k"`
	Filters map[string]any `json:"filters,omitempty"`
	// Department is shorthand for filters.department.
	Department string `json:"department,omitempty"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	search.Stats
	DiskUsageBytes int64 `json:"disk_usage_bytes,omitempty"`
}

// CourseResponse is the body of GET /api/v1/courses/{code}.
type CourseResponse struct {
	RecordIndex int `json:"record_index"`
	*models.Course
}

// RebuildResponse is the body of POST /api/v1/rebuild.
type RebuildResponse struct {
	BuildID     string `json:"build_id"`
	Records     int    `json:"records"`
	Fingerprint string `json:"fingerprint"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	filters, err := MergeDepartment(req.Filters, req.Department)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("k", req.K))

	resp, err := s.engine.Search(r.Context(), req.Query, filters, req.K)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("search failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	course, idx, err := s.engine.Course(code)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, CourseResponse{RecordIndex: idx, Course: course})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Stats: s.engine.Stats()}
	if s.diskUsage != nil {
		n, err := s.diskUsage()
		if err != nil {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		} else {
			resp.DiskUsageBytes = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuild == nil {
		s.respondError(w, http.StatusNotImplemented, "rebuild is not enabled")
		return
	}
	if !s.rebuildMu.TryLock() {
		s.respondError(w, http.StatusConflict, "rebuild already in progress")
		return
	}
	defer s.rebuildMu.Unlock()

	// The rebuild outlives a client disconnect.
	snap, err := s.rebuild(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, RebuildResponse{
		BuildID:     snap.BuildID,
		Records:     snap.Size(),
		Fingerprint: snap.Fingerprint(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.engine.Snapshot() == nil {
		status = "loading"
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// MergeDepartment folds a top-level department into filters. A conflicting
// filters.department is rejected.
func MergeDepartment(filters map[string]any, department string) (map[string]any, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return filters, nil
	}
	out := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		out[k] = v
	}
	if existing, ok := out[search.FilterDepartment]; ok {
		if str, isStr := existing.(string); !isStr || !strings.EqualFold(strings.TrimSpace(str), department) {
			return nil, &models.InvalidFilterError{Key: search.FilterDepartment, Reason: "conflicts with top-level department"}
		}
	}
	out[search.FilterDepartment] = department
	return out, nil
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrEmbedding):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("encode response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

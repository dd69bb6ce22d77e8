package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/board"
	"github.com/kidandcat/teamboard/internal/db"
)

const maxBodyBytes = 1 << 20

type Server struct {
	board *board.Service
	store *db.Store
	log   *slog.Logger
}

func New(svc *board.Service, store *db.Store, logger *slog.Logger) *Server {
	return &Server{board: svc, store: store, log: logger}
}

// Handler returns the full route table wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.recoverPanics(s.traceRequests(s.accessLog(mux)))
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Users
	handle(mux, "POST", "/api/users/registration/", s.handleRegister)
	handle(mux, "POST", "/api/users/login/", s.handleLogin)
	handle(mux, "POST", "/api/users/token/refresh/", s.handleRefresh)
	handle(mux, "POST", "/api/users/logout/", s.requireAuth(s.handleLogout))
	handle(mux, "GET", "/api/users/", s.requireAuth(s.handleListUsers))
	handle(mux, "GET", "/api/users/me/", s.requireAuth(s.handleMe))
	handle(mux, "GET", "/api/users/{id}/", s.requireAuth(s.handleGetUser))
	handle(mux, "PUT", "/api/users/{id}/", s.requireAuth(s.handleUpdateUser))
	handle(mux, "PATCH", "/api/users/{id}/", s.requireAuth(s.handleUpdateUser))
	handle(mux, "DELETE", "/api/users/{id}/", s.requireAuth(s.handleDeleteUser))

	// Teams
	handle(mux, "GET", "/api/teams/", s.requireAuth(s.handleListTeams))
	handle(mux, "POST", "/api/teams/", s.requireAuth(s.handleCreateTeam))
	handle(mux, "GET", "/api/teams/{id}/", s.requireAuth(s.handleGetTeam))
	handle(mux, "PUT", "/api/teams/{id}/", s.requireAuth(s.handleUpdateTeam))
	handle(mux, "PATCH", "/api/teams/{id}/", s.requireAuth(s.handleUpdateTeam))
	handle(mux, "DELETE", "/api/teams/{id}/", s.requireAuth(s.handleDeleteTeam))

	// Projects
	handle(mux, "GET", "/api/projects/", s.requireAuth(s.handleListProjects))
	handle(mux, "POST", "/api/projects/", s.requireAuth(s.handleCreateProject))
	handle(mux, "GET", "/api/projects/{id}/", s.requireAuth(s.handleGetProject))
	handle(mux, "PUT", "/api/projects/{id}/", s.requireAuth(s.handleUpdateProject))
	handle(mux, "PATCH", "/api/projects/{id}/", s.requireAuth(s.handleUpdateProject))
	handle(mux, "DELETE", "/api/projects/{id}/", s.requireAuth(s.handleDeleteProject))

	// Tasks
	handle(mux, "GET", "/api/tasks/", s.requireAuth(s.handleListTasks))
	handle(mux, "POST", "/api/tasks/", s.requireAuth(s.handleCreateTask))
	handle(mux, "GET", "/api/tasks/{id}/", s.requireAuth(s.handleGetTask))
	handle(mux, "PUT", "/api/tasks/{id}/", s.requireAuth(s.handleUpdateTask))
	handle(mux, "PATCH", "/api/tasks/{id}/", s.requireAuth(s.handleUpdateTask))
	handle(mux, "DELETE", "/api/tasks/{id}/", s.requireAuth(s.handleDeleteTask))

	// Comments
	handle(mux, "GET", "/api/tasks/{task_id}/comments/", s.requireAuth(s.handleListComments))
	handle(mux, "POST", "/api/tasks/{task_id}/comments/", s.requireAuth(s.handleCreateComment))
	handle(mux, "GET", "/api/tasks/{task_id}/comments/{id}/", s.requireAuth(s.handleGetComment))
	handle(mux, "PUT", "/api/tasks/{task_id}/comments/{id}/", s.requireAuth(s.handleUpdateComment))
	handle(mux, "PATCH", "/api/tasks/{task_id}/comments/{id}/", s.requireAuth(s.handleUpdateComment))
	handle(mux, "DELETE", "/api/tasks/{task_id}/comments/{id}/", s.requireAuth(s.handleDeleteComment))
}

// handle registers path (which ends in "/") exactly, and also without the
// trailing slash.
func handle(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.HandleFunc(method+" "+path+"{$}", h)
	mux.HandleFunc(method+" "+strings.TrimSuffix(path, "/"), h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.ErrorContext(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// writeError maps a domain error to its status and body. Anything that is
// not an apperr value is logged and reported as a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs *apperr.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, verrs.Fields)
		return
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch e.Kind {
	case apperr.KindValidation, apperr.KindConflict:
		field := e.Field
		if field == "" {
			field = apperr.NonField
		}
		writeJSON(w, http.StatusBadRequest, apperr.Fields{field: {e.Message}})
	case apperr.KindPermission:
		writeDetail(w, http.StatusForbidden, e.Message)
	case apperr.KindNotFound:
		writeDetail(w, http.StatusNotFound, e.Message)
	case apperr.KindUnauthenticated:
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		writeDetail(w, http.StatusUnauthorized, e.Message)
	default:
		s.log.ErrorContext(r.Context(), "unknown error kind", "kind", e.Kind, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads the request body into v. An empty body decodes as {}.
// Type mismatches are reported against the offending field.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.Validation(typeErr.Field, "Incorrect type. Expected "+typeErr.Type.String()+", got "+typeErr.Value+".")
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return apperr.Validation(apperr.NonField, "Request body too large.")
	}
	return apperr.Validation(apperr.NonField, "JSON parse error - "+err.Error())
}

// pathID parses a numeric path value. Anything else cannot name a record,
// so it is a 404 like any other missing row.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFound("Not found.")
	}
	return id, nil
}

// listOrEmpty keeps JSON lists from encoding as null.
func listOrEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

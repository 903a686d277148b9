// Package httpapi is the optional debug server cmd/turtlebench starts
// with --serve: a tiny introspection surface exposing stack statistics
// and a liveness check, built the way the teacher's internal/service
// package wires routes -- gorilla/mux for routing, gorilla/handlers for
// access logging, and a small appHandler adapter so handlers can return
// an error instead of writing one themselves.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/geoturtle/turtle/pkg/stack"
)

// StackStats is the subset of a Stack's state worth exposing over HTTP.
type StackStats struct {
	Size    int `json:"size"`
	MaxSize int `json:"max_size"`
}

// appError is a handler-reported failure carrying the HTTP status to
// reply with, mirroring the teacher's internal/service.appError.
type appError struct {
	status  int
	message string
}

func (e *appError) Error() string { return e.message }

func errBadRequest(format string, args ...interface{}) *appError {
	return &appError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func errUnauthorized(msg string) *appError {
	return &appError{status: http.StatusUnauthorized, message: msg}
}

// appHandler adapts a handler that can fail into an http.Handler,
// writing a JSON error body and logging the failure when one occurs --
// the same shape as the teacher's appHandler in internal/service/handler.go.
type appHandler func(w http.ResponseWriter, r *http.Request) *appError

func (fn appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		log.WithFields(log.Fields{"path": r.URL.Path, "status": err.status}).Warn(err.message)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(err.status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.message})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) *appError {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return errBadRequest("encoding response: %v", err)
	}
	return nil
}

// Server is the debug HTTP server wrapping one Stack.
type Server struct {
	stack  *stack.Stack
	apiKey string
	router *mux.Router
}

// New builds a Server over s. apiKey, when non-empty, is required via the
// X-API-Key header on the admin /clear endpoint -- /stats and /health stay
// open, matching the teacher's distinction between read-only status
// routes and the mutating cache-admin ones.
func New(s *stack.Stack, apiKey string) *Server {
	srv := &Server{stack: s, apiKey: apiKey}
	srv.router = srv.initRouter()
	return srv
}

func (s *Server) initRouter() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/health", appHandler(s.handleHealth)).Methods(http.MethodGet)
	r.Handle("/stats", appHandler(s.handleStats)).Methods(http.MethodGet)
	r.Handle("/admin/clear", s.requireAPIKey(appHandler(s.handleClear))).Methods(http.MethodPost)

	r.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			log.Debugf("httpapi: registered route %s", tmpl)
		}
		return nil
	})

	return r
}

// Handler returns the server's http.Handler, wrapped in an access-logging
// middleware the way the teacher wraps its router with
// handlers.LoggingHandler before handing it to net/http.
func (s *Server) Handler() http.Handler {
	return handlers.LoggingHandler(log.StandardLogger().Out, s.router)
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return appHandler(func(w http.ResponseWriter, r *http.Request) *appError {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return nil
		}
		if r.Header.Get("X-API-Key") != s.apiKey {
			return errUnauthorized("missing or invalid X-API-Key")
		}
		next.ServeHTTP(w, r)
		return nil
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) *appError {
	return writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) *appError {
	stats := StackStats{Size: s.stack.Size(), MaxSize: s.stack.MaxSize()}
	return writeJSON(w, stats)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) *appError {
	s.stack.Clear()
	return writeJSON(w, map[string]string{"status": "cleared"})
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/video-route/internal/dispatch"
	"github.com/nerrad567/video-route/internal/routing"
)

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// sourcesResponse is the body of GET /api/v1/sources.
type sourcesResponse struct {
	Sources   []*routing.Node `json:"sources"`
	Endpoints []endpointInfo  `json:"endpoints"`
	Warnings  []string        `json:"warnings,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// endpointInfo describes an endpoint without its transport parameters,
// which may hold passwords.
type endpointInfo struct {
	Name string       `json:"name"`
	Kind routing.Kind `json:"kind"`
}

// handleHealth returns the server health status and that of each optional
// component. Any failing component degrades the overall status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	resp := map[string]any{
		"status":  status,
		"version": s.version,
	}
	if len(components) > 0 {
		resp["components"] = components
	}
	if s.hub != nil {
		resp["websocket_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSources returns the freshly loaded Source Tree for rendering.
// A broken document still answers 200 with the empty placeholder tree and
// the load error, so the page can show what went wrong.
func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	doc, err := s.dispatcher.Tree()

	resp := sourcesResponse{
		Sources:   []*routing.Node{},
		Endpoints: make([]endpointInfo, 0, len(doc.Endpoints)),
		Warnings:  doc.Warnings,
	}
	if doc.Root != nil && doc.Root.Children != nil {
		resp.Sources = doc.Root.Children
	}
	for _, ep := range doc.Endpoints {
		resp.Endpoints = append(resp.Endpoints, endpointInfo{Name: ep.Name, Kind: ep.Kind})
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDispatch resolves a selection and drives its endpoints, answering
// with the finished execution.
//
// Status codes: 200 when every endpoint (or at least one) succeeded, 404 when
// the address does not resolve to a configured leaf, 502 when every
// endpoint failed.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	address, ok := s.readSelection(w, r)
	if !ok {
		return
	}

	exec := s.dispatch(r, address)

	switch exec.Status {
	case dispatch.StatusNoMatch:
		writeJSON(w, http.StatusNotFound, exec)
	case dispatch.StatusFailed:
		writeJSON(w, http.StatusBadGateway, exec)
	default:
		writeJSON(w, http.StatusOK, exec)
	}
}

// handleLegacySystem serves POST /system for pages and button boxes written
// against the original interface. It always answers "sure"; outcomes are in
// the logs, the history and the event stream.
func (s *Server) handleLegacySystem(w http.ResponseWriter, r *http.Request) {
	address, ok := s.readSelection(w, r)
	if !ok {
		return
	}

	s.dispatch(r, address)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	io.WriteString(w, "sure")
}

// readSelection decodes the request body into an address, writing a 400
// response when it cannot.
func (s *Server) readSelection(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return "", false
	}
	address, err := dispatch.ParseSelection(body)
	if err != nil {
		if errors.Is(err, dispatch.ErrEmptyAddress) {
			writeError(w, http.StatusBadRequest, "source is required")
		} else {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
		}
		return "", false
	}
	return address, true
}

// dispatch runs one selection. A client that disconnects mid-batch does not
// cut the batch short; the dispatcher bounds it with its own timeout.
func (s *Server) dispatch(r *http.Request, address string) *dispatch.Execution {
	s.logger.Debug("selection received",
		"address", address,
		"subject", r.Context().Value(ctxKeySubject),
		"request_id", requestID(r),
	)
	return s.dispatcher.ResolveAndDispatch(context.WithoutCancel(r.Context()), address, dispatch.SourceAPI)
}

// handleListDispatches returns recent executions, newest first.
// Query: ?limit=N (default 50, max 500).
func (s *Server) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "dispatch history is not enabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	execs, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list dispatches", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list dispatches")
		return
	}
	if execs == nil {
		execs = []dispatch.Execution{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dispatches": execs,
		"count":      len(execs),
	})
}

// handleGetDispatch returns one execution by id.
func (s *Server) handleGetDispatch(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "dispatch history is not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	exec, err := s.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dispatch not found")
			return
		}
		s.logger.Error("failed to get dispatch", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get dispatch")
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// handleSerialPorts lists the serial ports on this machine so operators can
// copy a device name into the routing document.
func (s *Server) handleSerialPorts(w http.ResponseWriter, _ *http.Request) {
	ports, err := s.ports()
	if err != nil {
		s.logger.Error("failed to enumerate serial ports", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enumerate serial ports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ports": ports,
		"count": len(ports),
	})
}

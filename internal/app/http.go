package app

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"bugtrack/api/internal/router"
	"bugtrack/api/internal/search"
	"bugtrack/api/internal/store"
	"bugtrack/api/internal/validate"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	router     *router.Router
	upgrader   websocket.Upgrader
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	s := &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		router:     router.New(),
		upgrader: websocket.Upgrader{
			// The CORS policy is allow-all; the socket follows it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	s.router.Add(http.MethodGet, `/health`, s.handleHealth)
	s.router.Add(http.MethodGet, `/records`, s.handleListRecords)
	s.router.Add(http.MethodGet, `/records/search`, s.handleSearch)
	s.router.Add(http.MethodGet, `/records/(\d+)`, s.handleGetRecord)
	s.router.Add(http.MethodPut, `/records/(\d+)`, s.handlePutRecord)
	s.router.Add(http.MethodDelete, `/records/(\d+)`, s.handleDeleteRecord)
	s.router.Add(http.MethodPatch, `/records/(\d+)/close`, s.handleCloseRecord)
	s.router.Add(http.MethodPost, `/records/(\d+)/comments`, s.handlePostComment)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// The socket endpoint hijacks the connection, so it cannot go
	// through the Response-returning dispatch table.
	if r.Method == http.MethodGet && r.URL.Path == "/ws" {
		s.handleWebSocket(w, r)
		return
	}

	handler, param, err := s.router.Dispatch(r.Method, r.URL.Path)
	switch err {
	case router.ErrMethodNotAllowed:
		writeResponse(w, router.Response{
			Status: http.StatusMethodNotAllowed,
			Body:   fmt.Sprintf("Method %s not allowed.", r.Method),
		})
		return
	case router.ErrNoMatch:
		writeResponse(w, router.Response{Status: http.StatusNotFound, Body: "Not found."})
		return
	}

	writeResponse(w, handler(r, param))
}

func (s *HTTPServer) handleHealth(_ *http.Request, _ string) router.Response {
	return jsonResponse(http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGetRecord(_ *http.Request, param string) router.Response {
	id, err := strconv.Atoi(param)
	if err != nil {
		return notFoundRecord(param)
	}
	rec, ok := s.service.GetRecord(id)
	if !ok {
		return notFoundRecord(param)
	}
	return jsonResponse(http.StatusOK, rec)
}

func (s *HTTPServer) handlePutRecord(r *http.Request, param string) router.Response {
	id, err := strconv.Atoi(param)
	if err != nil {
		return notFoundRecord(param)
	}
	payload, ok := decodeJSON(r)
	if !ok {
		return router.Response{Status: http.StatusBadRequest, Body: "Invalid JSON."}
	}
	if !validate.Record(payload) {
		return router.Response{Status: http.StatusBadRequest, Body: "Bad bug data."}
	}
	fields := payload.(map[string]any)
	s.service.PutRecord(id,
		fields["author"].(string),
		fields["title"].(string),
		fields["description"].(string),
	)
	return router.Response{Status: http.StatusNoContent}
}

func (s *HTTPServer) handleDeleteRecord(_ *http.Request, param string) router.Response {
	// Deleting an absent id still answers 204.
	if id, err := strconv.Atoi(param); err == nil {
		s.service.DeleteRecord(id)
	}
	return router.Response{Status: http.StatusNoContent}
}

func (s *HTTPServer) handleCloseRecord(_ *http.Request, param string) router.Response {
	id, err := strconv.Atoi(param)
	if err != nil {
		return notFoundRecord(param)
	}
	if !s.service.CloseRecord(id) {
		return notFoundRecord(param)
	}
	return router.Response{Status: http.StatusNoContent}
}

func (s *HTTPServer) handlePostComment(r *http.Request, param string) router.Response {
	id, err := strconv.Atoi(param)
	if err != nil {
		return notFoundRecord(param)
	}
	payload, ok := decodeJSON(r)
	if !ok {
		return router.Response{Status: http.StatusBadRequest, Body: "Invalid JSON."}
	}
	if !validate.Comment(payload) {
		return router.Response{Status: http.StatusBadRequest, Body: "Bad comment data."}
	}
	fields := payload.(map[string]any)
	comment := store.Comment{
		Author:  fields["author"].(string),
		Message: fields["message"].(string),
	}
	if !s.service.AddComment(id, comment) {
		return notFoundRecord(param)
	}
	return router.Response{Status: http.StatusNoContent}
}

// handleListRecords is the conditional read path. Without If-None-Match
// (or with a stale one) it answers the full list immediately. With a
// matching version it answers 304, unless the client asked to wait via
// Prefer: wait=N, in which case the request parks on the long-poll gate.
func (s *HTTPServer) handleListRecords(r *http.Request, _ string) router.Response {
	knownVersion, conditional := parseIfNoneMatch(r)
	if !conditional {
		return listResponse(s.service.ListSnapshot())
	}

	snap := s.service.ListSnapshot()
	if snap.Version != knownVersion {
		return listResponse(snap)
	}

	wait := parsePreferWait(r)
	if wait <= 0 {
		return notModified(knownVersion)
	}
	if max := s.service.cfg.MaxWaitSeconds; max > 0 && wait > max {
		wait = max
	}

	resolved, changed := s.service.WaitForChange(r.Context(), knownVersion, time.Duration(wait)*time.Second)
	if !changed {
		return notModified(knownVersion)
	}
	return listResponse(resolved)
}

func (s *HTTPServer) handleSearch(r *http.Request, _ string) router.Response {
	q := search.Query{Text: strings.TrimSpace(r.URL.Query().Get("q"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return router.Response{Status: http.StatusBadRequest, Body: "Bad limit."}
		}
		q.Limit = parsed
	}
	return jsonResponse(http.StatusOK, s.service.Search(q))
}

func (s *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Printf("ws: upgrade failed: %v", err)
		return
	}
	s.service.RegisterSocket(socket)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				if !writer.wrote {
					writer.Header().Set("Content-Type", "text/plain")
					writer.WriteHeader(http.StatusInternalServerError)
					fmt.Fprint(writer, rec)
				}
			}
			log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
				requestID,
				r.Method,
				r.URL.Path,
				writer.status,
				time.Since(started).Milliseconds(),
			)
		}()

		next.ServeHTTP(writer, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.wrote = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(p)
}

// Hijack lets the websocket upgrade take over the connection through
// the logging wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match, Prefer, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeResponse(w http.ResponseWriter, resp router.Response) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.Body != "" && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}

func jsonResponse(status int, payload any) router.Response {
	body, err := json.Marshal(payload)
	if err != nil {
		return router.Response{Status: http.StatusInternalServerError, Body: "Server error."}
	}
	return router.Response{
		Status:  status,
		Body:    string(body),
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

func listResponse(snap Snapshot) router.Response {
	resp := jsonResponse(http.StatusOK, snap.Records)
	resp.Headers["ETag"] = etag(snap.Version)
	return resp
}

func notModified(version int) router.Response {
	return router.Response{
		Status:  http.StatusNotModified,
		Headers: map[string]string{"ETag": etag(version)},
	}
}

func notFoundRecord(id string) router.Response {
	return router.Response{
		Status: http.StatusNotFound,
		Body:   fmt.Sprintf("Bug with id: %s not found.", id),
	}
}

func etag(version int) string {
	return fmt.Sprintf("%q", strconv.Itoa(version))
}

// parseIfNoneMatch extracts the version from a quoted If-None-Match
// value. A missing or malformed header means an unconditional read.
func parseIfNoneMatch(r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.Header.Get("If-None-Match"))
	if raw == "" {
		return 0, false
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return version, true
}

// parsePreferWait reads the wait= preference in seconds, 0 when absent.
func parsePreferWait(r *http.Request) int {
	for _, value := range r.Header.Values("Prefer") {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(strings.ToLower(part))
			if !strings.HasPrefix(part, "wait=") {
				continue
			}
			seconds, err := strconv.Atoi(strings.TrimPrefix(part, "wait="))
			if err != nil {
				return 0
			}
			return seconds
		}
	}
	return 0
}

func decodeJSON(r *http.Request) (any, bool) {
	if r.Body == nil {
		return nil, false
	}
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, false
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

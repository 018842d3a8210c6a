// Package server exposes the ring buffer and logger levels over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/vmlog/internal/api"
	"github.com/five82/vmlog/internal/levels"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/logging"
	"github.com/five82/vmlog/internal/ringbuf"
)

const (
	maxIngestBytes  = 8 << 20
	shutdownTimeout = 5 * time.Second
)

// Options wires the server to its collaborators.
type Options struct {
	Buffer   *ringbuf.Buffer
	Resolver *levels.Resolver
	Metrics  http.Handler
	Logger   logrus.FieldLogger
	// OnLevelsChanged runs after a successful level update.
	OnLevelsChanged func(ctx context.Context)
}

// Server serves the vmlog HTTP API.
type Server struct {
	buf      *ringbuf.Buffer
	resolver *levels.Resolver
	metrics  http.Handler
	log      logrus.FieldLogger
	changed  func(ctx context.Context)
}

// New builds a Server. Buffer and Resolver are required.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		buf:      opts.Buffer,
		resolver: opts.Resolver,
		metrics:  opts.Metrics,
		log:      log,
		changed:  opts.OnLevelsChanged,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathLogs, s.handleLogs)
	mux.HandleFunc("DELETE "+api.PathLogs, s.handleClear)
	mux.HandleFunc("GET "+api.PathStream, s.handleStream)
	mux.HandleFunc("GET "+api.PathException, s.handleException)
	mux.HandleFunc("POST "+api.PathEvents, s.handleIngest)
	mux.HandleFunc("GET "+api.PathLevels, s.handleGetLevel)
	mux.HandleFunc("PUT "+api.PathLevels, s.handleSetLevel)
	if s.metrics != nil {
		mux.Handle("GET "+api.PathMetrics, s.metrics)
	}
	return mux
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. Open streams end when the buffer closes their subscribers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.WithField("addr", ln.Addr().String()).Info("api listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve api: %w", err)
	}
	return nil
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := intParam(query.Get("limit"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	keep, err := levelFilter(query.Get("level"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if limit <= 0 {
		limit = s.buf.Cap()
	}
	events := s.buf.Snapshot(limit)
	batch := api.LogBatch{Events: make([]logevent.LogEvent, 0, len(events))}
	if len(events) > 0 {
		batch.Next = events[len(events)-1].Seq
	}
	for _, evt := range events {
		if keep(evt) {
			batch.Events = append(batch.Events, evt)
		}
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.buf.Clear()
	s.log.Info("log buffer cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleException(w http.ResponseWriter, _ *http.Request) {
	evt, ok := logevent.LastWithTrace(s.buf.Snapshot(s.buf.Cap()))
	if !ok {
		s.writeError(w, fmt.Errorf("no event with an exception: %w", api.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxIngestBytes))
	accepted := 0
	for {
		var evt logevent.LogEvent
		err := dec.Decode(&evt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeErrorStatus(w, http.StatusBadRequest, api.CodeBadRequest, fmt.Sprintf("decode event %d: %v", accepted+1, err))
			return
		}
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now()
		}
		evt.Seq = 0
		if err := s.buf.Add(&evt); err != nil {
			s.writeError(w, err)
			return
		}
		accepted++
	}
	writeJSON(w, http.StatusOK, api.IngestResponse{Accepted: accepted})
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	logger := strings.TrimSpace(r.URL.Query().Get("logger"))
	if strings.EqualFold(logger, levels.All) {
		all, err := s.resolver.All(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, api.LevelsResponse{Levels: all})
		return
	}

	res, err := s.resolver.GetLevel(r.Context(), logger)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	var req api.LevelRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, api.CodeBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if err := s.resolver.SetLevel(r.Context(), req.Logger, req.Level); err != nil {
		s.writeError(w, err)
		return
	}
	if s.changed != nil {
		s.changed(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := api.Classify(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Warn("api request failed")
	}
	s.writeErrorStatus(w, status, code, err.Error())
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", ringbuf.ErrInvalidArgument, raw)
	}
	return n, nil
}

func uintParam(raw string) (uint64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q is not a sequence number", ringbuf.ErrInvalidArgument, raw)
	}
	return n, true, nil
}

func levelFilter(raw string) (func(logevent.LogEvent) bool, error) {
	if strings.TrimSpace(raw) == "" {
		return func(logevent.LogEvent) bool { return true }, nil
	}
	lvl, ok := logevent.ParseLevel(raw)
	if !ok {
		return nil, fmt.Errorf("%w: unknown level %q", levels.ErrInvalidArgument, raw)
	}
	return logevent.AtLeast(lvl), nil
}

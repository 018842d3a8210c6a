// Package api holds the JSON shapes and error codes shared by the daemon's
// HTTP server and its client.
package api

import (
	"errors"
	"net/http"

	"github.com/five82/vmlog/internal/levels"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/pattern"
	"github.com/five82/vmlog/internal/ringbuf"
)

const (
	PathLogs      = "/api/logs"
	PathStream    = "/api/logs/stream"
	PathException = "/api/logs/exception"
	PathEvents    = "/api/events"
	PathLevels    = "/api/levels"
	PathMetrics   = "/metrics"
)

// ContentTypeNDJSON is used for event streams and bulk ingest.
const ContentTypeNDJSON = "application/x-ndjson"

// ErrNotFound reports a missing resource, such as no event with a trace.
var ErrNotFound = errors.New("not found")

// LogBatch is returned by GET /api/logs. Next is the sequence of the newest
// retained event; streaming with since=Next continues without gaps.
type LogBatch struct {
	Events []logevent.LogEvent `json:"events"`
	Next   uint64              `json:"next"`
}

// LevelRequest is the body of PUT /api/levels.
type LevelRequest struct {
	Logger string `json:"logger"`
	Level  string `json:"level"`
}

// LevelsResponse is returned by GET /api/levels?logger=ALL.
type LevelsResponse struct {
	Levels []levels.Resolution `json:"levels"`
}

// IngestResponse is returned by POST /api/events.
type IngestResponse struct {
	Accepted int `json:"accepted"`
}

// ErrorResponse is the body of every 4xx and 5xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	CodeInvalidArgument  = "invalid_argument"
	CodeInvalidOperation = "invalid_operation"
	CodeNotFound         = "not_found"
	CodeUnavailable      = "unavailable"
	CodeBadRequest       = "bad_request"
	CodeInternal         = "internal"
)

// Classify maps an error to an HTTP status and error code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, levels.ErrInvalidArgument),
		errors.Is(err, pattern.ErrInvalidPattern),
		errors.Is(err, ringbuf.ErrInvalidArgument):
		return http.StatusBadRequest, CodeInvalidArgument
	case errors.Is(err, levels.ErrInvalidOperation):
		return http.StatusConflict, CodeInvalidOperation
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ringbuf.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Error is a decoded error reply. It unwraps to the matching sentinel so
// callers can use errors.Is across the wire.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// Unwrap returns the sentinel for the error code, if any.
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeInvalidArgument:
		return levels.ErrInvalidArgument
	case CodeInvalidOperation:
		return levels.ErrInvalidOperation
	case CodeNotFound:
		return ErrNotFound
	case CodeUnavailable:
		return ringbuf.ErrClosed
	default:
		return nil
	}
}

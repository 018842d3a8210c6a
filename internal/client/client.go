package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/five82/vmlog/internal/api"
	"github.com/five82/vmlog/internal/levels"
	"github.com/five82/vmlog/internal/logevent"
)

// Client talks to the vmlog daemon HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	stream    *http.Client
	userAgent string
}

const (
	DefaultAddr      = "127.0.0.1:8181"
	defaultUserAgent = "vmlog/0.1"
	requestTimeout   = 5 * time.Second
	maxLineBytes     = 1 << 20
)

// NewClient builds a Client for the host:port (or URL) in addr.
func NewClient(addr string) (*Client, error) {
	base, err := parseBaseURL(addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		stream:    &http.Client{},
		userAgent: defaultUserAgent,
	}, nil
}

// LogQuery configures GET /api/logs.
type LogQuery struct {
	Limit int
	Level string
}

// FetchLogs returns the newest buffered events.
func (c *Client) FetchLogs(ctx context.Context, query LogQuery) (api.LogBatch, error) {
	values := url.Values{}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if level := strings.TrimSpace(query.Level); level != "" {
		values.Set("level", level)
	}
	var batch api.LogBatch
	if err := c.doJSON(ctx, http.MethodGet, withQuery(api.PathLogs, values), nil, &batch); err != nil {
		return api.LogBatch{}, err
	}
	return batch, nil
}

// StreamQuery configures GET /api/logs/stream. Without Since the stream
// carries live events only.
type StreamQuery struct {
	Since    uint64
	HasSince bool
	Level    string
}

// Stream calls fn for each streamed event until ctx ends, the daemon closes
// the stream, or fn returns an error. A daemon-side close returns nil.
func (c *Client) Stream(ctx context.Context, query StreamQuery, fn func(logevent.LogEvent) error) error {
	values := url.Values{}
	if query.HasSince {
		values.Set("since", strconv.FormatUint(query.Since, 10))
	}
	if level := strings.TrimSpace(query.Level); level != "" {
		values.Set("level", level)
	}

	resp, err := c.send(ctx, c.stream, http.MethodGet, withQuery(api.PathStream, values), nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		evt, err := logevent.Decode(line)
		if err != nil {
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// Ingest posts events to the daemon and returns how many were accepted.
func (c *Client) Ingest(ctx context.Context, events []logevent.LogEvent) (int, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, evt := range events {
		if err := enc.Encode(evt); err != nil {
			return 0, fmt.Errorf("encode event: %w", err)
		}
	}
	var resp api.IngestResponse
	if err := c.doJSON(ctx, http.MethodPost, withQuery(api.PathEvents, nil), &body, &resp); err != nil {
		return 0, err
	}
	return resp.Accepted, nil
}

// Clear empties the daemon's buffer.
func (c *Client) Clear(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, withQuery(api.PathLogs, nil), nil, nil)
}

// LastException returns the newest buffered event with a trace. It returns an
// error matching api.ErrNotFound when there is none.
func (c *Client) LastException(ctx context.Context) (logevent.LogEvent, error) {
	var evt logevent.LogEvent
	if err := c.doJSON(ctx, http.MethodGet, withQuery(api.PathException, nil), nil, &evt); err != nil {
		return logevent.LogEvent{}, err
	}
	return evt, nil
}

// GetLevel resolves the effective level of logger.
func (c *Client) GetLevel(ctx context.Context, logger string) (levels.Resolution, error) {
	values := url.Values{}
	values.Set("logger", logger)
	var res levels.Resolution
	if err := c.doJSON(ctx, http.MethodGet, withQuery(api.PathLevels, values), nil, &res); err != nil {
		return levels.Resolution{}, err
	}
	return res, nil
}

// ListLevels returns the root level and every configured logger.
func (c *Client) ListLevels(ctx context.Context) ([]levels.Resolution, error) {
	values := url.Values{}
	values.Set("logger", levels.All)
	var resp api.LevelsResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(api.PathLevels, values), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Levels, nil
}

// SetLevel changes the level of logger. Errors match levels.ErrInvalidArgument
// or levels.ErrInvalidOperation when the daemon rejects the change.
func (c *Client) SetLevel(ctx context.Context, logger, level string) error {
	payload, err := json.Marshal(api.LevelRequest{Logger: logger, Level: level})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPut, withQuery(api.PathLevels, nil), bytes.NewReader(payload), nil)
}

func (c *Client) doJSON(ctx context.Context, method string, rel *url.URL, body io.Reader, dest any) error {
	resp, err := c.send(ctx, c.http, method, rel, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, hc *http.Client, method string, rel *url.URL, body io.Reader) (*http.Response, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", api.ContentTypeNDJSON)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeError(rel, resp)
	}
	return resp, nil
}

func decodeError(rel *url.URL, resp *http.Response) error {
	apiErr := &api.Error{Status: resp.StatusCode}
	var payload api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api %s returned status %d", rel.Path, resp.StatusCode)
	return apiErr
}

func withQuery(path string, values url.Values) *url.URL {
	return &url.URL{Path: path, RawQuery: values.Encode()}
}

func parseBaseURL(addr string) (*url.URL, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		trimmed = DefaultAddr
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", addr, err)
	}
	if u.Host == "" {
		return nil, errors.New("address has no host")
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

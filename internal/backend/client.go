// Package backend talks to the remote school-health REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/pkg/circuitbreaker"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
)

type Config struct {
	BaseURL string
	// Timeout applies to the whole request. Zero leaves the transport default.
	Timeout time.Duration
	Breaker circuitbreaker.Settings
	// MaxImageBytes caps binary responses.
	MaxImageBytes int64
}

// Client is safe for concurrent use. It never retries.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	maxImage int64
}

func NewClient(cfg Config, m *metrics.Metrics, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", cfg.BaseURL)
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = circuitbreaker.DefaultSettings("school-health-backend")
	}
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = 10 << 20
	}
	return &Client{
		baseURL:  base,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  circuitbreaker.NewCircuitBreaker(cfg.Breaker),
		metrics:  m,
		logger:   logger.With().Str("component", "backend").Logger(),
		maxImage: maxImage,
	}, nil
}

// Ping fails while the breaker is open. It does not call the backend.
func (c *Client) Ping(context.Context) error {
	if state := c.breaker.State(); state == "open" {
		return fmt.Errorf("backend circuit breaker is %s", state)
	}
	return nil
}

type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	actor       model.ActorContext
}

type response struct {
	status      int
	contentType string
	body        []byte
}

// do sends one request. Any non-2xx answer is returned as *errors.AppError.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	start := time.Now()
	var resp *response

	err := c.breaker.Execute(func() error {
		var err error
		resp, err = c.send(ctx, r)
		return err
	})

	outcome := "ok"
	if err != nil {
		if circuitbreaker.Open(err) {
			err = errors.Transport(err)
		}
		outcome = outcomeOf(err)
		c.logger.Warn().Err(err).Str("operation", r.op).Str("path", r.path).Msg("backend call failed")
	}
	if c.metrics != nil {
		c.metrics.BackendRequests.WithLabelValues(r.op, outcome).Inc()
		c.metrics.BackendLatency.WithLabelValues(r.op).Observe(time.Since(start).Seconds())
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, r request) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL.String()+r.path, r.body)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to build request: %w", err))
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json, image/*")
	if !r.actor.Anonymous() {
		req.Header.Set("Authorization", "Bearer "+r.actor.Token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &circuitbreaker.Failure{Err: errors.Transport(err)}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxImage+1))
	if err != nil {
		return nil, &circuitbreaker.Failure{Err: errors.Transport(fmt.Errorf("failed to read response: %w", err))}
	}
	if int64(len(body)) > c.maxImage {
		return nil, errors.Server(res.StatusCode, "response exceeds the size limit")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		appErr := errors.Server(res.StatusCode, serverMessage(body))
		if res.StatusCode >= 500 {
			return nil, &circuitbreaker.Failure{Err: appErr}
		}
		return nil, appErr
	}

	return &response{
		status:      res.StatusCode,
		contentType: res.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, actor model.ActorContext, op, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.NewInternal(fmt.Errorf("failed to encode %s request: %w", op, err))
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, request{op: op, method: method, path: path, body: body, contentType: contentType, actor: actor})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := decode(resp.body, out); err != nil {
		return errors.Server(resp.status, fmt.Sprintf("unexpected %s response from server", op))
	}
	return nil
}

func (c *Client) doMultipart(ctx context.Context, actor model.ActorContext, op, path, field string, file model.Evidence) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, file.Filename)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to build upload: %w", err))
	}
	if _, err := part.Write(file.Data); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to build upload: %w", err))
	}
	if err := w.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to build upload: %w", err))
	}

	_, err = c.do(ctx, request{op: op, method: http.MethodPost, path: path, body: &buf, contentType: w.FormDataContentType(), actor: actor})
	return err
}

func (c *Client) doBinary(ctx context.Context, actor model.ActorContext, op, path string) (*model.Image, error) {
	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: path, actor: actor})
	if err != nil {
		return nil, err
	}
	return &model.Image{ContentType: resp.contentType, Data: resp.body}, nil
}

// decode accepts a bare JSON value or one wrapped in {"data": ...}.
func decode(body []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
			return json.Unmarshal(env.Data, out)
		}
	}
	return json.Unmarshal(trimmed, out)
}

// serverMessage extracts the backend's own explanation from an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func outcomeOf(err error) string {
	switch errors.CodeOf(err) {
	case errors.ErrTransport:
		return "transport_error"
	case errors.ErrNotFound:
		return "not_found"
	case errors.ErrForbidden, errors.ErrUnauthorized:
		return "denied"
	case errors.ErrServer:
		return "server_error"
	}
	return "error"
}

func escape(id string) string {
	return url.PathEscape(id)
}

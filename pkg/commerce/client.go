package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
)

const (
	TokenHeader       = "Token"
	IdempotencyHeader = "Idempotency-Key"

	defaultTimeout           = 15 * time.Second
	responseReadLimit  int64 = 4 << 20
	errorBodyReadLimit int64 = 16 << 10
)

var errBaseURLRequired = errors.New("commerce backend base url is required")

// Client talks to the upstream commerce REST API. One client serves one base
// URL; the customer API and the delivery-agent API each get their own.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.Storefront
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithMetrics records upstream latency per operation.
func WithMetrics(m *metrics.Storefront) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// BaseURL returns the root every request path is joined onto.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// File is a single multipart attachment.
type File struct {
	FieldName string
	FileName  string
	Content   []byte
}

// Request describes one upstream call.
type Request struct {
	// Operation names the call in metrics and errors, e.g. "orders.checkout".
	Operation string
	Method    string
	Path      string
	Body      any
	File      *File
	Header    http.Header
}

// Do executes req on behalf of session. Non-2xx responses are mapped onto
// pkg/errors codes with the upstream message preserved.
func (c *Client) Do(ctx context.Context, session Session, req Request) (*Response, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "commerce client not configured")
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("encode %s request", req.Operation))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.buildURL(req.Path), body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", req.Operation))
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set(TokenHeader, session.Token)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	started := c.now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveUpstream(req.Operation, 0, time.Since(started))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s: commerce backend unreachable", req.Operation))
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.ObserveUpstream(req.Operation, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, rejection(req.Operation, resp.StatusCode, raw)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s: read response", req.Operation))
	}
	return &Response{Status: resp.StatusCode, Body: raw, operation: req.Operation}, nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}

func encodeBody(req Request) (io.Reader, string, error) {
	if req.File != nil {
		return encodeMultipart(*req.File, req.Body)
	}
	if req.Body == nil {
		return nil, "", nil
	}
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(payload), "application/json", nil
}

func encodeMultipart(file File, fields any) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if values, ok := fields.(map[string]string); ok {
		for k, v := range values {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
	}

	field := file.FieldName
	if field == "" {
		field = "file"
	}
	name := file.FileName
	if name == "" {
		name = "upload"
	}
	detected := mimetype.Detect(file.Content)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	header.Set("Content-Type", detected.String())
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

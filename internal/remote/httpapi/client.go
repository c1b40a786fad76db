package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/roach88/calcsync/internal/remote"
)

// Client implements remote.Service and remote.MetadataSource against a
// server built by NewHandler.
type Client struct {
	base    string
	http    *http.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetries sets how many times a failed read is retried. Writes are
// never retried. Negative values mean no retries.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.retries = max(n, 0)
	}
}

// WithBackoff sets the delay before the first retry. Each further retry
// doubles it. Non-positive durations are ignored.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithClientLogger sets the logger used for retry warnings.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		retries: 2,
		backoff: 100 * time.Millisecond,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ remote.Service        = (*Client)(nil)
	_ remote.MetadataSource = (*Client)(nil)
)

func (c *Client) Drilldown(ctx context.Context, category string, selection []remote.Pair) (remote.DrillResult, error) {
	var res remote.DrillResult
	err := c.read(ctx, http.MethodPost, "/drilldown", drilldownRequest{Category: category, Selection: selection}, &res)
	return res, err
}

func (c *Client) GetOrCreateContainer(ctx context.Context) (string, error) {
	var res idResponse
	if err := c.write(ctx, http.MethodPost, "/containers", nil, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) CreateItem(ctx context.Context, containerID, category string, key []remote.Pair, values map[string]string, opts remote.ItemOptions) (string, error) {
	req := createRequest{
		Category: category,
		Key:      key,
		Values:   values,
		Name:     opts.Name,
		Metadata: opts.Metadata,
	}
	var res idResponse
	if err := c.write(ctx, http.MethodPost, itemsPath(containerID), req, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) GetItem(ctx context.Context, ref remote.ItemRef) (remote.Item, error) {
	var item remote.Item
	err := c.read(ctx, http.MethodGet, itemPath(ref), nil, &item)
	return item, err
}

func (c *Client) UpdateItem(ctx context.Context, ref remote.ItemRef, values map[string]string, opts remote.ItemOptions) error {
	req := updateRequest{Values: values, Name: opts.Name, Metadata: opts.Metadata}
	return c.write(ctx, http.MethodPut, itemPath(ref), req, nil)
}

func (c *Client) DeleteItem(ctx context.Context, ref remote.ItemRef) error {
	return c.write(ctx, http.MethodDelete, itemPath(ref), nil, nil)
}

func (c *Client) ItemMetadata(ctx context.Context, ref remote.ItemRef) (map[string]string, error) {
	var md map[string]string
	err := c.read(ctx, http.MethodGet, itemPath(ref)+"/metadata", nil, &md)
	return md, err
}

// ListItems returns the refs of every item in a container.
func (c *Client) ListItems(ctx context.Context, containerID string) ([]remote.ItemRef, error) {
	var refs []remote.ItemRef
	err := c.read(ctx, http.MethodGet, itemsPath(containerID), nil, &refs)
	return refs, err
}

func itemsPath(containerID string) string {
	return "/containers/" + url.PathEscape(containerID) + "/items"
}

func itemPath(ref remote.ItemRef) string {
	return itemsPath(ref.ContainerID) + "/" + url.PathEscape(ref.ID)
}

// read performs a request that has no side effects, retrying on
// unavailability with exponential backoff.
func (c *Client) read(ctx context.Context, method, path string, body, out any) error {
	b := retry.WithMaxRetries(uint64(c.retries), retry.NewExponential(c.backoff))
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.do(ctx, method, path, body, out)
		if !remote.IsUnavailable(err) {
			return err
		}
		if attempt <= c.retries {
			c.logger.WarnContext(ctx, "retrying remote read",
				"method", method, "path", path, "attempt", attempt, "error", err)
		}
		return retry.RetryableError(err)
	})
	if err != nil && ctx.Err() != nil && !remote.IsUnavailable(err) {
		return remote.Unavailablef("%s %s: %v", method, path, ctx.Err())
	}
	return err
}

func (c *Client) write(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return remote.Unavailablef("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return remote.Unavailablef("%s %s: decode response: %v", method, path, err)
	}
	return nil
}

// statusError classifies a non-2xx response. Only 404 means not found;
// everything else is the service failing the request.
func statusError(method, path string, resp *http.Response) error {
	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if resp.StatusCode == http.StatusNotFound {
		return remote.NotFoundf("%s %s: %s", method, path, stripSentinel(msg, remote.ErrNotFound))
	}
	return remote.Unavailablef("%s %s: %d %s", method, path, resp.StatusCode, stripSentinel(msg, remote.ErrUnavailable))
}

// stripSentinel drops a leading "<sentinel>: " the server already
// rendered, so wrapped messages do not repeat it.
func stripSentinel(msg string, sentinel error) string {
	if s, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return s
	}
	return msg
}

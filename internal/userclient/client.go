// Package userclient talks to the users service on behalf of the posts service.
package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zhirschtritt/userposts/internal/domain"
)

var _ domain.UserDirectory = new(Client)

type Options struct {
	LookupTimeout time.Duration
	HealthTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

func (o *Options) defaults() {
	if o.LookupTimeout == 0 {
		o.LookupTimeout = 5 * time.Second
	}
	if o.HealthTimeout == 0 {
		o.HealthTimeout = 3 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type Client struct {
	baseURL string
	opts    Options
	logger  *slog.Logger
}

func New(baseURL string, opts Options) (*Client, error) {
	opts.defaults()

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid users service url %q: %w", baseURL, err)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		logger:  opts.Logger.With("component", "userclient"),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type userResponse struct {
	User *domain.UserSnapshot `json:"user"`
}

// Lookup performs a single GET /users/{id} bounded by the lookup timeout.
// 200 yields the snapshot, 404 yields domain.ErrUserNotFound, anything else
// (other statuses, timeouts, transport errors, bad bodies) yields
// domain.ErrUsersServiceUnavailable.
func (c *Client) Lookup(ctx context.Context, id int64) (*domain.UserSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.LookupTimeout)
	defer cancel()

	c.logger.Debug("verifying user with users service", "user_id", id)

	resp, err := c.get(ctx, "/users/"+strconv.FormatInt(id, 10))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("users service lookup timed out", "user_id", id, "timeout", c.opts.LookupTimeout)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUsersServiceUnavailable, err)
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrUserNotFound
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrUsersServiceUnavailable, resp.StatusCode)
	}

	var body userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode user: %w", domain.ErrUsersServiceUnavailable, err)
	}
	if body.User == nil {
		return nil, fmt.Errorf("%w: response has no user", domain.ErrUsersServiceUnavailable)
	}

	return body.User, nil
}

// CheckHealth probes GET /health bounded by the health timeout.
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HealthTimeout)
	defer cancel()

	resp, err := c.get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUsersServiceUnavailable, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", domain.ErrUsersServiceUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.opts.HTTPClient.Do(req)
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

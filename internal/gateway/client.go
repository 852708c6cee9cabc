package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

const maxBodyBytes = 1 << 20

// Client talks to the storefront cart endpoints. It keeps no cart state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	refresher  TokenRefresher
	onToken    func(token string)
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithTokenRefresher enables one refresh-and-retry on 401/403. onToken, when
// set, receives every refreshed credential.
func WithTokenRefresher(r TokenRefresher, onToken func(token string)) Option {
	return func(c *Client) {
		c.refresher = r
		c.onToken = onToken
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll returns the server-side cart of the identity.
func (c *Client) FetchAll(ctx context.Context, id auth.Identity) ([]models.CartLine, error) {
	form := url.Values{}
	form.Set("userid", id.UserID)

	env, err := c.post(ctx, id, "/cart", form)
	if err != nil {
		return nil, err
	}
	return parseLines(env.Data, logging.FromContext(ctx, c.log)), nil
}

// UpsertLine adjusts the server quantity by delta, creating the line when it
// is absent. delta is never an absolute target.
func (c *Client) UpsertLine(ctx context.Context, id auth.Identity, productID, variantID string, delta int) error {
	if delta == 0 {
		return ErrInvalidDelta
	}
	form := url.Values{}
	form.Set("userid", id.UserID)
	form.Set("productid", productID)
	form.Set("variantid", variantID)
	form.Set("qty", strconv.Itoa(delta))

	_, err := c.post(ctx, id, "/cart", form)
	return err
}

// RemoveLine deletes a server line regardless of its quantity.
func (c *Client) RemoveLine(ctx context.Context, id auth.Identity, serverLineID, variantID string) error {
	form := url.Values{}
	form.Set("userid", id.UserID)
	form.Set("cartid", serverLineID)
	form.Set("variantid", variantID)

	_, err := c.post(ctx, id, "/delete-cart", form)
	return err
}

func (c *Client) post(ctx context.Context, id auth.Identity, path string, form url.Values) (*envelope, error) {
	env, err := c.do(ctx, id.Token, path, form)
	if err == nil || c.refresher == nil || !errors.Is(err, ErrAuth) {
		return env, err
	}

	l := logging.FromContext(ctx, c.log).With("path", path)
	token, rErr := c.refresher.Refresh(ctx)
	if rErr != nil {
		l.Warn("token_refresh_error", "error", rErr)
		return nil, err
	}
	if c.onToken != nil {
		c.onToken(token)
	}
	l.Info("token_refreshed")
	return c.do(ctx, token, path, form)
}

func (c *Client) do(ctx context.Context, token, path string, form url.Values) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: do request: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	return decodeEnvelope(body)
}

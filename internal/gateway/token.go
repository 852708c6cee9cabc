package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenRefresher obtains a fresh bearer credential.
type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// ValidateRefresher exchanges the storefront API credentials for a token at
// the backend's validate endpoint. Concurrent refreshes share one request.
type ValidateRefresher struct {
	URL      string
	Email    string
	Password string

	httpClient *http.Client
	group      singleflight.Group
}

func NewValidateRefresher(validateURL, email, password string) *ValidateRefresher {
	return &ValidateRefresher{
		URL:        validateURL,
		Email:      email,
		Password:   password,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *ValidateRefresher) Refresh(ctx context.Context) (string, error) {
	v, err, _ := r.group.Do("validate", func() (any, error) {
		return r.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *ValidateRefresher) fetch(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("email", r.Email)
	form.Set("password", r.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("validate failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("no token in validate response")
	}
	return result.Token, nil
}

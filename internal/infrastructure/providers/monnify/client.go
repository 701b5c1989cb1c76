// Package monnify implements the bill-pay gateway: OAuth-style login with a
// shared token cache, biller/product catalogs, customer validation, vend
// with requery, and reserved-account provisioning.
package monnify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
)

const (
	// requestTimeout bounds every provider call. The user is holding a
	// reservation while we wait; past this point the purchase aborts and
	// the hold is released.
	requestTimeout = 12 * time.Second

	// tokenCacheKey is shared by the API and worker processes through redis
	// so the fleet re-authenticates once per expiry, not once per process.
	tokenCacheKey = "monnify:access_token"

	// tokenSafetyMargin is shaved off the advertised expiry so a token never
	// dies mid-request.
	tokenSafetyMargin = 60 * time.Second

	providerName = "MONNIFY"
)

// Config holds the Monnify connection settings.
type Config struct {
	BaseURL      string
	APIKey       string
	SecretKey    string
	ContractCode string
}

// Client is the Monnify HTTP client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     ports.TokenCache
	logger     *slog.Logger
}

// NewClient creates a Monnify client.
func NewClient(cfg Config, tokens ports.TokenCache, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		tokens:     tokens,
		logger:     logger.With("provider", "monnify"),
	}
}

// loginResponse is the auth endpoint's body.
type loginResponse struct {
	RequestSuccessful bool `json:"requestSuccessful"`
	ResponseBody      struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	} `json:"responseBody"`
	ResponseMessage string `json:"responseMessage"`
}

// accessToken returns a valid bearer token, from cache when possible.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, err := c.tokens.Get(ctx, tokenCacheKey); err == nil && token != "" {
		return token, nil
	} else if err != nil {
		c.logger.WarnContext(ctx, "token cache read failed, re-authenticating", "error", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/v1/auth/login", http.NoBody)
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.APIKey + ":" + c.cfg.SecretKey))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.transportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, body)
	}

	var login loginResponse
	if err := json.Unmarshal(body, &login); err != nil || !login.RequestSuccessful {
		return "", domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			"authentication response not understood", err)
	}

	ttl := time.Duration(login.ResponseBody.ExpiresIn)*time.Second - tokenSafetyMargin
	if ttl < time.Minute {
		ttl = time.Minute
	}
	if err := c.tokens.Set(ctx, tokenCacheKey, login.ResponseBody.AccessToken, ttl); err != nil {
		c.logger.WarnContext(ctx, "token cache write failed", "error", err)
	}
	return login.ResponseBody.AccessToken, nil
}

// apiResponse is the generic Monnify envelope.
type apiResponse struct {
	RequestSuccessful bool            `json:"requestSuccessful"`
	ResponseMessage   string          `json:"responseMessage"`
	ResponseCode      string          `json:"responseCode"`
	ResponseBody      json.RawMessage `json:"responseBody"`
}

// call issues an authenticated request and decodes the envelope. A 401
// invalidates the cached token and retries once with a fresh login.
func (c *Client) call(ctx context.Context, method, path string, payload interface{}) (*apiResponse, error) {
	resp, status, err := c.doOnce(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		_ = c.tokens.Set(ctx, tokenCacheKey, "", time.Second)
		resp, status, err = c.doOnce(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
	}

	if status >= 500 {
		return nil, domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			resp.ResponseMessage, nil)
	}
	if status >= 400 || !resp.RequestSuccessful {
		reason := resp.ResponseMessage
		if reason == "" {
			reason = fmt.Sprintf("request rejected with status %d", status)
		}
		return nil, domainErrors.NewProviderError(providerName, domainErrors.ProviderRejected, reason, nil)
	}
	return resp, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload interface{}) (*apiResponse, int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, c.transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, c.transportError(err)
	}

	var envelope apiResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, resp.StatusCode, domainErrors.NewProviderError(
				providerName, domainErrors.ProviderFailed, "response not understood", err)
		}
	}
	return &envelope, resp.StatusCode, nil
}

// transportError classifies connection-level failures.
func (c *Client) transportError(err error) error {
	reason := "provider unreachable"
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		reason = fmt.Sprintf("provider did not answer within %s", requestTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		reason = fmt.Sprintf("provider did not answer within %s", requestTimeout)
	}
	return domainErrors.NewProviderError(providerName, domainErrors.ProviderUnreachable, reason, err)
}

func (c *Client) statusError(status int, body []byte) error {
	kind := domainErrors.ProviderRejected
	if status >= 500 {
		kind = domainErrors.ProviderFailed
	}
	return domainErrors.NewProviderError(providerName, kind,
		fmt.Sprintf("status %d: %s", status, truncate(string(body), 200)), nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

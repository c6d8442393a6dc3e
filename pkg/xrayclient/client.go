package xrayclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/constants"
	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
)

// Client represents a 3x-ui panel API client for one host
type Client struct {
	httpClient  *resty.Client
	host        models.Host
	cookieCache *cache.Cache
	logger      *logrus.Logger
}

// Options tunes the HTTP behaviour of a Client
type Options struct {
	Timeout     time.Duration
	RetryCount  int
	InsecureTLS bool
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		Timeout:     constants.DefaultTimeout * time.Second,
		RetryCount:  constants.DefaultRetryCount,
		InsecureTLS: true,
	}
}

// APIResponse represents the response envelope of the panel API
type APIResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// NewClient creates a new panel API client
func NewClient(host models.Host, opts Options, logger *logrus.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(host.URL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(constants.DefaultRetryWaitTime * time.Second).
		SetRetryMaxWaitTime(constants.DefaultRetryMaxWaitTime * time.Second).
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: opts.InsecureTLS})

	return &Client{
		httpClient:  httpClient,
		host:        host,
		cookieCache: cache.New(constants.CacheExpiration*time.Minute, constants.CacheCleanupInterval*time.Minute),
		logger:      logger,
	}
}

// Host returns the host this client talks to
func (c *Client) Host() models.Host {
	return c.host
}

// Login logs in to the panel and caches the session cookie
func (c *Client) Login(ctx context.Context) error {
	_, err := c.session(ctx)
	return err
}

// session returns the cached session cookies, logging in when none are cached
func (c *Client) session(ctx context.Context) ([]*http.Cookie, error) {
	if cached, found := c.cookieCache.Get(constants.SessionCacheKey); found {
		if cookies, ok := cached.([]*http.Cookie); ok && len(cookies) > 0 {
			return cookies, nil
		}
	}

	c.logger.Debugf("Logging in to panel %s at %s as %s", c.host.Name, c.host.URL, c.host.Username)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"username": c.host.Username,
			"password": c.host.Password,
		}).
		Post(constants.LoginPath)
	if err != nil {
		return nil, c.unreachable("login", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, &apperrors.AuthError{Host: c.host.Name, Status: resp.StatusCode(), Message: string(resp.Body())}
	case resp.StatusCode() != http.StatusOK:
		return nil, c.unreachable("login", fmt.Errorf("unexpected status code %d", resp.StatusCode()))
	}

	var apiResp APIResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, c.unreachable("login", fmt.Errorf("failed to parse login response: %w", err))
	}

	if !apiResp.Success {
		return nil, &apperrors.AuthError{Host: c.host.Name, Status: resp.StatusCode(), Message: apiResp.Msg}
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, &apperrors.AuthError{Host: c.host.Name, Status: resp.StatusCode(), Message: "no session cookie received from server"}
	}

	c.cookieCache.Set(constants.SessionCacheKey, cookies, cache.DefaultExpiration)
	c.logger.Infof("Logged in to panel %s", c.host.Name)
	return cookies, nil
}

// ListInbounds returns every inbound of the panel with its clients
func (c *Client) ListInbounds(ctx context.Context) ([]models.Inbound, error) {
	apiResp, err := c.call(ctx, "list inbounds", http.MethodGet, constants.InboundsListPath, nil)
	if err != nil {
		return nil, err
	}

	if !apiResp.Success {
		return nil, &apperrors.RemoteRejectedError{Host: c.host.Name, Operation: "list inbounds", Status: http.StatusOK, Message: apiResp.Msg}
	}

	var inbounds []models.Inbound
	if len(apiResp.Obj) == 0 || string(apiResp.Obj) == "null" {
		return inbounds, nil
	}
	if err := json.Unmarshal(apiResp.Obj, &inbounds); err != nil {
		return nil, c.unreachable("list inbounds", fmt.Errorf("malformed inbounds payload: %w", err))
	}

	return inbounds, nil
}

// UpdateClient replaces one client entry of an inbound
func (c *Client) UpdateClient(ctx context.Context, inboundID int, clientID string, client map[string]any) error {
	settings := map[string]any{
		"clients": []map[string]any{client},
	}

	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	requestBody := map[string]any{
		"id":       inboundID,
		"settings": string(settingsJSON),
	}

	c.logger.Debugf("Updating client %s on inbound %d of %s", clientID, inboundID, c.host.Name)

	path := fmt.Sprintf(constants.UpdateClientPath, url.PathEscape(clientID))
	apiResp, err := c.call(ctx, "update client", http.MethodPost, path, requestBody)
	if err != nil {
		return err
	}

	if !apiResp.Success {
		return &apperrors.RemoteRejectedError{Host: c.host.Name, Operation: "update client", Status: http.StatusOK, Message: apiResp.Msg}
	}

	return nil
}

// call performs an authenticated request, re-logging in once on 401
func (c *Client) call(ctx context.Context, operation, method, path string, body any) (*APIResponse, error) {
	for attempt := 0; ; attempt++ {
		cookies, err := c.session(ctx)
		if err != nil {
			return nil, err
		}

		req := c.httpClient.R().
			SetContext(ctx).
			SetCookies(cookies)
		if body != nil {
			req.SetHeader("Content-Type", "application/json").SetBody(body)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, c.unreachable(operation, err)
		}

		if resp.StatusCode() == http.StatusUnauthorized && attempt == 0 {
			c.logger.Debugf("Session for %s expired, logging in again", c.host.Name)
			c.cookieCache.Delete(constants.SessionCacheKey)
			continue
		}

		switch {
		case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
			return nil, &apperrors.AuthError{Host: c.host.Name, Status: resp.StatusCode(), Message: string(resp.Body())}
		case resp.StatusCode() >= http.StatusInternalServerError:
			return nil, c.unreachable(operation, fmt.Errorf("status code %d", resp.StatusCode()))
		case resp.StatusCode() != http.StatusOK:
			return nil, &apperrors.RemoteRejectedError{Host: c.host.Name, Operation: operation, Status: resp.StatusCode(), Message: string(resp.Body())}
		}

		var apiResp APIResponse
		if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
			return nil, c.unreachable(operation, fmt.Errorf("failed to parse response: %w", err))
		}

		return &apiResp, nil
	}
}

// Logout drops the cached session
func (c *Client) Logout() {
	c.cookieCache.Delete(constants.SessionCacheKey)
}

func (c *Client) unreachable(operation string, err error) error {
	return &apperrors.HostUnreachableError{Host: c.host.Name, Operation: operation, Err: err}
}

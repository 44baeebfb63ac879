package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const msaScope = "XboxLive.signin offline_access"

// MSAClient speaks the Microsoft OAuth device-code and refresh grants.
type MSAClient struct {
	transport *Client
	endpoints Endpoints
	clientID  string

	// defaultInterval is used when the device code response has none.
	defaultInterval time.Duration
}

// NewMSAClient creates an OAuth client for clientID.
func NewMSAClient(transport *Client, endpoints Endpoints, clientID string) *MSAClient {
	return &MSAClient{
		transport:       transport,
		endpoints:       endpoints,
		clientID:        clientID,
		defaultInterval: 5 * time.Second,
	}
}

type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	Message         string `json:"message"`
}

type MSATokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// OAuthError is an error payload from the token endpoint.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// ErrDeviceCodeExpired is returned when the user never completed the
// device-code sign in.
var ErrDeviceCodeExpired = errors.New("timeout waiting for user authorization")

// ErrMalformedResponse is returned when Microsoft answers with success
// but the body is not a usable token or device code.
var ErrMalformedResponse = errors.New("malformed response")

func (c *MSAClient) postForm(ctx context.Context, endpoint string, data url.Values) (*Response, error) {
	return c.transport.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Body:   []byte(data.Encode()),
	})
}

// RequestDeviceCode initiates the device code flow
func (c *MSAClient) RequestDeviceCode(ctx context.Context) (*DeviceCodeResponse, error) {
	resp, err := c.postForm(ctx, c.endpoints.MSADeviceCode, url.Values{
		"client_id": {c.clientID},
		"scope":     {msaScope},
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("device code request failed (%d): %w", resp.Status, parseOAuthError(resp))
	}

	var result DeviceCodeResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decoding device code: %w: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}

// PollForToken polls Microsoft for the token after user authorizes
func (c *MSAClient) PollForToken(ctx context.Context, dc *DeviceCodeResponse) (*MSATokenResponse, error) {
	data := url.Values{
		"client_id":   {c.clientID},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {dc.DeviceCode},
	}
	interval := time.Duration(dc.Interval) * time.Second
	if interval == 0 {
		interval = c.defaultInterval
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)
	wait := time.Duration(0)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait = interval

		resp, err := c.postForm(ctx, c.endpoints.MSAToken, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue // Network error, retry
		}
		if resp.OK() {
			return decodeMSAToken(resp)
		}

		oauthErr := parseOAuthError(resp)
		switch oauthErr.Code {
		case "authorization_pending":
			continue
		case "slow_down":
			interval += 5 * time.Second
			continue
		}
		return nil, oauthErr
	}
	return nil, ErrDeviceCodeExpired
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *MSAClient) RefreshToken(ctx context.Context, refreshToken string) (*MSATokenResponse, error) {
	resp, err := c.postForm(ctx, c.endpoints.MSAToken, url.Values{
		"client_id":     {c.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {msaScope},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, parseOAuthError(resp)
	}
	return decodeMSAToken(resp)
}

func decodeMSAToken(resp *Response) (*MSATokenResponse, error) {
	var result MSATokenResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decoding token: %w: %v", ErrMalformedResponse, err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("decoding token: %w: access_token missing", ErrMalformedResponse)
	}
	return &result, nil
}

func parseOAuthError(resp *Response) *OAuthError {
	var e OAuthError
	if err := json.Unmarshal(resp.Body, &e); err != nil || e.Code == "" {
		return &OAuthError{Code: fmt.Sprintf("http_%d", resp.Status)}
	}
	return &e
}

// Package api contains the HTTP transport and wire types for the identity
// providers: Microsoft OAuth, Xbox Live and Minecraft services.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Endpoints lists every URL the pipeline talks to.
type Endpoints struct {
	MSADeviceCode  string
	MSAToken       string
	XboxUserAuth   string
	XSTSAuthorize  string
	MinecraftLogin string
	Profile        string
	ProfileSkins   string
	ProfileCape    string
	Entitlements   string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		MSADeviceCode:  "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode",
		MSAToken:       "https://login.microsoftonline.com/consumers/oauth2/v2.0/token",
		XboxUserAuth:   "https://user.auth.xboxlive.com/user/authenticate",
		XSTSAuthorize:  "https://xsts.auth.xboxlive.com/xsts/authorize",
		MinecraftLogin: "https://api.minecraftservices.com/authentication/login_with_xbox",
		Profile:        "https://api.minecraftservices.com/minecraft/profile",
		ProfileSkins:   "https://api.minecraftservices.com/minecraft/profile/skins",
		ProfileCape:    "https://api.minecraftservices.com/minecraft/profile/capes/active",
		Entitlements:   "https://api.minecraftservices.com/entitlements/mcstore",
	}
}

// EndpointsAt returns the production paths rooted at base. Used to run
// the pipeline against a local fake.
func EndpointsAt(base string) Endpoints {
	return Endpoints{
		MSADeviceCode:  base + "/consumers/oauth2/v2.0/devicecode",
		MSAToken:       base + "/consumers/oauth2/v2.0/token",
		XboxUserAuth:   base + "/user/authenticate",
		XSTSAuthorize:  base + "/xsts/authorize",
		MinecraftLogin: base + "/authentication/login_with_xbox",
		Profile:        base + "/minecraft/profile",
		ProfileSkins:   base + "/minecraft/profile/skins",
		ProfileCape:    base + "/minecraft/profile/capes/active",
		Entitlements:   base + "/entitlements/mcstore",
	}
}

// Request is one outgoing HTTP exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a completed exchange. Non-2xx statuses are responses, not
// errors; interpreting them is the caller's job.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	Retries int
	Logger  *slog.Logger
}

// Client is the transport shared by every provider exchange.
type Client struct {
	http   *retryablehttp.Client
	logger *slog.Logger
}

// NewClient creates a transport with retries on connection errors, 429
// and 5xx responses.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = logger
	// Hand the last response back instead of a "giving up" error so the
	// provider's error payload reaches the classifier.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Timeout = opts.Timeout

	return &Client{http: retryClient, logger: logger}
}

// Do performs the request and reads the whole body.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("provider exchange", "method", r.Method, "url", r.URL, "status", resp.StatusCode)

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// PostJSON posts v as JSON with the extra headers set.
func (c *Client) PostJSON(ctx context.Context, url string, v any, header http.Header) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPost, url, v, header)
}

// PutJSON puts v as JSON with the extra headers set.
func (c *Client) PutJSON(ctx context.Context, url string, v any, header http.Header) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPut, url, v, header)
}

func (c *Client) sendJSON(ctx context.Context, method, url string, v any, header http.Header) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return c.Do(ctx, Request{Method: method, URL: url, Header: h, Body: data})
}

// Get fetches url with the extra headers set.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url, Header: header})
}

// Delete sends a DELETE to url with the extra headers set.
func (c *Client) Delete(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, URL: url, Header: header})
}

// Bearer returns an Authorization header for token.
func Bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

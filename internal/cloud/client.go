package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 30 * time.Second

	// maxBodySize caps JSON responses and downloaded covers (16MB).
	maxBodySize = 16 << 20

	pathProfile = "/v1/user-service/my/profile"
	pathTasks   = "/v1/user-service/my/tasks"
	pathDevices = "/v1/iot-service/api/user/bind"
)

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Client.
type Options struct {
	// BaseURL is the REST API root, e.g. https://api.bambulab.com.
	BaseURL string

	// Tokens supplies the bearer token for API calls.
	Tokens oauth2.TokenSource

	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration

	Logger Logger
}

// Client calls the printer vendor's cloud REST API.
//
// API calls carry the account's bearer token. Cover downloads use a plain
// client: covers are served from pre-signed storage URLs that reject extra
// authorization.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	baseURL *url.URL
	api     *http.Client
	plain   *http.Client
	logger  Logger
}

// New creates a client.
//
// Returns:
//   - *Client: Ready for use
//   - error: ErrMissingToken, or a parse error for BaseURL
func New(opts Options) (*Client, error) {
	if opts.Tokens == nil {
		return nil, ErrMissingToken
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("cloud: invalid base url %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	api := oauth2.NewClient(context.Background(), opts.Tokens)
	api.Timeout = timeout

	return &Client{
		baseURL: base,
		api:     api,
		plain:   &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// NewStatic is a convenience wrapper for a fixed access token.
func NewStatic(baseURL, accessToken string, timeout time.Duration, logger Logger) (*Client, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}
	return New(Options{
		BaseURL: baseURL,
		Tokens:  StaticTokens(accessToken),
		Timeout: timeout,
		Logger:  logger,
	})
}

// StaticTokens returns a token source that always yields accessToken as a
// bearer token.
func StaticTokens(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
}

// FetchBinary downloads url and returns the body.
//
// Returns:
//   - []byte: Response body
//   - error: ErrHTTP for non-2xx, or the transport error
func (c *Client) FetchBinary(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrHTTP, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

// getJSON performs an authenticated GET and decodes the body into out.
// A non-empty "error" field in the body becomes ErrAPI.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	c.logger.Debug("cloud request",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if msg := apiError(body); msg != "" {
		return fmt.Errorf("%w: %s", ErrAPI, msg)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: GET %s: %s", ErrHTTP, path, resp.Status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// apiError extracts the body's "error" field, if any.
func apiError(body []byte) string {
	var envelope struct {
		Error any `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return ""
	}
	switch v := envelope.Error.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

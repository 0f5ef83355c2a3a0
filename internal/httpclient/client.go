// Package httpclient fetches HLS playlists over HTTP with transparent
// decompression and credential-safe logging.
//
// Each call makes exactly one attempt. Retrying is the loader's job: it
// consults the player's load error policy between attempts.
package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Common errors returned by the client.
var (
	ErrRequestTimeout = errors.New("request timeout")
	ErrBodyTooLarge   = errors.New("response body too large")
)

// Default configuration values.
const (
	DefaultTimeout              = 15 * time.Second
	DefaultMaxBodyBytes         = 16 << 20
	DefaultAcceptEncodingHeader = "gzip, deflate, br"
	DefaultUserAgentHeader      = "skyplayer/1.0"
)

// HTTP header constants.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderContentType     = "Content-Type"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// NotFound reports whether the server said the resource does not exist.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout bounds a single request including the body read.
	Timeout time.Duration

	// MaxBodyBytes caps how much of a response is read.
	MaxBodyBytes int64

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Logger is the structured logger for request/response logging.
	Logger *slog.Logger

	// EnableDecompression enables automatic response decompression.
	EnableDecompression bool

	// BaseClient is the underlying http.Client to use.
	// If nil, a default client is created.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		MaxBodyBytes:        DefaultMaxBodyBytes,
		UserAgent:           DefaultUserAgentHeader,
		Logger:              slog.Default(),
		EnableDecompression: true,
	}
}

// Client fetches documents over HTTP.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a client with the given configuration.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	baseClient := cfg.BaseClient
	if baseClient == nil {
		// Cross-protocol redirects are followed by default.
		baseClient = &http.Client{}
	}

	return &Client{
		config: cfg,
		client: baseClient,
		logger: cfg.Logger,
	}
}

// NewWithDefaults creates a new client with default configuration.
func NewWithDefaults() *Client {
	return New(DefaultConfig())
}

// Response is a fully read HTTP response.
type Response struct {
	// URL is the final URL after redirects; relative playlist URIs resolve
	// against it.
	URL         *url.URL
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetch GETs rawURL and reads the whole body. Non-2xx statuses return a
// *StatusError; a timeout returns an error wrapping ErrRequestTimeout.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	if c.config.EnableDecompression {
		req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		err = classify(ctx, err)
		c.logger.Debug("request failed",
			slog.String("url", obfuscateURL(req.URL)),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("unexpected status",
			slog.String("url", obfuscateURL(req.URL)),
			slog.Int("status", resp.StatusCode))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: obfuscateURL(req.URL)}
	}

	body := io.Reader(resp.Body)
	if c.config.EnableDecompression {
		rc, err := c.wrapDecompression(resp)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		body = rc
	}

	data, err := io.ReadAll(io.LimitReader(body, c.config.MaxBodyBytes+1))
	if err != nil {
		return nil, classify(ctx, err)
	}
	if int64(len(data)) > c.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, c.config.MaxBodyBytes)
	}

	c.logger.Debug("request completed",
		slog.String("url", obfuscateURL(resp.Request.URL)),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)))

	return &Response{
		URL:         resp.Request.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get(HeaderContentType),
		Body:        data,
	}, nil
}

// IsTimeout reports whether err is a request or dial timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrRequestTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrRequestTimeout, err)
	}
	return err
}

// wrapDecompression wraps the response body with appropriate decompression.
func (c *Client) wrapDecompression(resp *http.Response) (io.ReadCloser, error) {
	encoding := resp.Header.Get(HeaderContentEncoding)

	switch strings.ToLower(encoding) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil

	case EncodingGzip:
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		return reader, nil

	case EncodingDeflate:
		return flate.NewReader(resp.Body), nil

	case EncodingBrotli:
		return io.NopCloser(brotli.NewReader(resp.Body)), nil

	default:
		c.logger.Debug("unknown content encoding, returning raw body",
			slog.String("encoding", encoding))
		return io.NopCloser(resp.Body), nil
	}
}

// obfuscateURL returns a URL string with sensitive query parameters obfuscated.
func obfuscateURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	sanitized := *u
	sanitized.User = nil
	query := sanitized.Query()

	sensitiveParams := []string{
		"password", "passwd", "pass", "pwd",
		"token", "api_key", "apikey", "key",
		"secret", "auth", "authorization",
		"credential", "credentials", "signature",
	}

	for _, param := range sensitiveParams {
		if query.Has(param) {
			query.Set(param, "***")
		}
	}

	sanitized.RawQuery = query.Encode()
	return sanitized.String()
}

// Package source reads contact records from external integrations.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
)

// Request describes one GET against an external source.
type Request struct {
	URL    string
	Query  url.Values
	Header http.Header
	User   string
	Pass   string
}

// Fetcher defines the contract for retrieving raw source documents.
// This interface allows for mocking in tests and decoupling from the network layer.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (io.ReadCloser, error)
}

// HTTPFetcher implements Fetcher using the standard net/http library.
// It never retries; failures are classified for the caller's retry policy.
type HTTPFetcher struct {
	Client *http.Client
	Logger *slog.Logger
}

// NewHTTPFetcher creates a new instance of HTTPFetcher with configured timeouts.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
	}
}

// Fetch performs the request and returns the size-limited body of a 200 response.
// 401/403 map to Unauthorized, 429 to RateLimited, 5xx and transport
// failures to Unreachable. A cancelled ctx is returned as is.
func (f *HTTPFetcher) Fetch(ctx context.Context, r Request) (io.ReadCloser, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, apperror.InvalidInput("url", fmt.Sprintf("%s: %v", config.ErrInvalidURL, err))
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, apperror.InvalidInput("url", fmt.Sprintf("%s: %s", config.ErrProtocol, u.Scheme))
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	// Query parameters may carry phone numbers, keep them out of the logs.
	safeURL := u.Scheme + "://" + u.Host + u.Path

	log := f.logger().With(slog.String(config.LogKeyURL, safeURL))
	log.Debug(config.MsgFetchStart)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperror.Unexpected(config.ErrBuildRequest, err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	if r.User != "" || r.Pass != "" {
		req.SetBasicAuth(r.User, r.Pass)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperror.Unreachable(config.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		log.Warn(config.MsgBadStatus, slog.Int(config.LogKeyStatus, resp.StatusCode))
		return nil, classifyStatus(resp.StatusCode, resp.Status)
	}

	return &limitedReadCloser{
		Reader: io.LimitReader(resp.Body, config.MaxHTTPResponseSize),
		Closer: resp.Body,
	}, nil
}

func (f *HTTPFetcher) logger() *slog.Logger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompFetcher)
}

func classifyStatus(code int, status string) error {
	msg := fmt.Sprintf("%s: %s", config.ErrStatus, status)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperror.Unauthorized(msg, nil)
	case code == http.StatusTooManyRequests:
		return apperror.RateLimited(msg, nil)
	case code >= http.StatusInternalServerError:
		return apperror.Unreachable(msg, nil)
	default:
		return apperror.Unexpected(msg, nil)
	}
}

// limitedReadCloser wraps an io.Reader (Limited) and the original io.Closer.
// This ensures we can close the network connection properly while limiting the read size.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}

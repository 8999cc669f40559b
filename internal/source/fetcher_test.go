package source_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/source"
)

// TestHTTPFetcher_Fetch_Success verifies headers, query merge, basic auth and body integrity.
func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	expectedBody := "BEGIN:VCARD\nVERSION:3.0\nFN:Test\nEND:VCARD"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "Basic auth header should be present")
		assert.Equal(t, "testuser", user)
		assert.Equal(t, "securepass", pass)
		assert.Equal(t, config.UserAgent, r.Header.Get(config.HeaderUserAgent))
		assert.Equal(t, "tok", r.Header.Get(config.HeaderAccessToken))
		assert.Equal(t, "2", r.URL.Query().Get("pagina"))
		assert.Equal(t, "x", r.URL.Query().Get("keep"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(expectedBody))
	}))
	defer ts.Close()

	h := http.Header{}
	h.Set(config.HeaderAccessToken, "tok")

	rc, err := source.NewHTTPFetcher().Fetch(context.Background(), source.Request{
		URL:    ts.URL + "/clientes?keep=x",
		Query:  url.Values{"pagina": {"2"}},
		Header: h,
		User:   "testuser",
		Pass:   "securepass",
	})
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, expectedBody, string(body))
}

// TestHTTPFetcher_Fetch_Classification maps HTTP statuses onto the error taxonomy.
func TestHTTPFetcher_Fetch_Classification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       error
	}{
		{"Unauthorized", http.StatusUnauthorized, apperror.ErrUnauthorized},
		{"Forbidden", http.StatusForbidden, apperror.ErrUnauthorized},
		{"TooManyRequests", http.StatusTooManyRequests, apperror.ErrRateLimited},
		{"ServerError", http.StatusInternalServerError, apperror.ErrUnreachable},
		{"BadGateway", http.StatusBadGateway, apperror.ErrUnreachable},
		{"NotFound", http.StatusNotFound, apperror.ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer ts.Close()

			rc, err := source.NewHTTPFetcher().Fetch(context.Background(), source.Request{URL: ts.URL})

			assert.Nil(t, rc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

// TestHTTPFetcher_Fetch_Timeout ensures the client respects context deadlines.
func TestHTTPFetcher_Fetch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := source.NewHTTPFetcher().Fetch(ctx, source.Request{URL: ts.URL})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPFetcher_Fetch_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := ts.URL
	ts.Close()

	_, err := source.NewHTTPFetcher().Fetch(context.Background(), source.Request{URL: target})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUnreachable))
}

// TestHTTPFetcher_Fetch_InvalidURL ensures malformed URLs are caught early.
func TestHTTPFetcher_Fetch_InvalidURL(t *testing.T) {
	_, err := source.NewHTTPFetcher().Fetch(context.Background(), source.Request{URL: string([]byte{0x7f})})

	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrInvalidURL)
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))
}

// TestHTTPFetcher_Fetch_ProtocolSecurity enforces HTTP/HTTPS only.
func TestHTTPFetcher_Fetch_ProtocolSecurity(t *testing.T) {
	_, err := source.NewHTTPFetcher().Fetch(context.Background(), source.Request{URL: "ftp://example.com/file.vcf"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrProtocol)
}

func TestHTTPFetcher_Fetch_LogsToInjectedLogger(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	var logs bytes.Buffer
	f := source.NewHTTPFetcher()
	f.Logger = slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := f.Fetch(context.Background(), source.Request{
		URL:   ts.URL + "/clientes",
		Query: url.Values{"telefone": {"11987654321"}},
	})
	require.ErrorIs(t, err, apperror.ErrRateLimited)

	out := logs.String()
	assert.Contains(t, out, config.MsgFetchStart)
	assert.Contains(t, out, config.MsgBadStatus)
	assert.Contains(t, out, `"`+config.LogKeyComponent+`":"`+config.CompFetcher+`"`)
	assert.Contains(t, out, "/clientes")
	assert.NotContains(t, out, "11987654321")
}

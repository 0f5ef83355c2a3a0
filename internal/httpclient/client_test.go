package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("with default config", func(t *testing.T) {
		client := NewWithDefaults()
		assert.NotNil(t, client.client)
		assert.NotNil(t, client.logger)
		assert.Equal(t, int64(DefaultMaxBodyBytes), client.config.MaxBodyBytes)
	})

	t.Run("with custom base client", func(t *testing.T) {
		baseClient := &http.Client{Timeout: 5 * time.Second}
		cfg := DefaultConfig()
		cfg.BaseClient = baseClient
		client := New(cfg)
		assert.Equal(t, baseClient, client.client)
	})
}

func TestClient_Fetch(t *testing.T) {
	t.Run("reads body and headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "skyplayer-test/1.0", r.Header.Get(HeaderUserAgent))
			assert.Contains(t, r.Header.Get(HeaderAcceptEncoding), "br")
			w.Header().Set(HeaderContentType, "application/vnd.apple.mpegurl")
			_, _ = w.Write([]byte("#EXTM3U\n"))
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.UserAgent = "skyplayer-test/1.0"
		resp, err := New(cfg).Fetch(context.Background(), server.URL+"/live.m3u8")
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "#EXTM3U\n", string(resp.Body))
		assert.Equal(t, "application/vnd.apple.mpegurl", resp.ContentType)
		assert.Equal(t, "/live.m3u8", resp.URL.Path)
	})

	t.Run("reports final url after redirect", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/old.m3u8", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/cdn/new.m3u8", http.StatusFound)
		})
		mux.HandleFunc("/cdn/new.m3u8", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("#EXTM3U\n"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		resp, err := NewWithDefaults().Fetch(context.Background(), server.URL+"/old.m3u8")
		require.NoError(t, err)
		assert.Equal(t, "/cdn/new.m3u8", resp.URL.Path)
	})

	t.Run("status error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewWithDefaults().Fetch(context.Background(), server.URL)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
		assert.True(t, se.NotFound())
	})

	t.Run("single attempt on server error", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := NewWithDefaults().Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		cfg := DefaultConfig()
		cfg.Timeout = 20 * time.Millisecond
		_, err := New(cfg).Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.True(t, IsTimeout(err))
		assert.ErrorIs(t, err, ErrRequestTimeout)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		_, err := NewWithDefaults().Fetch(context.Background(), addr)
		require.Error(t, err)
		assert.False(t, IsTimeout(err))
	})

	t.Run("body too large", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("a"), 64))
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.MaxBodyBytes = 16
		_, err := New(cfg).Fetch(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrBodyTooLarge)
	})
}

func TestClient_Decompression(t *testing.T) {
	const payload = "#EXTM3U\n#EXT-X-VERSION:3\n"

	tests := []struct {
		name     string
		encoding string
		encode   func(t *testing.T) []byte
	}{
		{"gzip", EncodingGzip, func(t *testing.T) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, err := zw.Write([]byte(payload))
			require.NoError(t, err)
			require.NoError(t, zw.Close())
			return buf.Bytes()
		}},
		{"brotli", EncodingBrotli, func(t *testing.T) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			_, err := bw.Write([]byte(payload))
			require.NoError(t, err)
			require.NoError(t, bw.Close())
			return buf.Bytes()
		}},
		{"identity", "", func(t *testing.T) []byte { return []byte(payload) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.encode(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.encoding != "" {
					w.Header().Set(HeaderContentEncoding, tt.encoding)
				}
				_, _ = w.Write(body)
			}))
			defer server.Close()

			resp, err := NewWithDefaults().Fetch(context.Background(), server.URL)
			require.NoError(t, err)
			assert.Equal(t, payload, string(resp.Body))
		})
	}
}

func TestObfuscateURL(t *testing.T) {
	u, err := url.Parse("https://user:pw@cdn.example.com/live.m3u8?token=abc123&channel=1")
	require.NoError(t, err)

	got := obfuscateURL(u)
	assert.NotContains(t, got, "abc123")
	assert.NotContains(t, got, "pw@")
	assert.True(t, strings.Contains(got, "channel=1"))
	assert.Empty(t, obfuscateURL(nil))
}

package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/internal/catalog"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

func tokenFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service.token")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHTTPTokenSource_Fetch(t *testing.T) {
	// Given: a token service that checks the service credential
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer svc-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req grantRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(`{"environment":{"host":"catalog.local","port":1247,"scheme":"http"},` +
			`"token":"lease-` + req.Zone + `","expires_at":"2026-03-01T10:00:00"}`))
	}))
	defer srv.Close()

	src := NewHTTPTokenSource(srv.URL, tokenFile(t, "svc-secret\n"), time.Second)

	// When: fetching a grant
	g, err := src.Fetch(context.Background(), "tempZone")

	// Then: the grant is decoded and the zone is filled in
	require.NoError(t, err)
	assert.Equal(t, "lease-tempZone", g.Token)
	assert.Equal(t, "catalog.local", g.Endpoint.Host)
	assert.Equal(t, "tempZone", g.Endpoint.Zone)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), g.ExpiresAt)
}

func TestHTTPTokenSource_MissingCredentialIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		src  *HTTPTokenSource
	}{
		{"no url", NewHTTPTokenSource("", "/tmp/x", 0)},
		{"no file configured", NewHTTPTokenSource("http://127.0.0.1:1", "", 0)},
		{"file missing", NewHTTPTokenSource("http://127.0.0.1:1", filepath.Join(t.TempDir(), "nope"), 0)},
		{"file empty", NewHTTPTokenSource("http://127.0.0.1:1", tokenFile(t, "  \n"), 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.src.Fetch(context.Background(), "z")

			assert.True(t, engerrors.HasCode(err, engerrors.ErrCodeNoCredential), "got %v", err)
			assert.False(t, engerrors.IsRetryable(err))
		})
	}
}

func TestHTTPTokenSource_ServiceFailuresAreRetryable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }},
		{"empty token", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"token":"","expires_at":"2026-03-01T10:00:00Z"}`))
		}},
		{"bad expiry", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"token":"t","expires_at":"tomorrow"}`))
		}},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPTokenSource(srv.URL, tokenFile(t, "svc"), time.Second).Fetch(context.Background(), "z")

			assert.True(t, engerrors.HasCode(err, engerrors.ErrCodeCredentialFetch), "got %v", err)
			assert.True(t, engerrors.IsRetryable(err))
		})
	}
}

func TestParseExpiry(t *testing.T) {
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2026-03-01T10:00:00Z",
		"2026-03-01T12:00:00+02:00",
		"2026-03-01T10:00:00",
		"2026-03-01 10:00:00",
		"2026-03-01T10:00:00.000000",
	} {
		got, err := ParseExpiry(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s parsed as %s", s, got)
	}

	_, err := ParseExpiry("")
	assert.Error(t, err)
}

func TestHTTPSessionFactory_RequiresHost(t *testing.T) {
	_, err := HTTPSessionFactory(time.Second)("z", Grant{Token: "t"})
	assert.True(t, engerrors.HasCode(err, engerrors.ErrCodeCredentialFetch))

	s, err := HTTPSessionFactory(time.Second)("z", Grant{Token: "t", Endpoint: catalog.Endpoint{Host: "h", Zone: "z"}})
	require.NoError(t, err)
	assert.IsType(t, &catalog.HTTPSession{}, s)
}

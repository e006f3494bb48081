// Package credential leases privileged, per-zone catalog sessions.
//
// A lease is obtained from an external token service and cached per zone
// until its expiry (less a safety margin) passes or a liveness probe
// against the zone root fails.
package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Aman-CERP/catindex/internal/catalog"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// Grant is one token service response.
type Grant struct {
	Endpoint  catalog.Endpoint
	Token     string
	ExpiresAt time.Time
}

// TokenSource issues grants for a zone.
type TokenSource interface {
	Fetch(ctx context.Context, zone string) (Grant, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context, zone string) (Grant, error)

// Fetch implements TokenSource.
func (f TokenSourceFunc) Fetch(ctx context.Context, zone string) (Grant, error) {
	return f(ctx, zone)
}

// HTTPTokenSource requests grants from the token service over HTTP,
// authenticating with the engine's service credential.
type HTTPTokenSource struct {
	url       string
	tokenFile string
	timeout   time.Duration
	client    *http.Client
}

// NewHTTPTokenSource creates a token source. The service credential is
// re-read from tokenFile on every fetch.
func NewHTTPTokenSource(url, tokenFile string, timeout time.Duration) *HTTPTokenSource {
	return &HTTPTokenSource{
		url:       url,
		tokenFile: tokenFile,
		timeout:   timeout,
		client:    &http.Client{},
	}
}

type grantRequest struct {
	Zone string `json:"zone"`
}

type grantResponse struct {
	Environment catalog.Endpoint `json:"environment"`
	Token       string           `json:"token"`
	ExpiresAt   string           `json:"expires_at"`
}

// serviceCredential returns the configured credential or a permanent error.
func (s *HTTPTokenSource) serviceCredential() (string, error) {
	if s.url == "" {
		return "", engerrors.New(engerrors.ErrCodeNoCredential, "no token service configured", nil)
	}
	if s.tokenFile == "" {
		return "", engerrors.New(engerrors.ErrCodeNoCredential, "no service token file configured", nil)
	}
	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", engerrors.New(engerrors.ErrCodeNoCredential, "service token file missing", err).
				WithDetail("path", s.tokenFile)
		}
		return "", engerrors.New(engerrors.ErrCodeCredentialFetch, "failed to read service token", err)
	}
	cred := strings.TrimSpace(string(data))
	if cred == "" {
		return "", engerrors.New(engerrors.ErrCodeNoCredential, "service token file is empty", nil).
			WithDetail("path", s.tokenFile)
	}
	return cred, nil
}

// Fetch implements TokenSource.
func (s *HTTPTokenSource) Fetch(ctx context.Context, zone string) (Grant, error) {
	cred, err := s.serviceCredential()
	if err != nil {
		return Grant{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	body, err := json.Marshal(grantRequest{Zone: zone})
	if err != nil {
		return Grant{}, engerrors.InternalError("failed to encode grant request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Grant{}, engerrors.InternalError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred)

	resp, err := s.client.Do(req)
	if err != nil {
		return Grant{}, fetchError(zone, "token service unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Grant{}, fetchError(zone, fmt.Sprintf("token service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}

	var gr grantResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return Grant{}, fetchError(zone, "failed to decode token service response", err)
	}
	if gr.Token == "" {
		return Grant{}, fetchError(zone, "token service returned no token", nil)
	}

	expires, err := ParseExpiry(gr.ExpiresAt)
	if err != nil {
		return Grant{}, fetchError(zone, "token service returned a bad expiry", err)
	}

	ep := gr.Environment
	if ep.Zone == "" {
		ep.Zone = zone
	}
	return Grant{Endpoint: ep, Token: gr.Token, ExpiresAt: expires}, nil
}

func fetchError(zone, msg string, cause error) *engerrors.EngineError {
	return engerrors.New(engerrors.ErrCodeCredentialFetch, msg, cause).WithDetail("zone", zone)
}

// expiryLayouts are tried in order. Layouts without an offset are UTC.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// ParseExpiry parses the ISO-8601 style timestamps the token service emits.
func ParseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty expiry")
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiry %q", s)
}

// SessionFactory opens a catalog session from a grant.
type SessionFactory func(zone string, g Grant) (catalog.Session, error)

// HTTPSessionFactory opens HTTPSessions with the given per-request timeout.
func HTTPSessionFactory(timeout time.Duration) SessionFactory {
	return func(zone string, g Grant) (catalog.Session, error) {
		if g.Endpoint.Host == "" {
			return nil, fetchError(zone, "grant has no catalog host", nil)
		}
		return catalog.NewHTTPSession(g.Endpoint, g.Token, timeout), nil
	}
}

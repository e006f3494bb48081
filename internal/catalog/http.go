package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// Endpoint holds the connection parameters returned by the token service.
type Endpoint struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Zone   string `json:"zone"`
}

// BaseURL returns the catalog API root for the endpoint.
func (e Endpoint) BaseURL() string {
	scheme := e.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := e.Host
	if e.Port != 0 {
		host += ":" + strconv.Itoa(e.Port)
	}
	return scheme + "://" + host + "/api/v1/zones/" + url.PathEscape(e.Zone)
}

// HTTPSession reads a zone through the catalog's JSON API using a bearer token.
type HTTPSession struct {
	base    string
	zone    string
	token   string
	timeout time.Duration

	mu        sync.Mutex
	client    *http.Client
	transport *http.Transport
	closed    bool
}

var _ Session = (*HTTPSession)(nil)

// NewHTTPSession creates a session. timeout bounds each request; zero means
// the caller's context alone bounds it.
func NewHTTPSession(ep Endpoint, token string, timeout time.Duration) *HTTPSession {
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}
	return &HTTPSession{
		base:      ep.BaseURL(),
		zone:      ep.Zone,
		token:     token,
		timeout:   timeout,
		client:    &http.Client{Transport: transport},
		transport: transport,
	}
}

// Stat implements Session.
func (s *HTTPSession) Stat(ctx context.Context, path string) (Item, error) {
	var it Item
	if err := s.get(ctx, "items", path, &it); err != nil {
		return Item{}, err
	}
	if it.Zone == "" {
		it.Zone = s.zone
	}
	return it, nil
}

// Metadata implements Session.
func (s *HTTPSession) Metadata(ctx context.Context, item Item) ([]AVU, error) {
	var avus []AVU
	if err := s.get(ctx, "metadata", item.Path, &avus); err != nil {
		return nil, err
	}
	return avus, nil
}

// ACLs implements Session.
func (s *HTTPSession) ACLs(ctx context.Context, item Item) ([]ACL, error) {
	var acls []ACL
	if err := s.get(ctx, "acls", item.Path, &acls); err != nil {
		return nil, err
	}
	return acls, nil
}

// Children implements Session.
func (s *HTTPSession) Children(ctx context.Context, collection string) ([]Item, error) {
	var items []Item
	if err := s.get(ctx, "children", collection, &items); err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Zone == "" {
			items[i].Zone = s.zone
		}
	}
	return items, nil
}

// Ping implements Session.
func (s *HTTPSession) Ping(ctx context.Context) error {
	_, err := s.Stat(ctx, ZoneRoot(s.zone))
	return err
}

// Close implements Session.
func (s *HTTPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.transport.CloseIdleConnections()
	return nil
}

func (s *HTTPSession) get(ctx context.Context, resource, path string, out any) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return engerrors.New(engerrors.ErrCodeLeaseInvalid, "session closed", nil)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	u := s.base + "/" + resource + "?path=" + url.QueryEscape(Clean(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return engerrors.InternalError("failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return engerrors.New(engerrors.ErrCodeCatalogUnavailable, "catalog request failed", err).
			WithDetail("zone", s.zone)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return engerrors.NotFound(s.zone, path)
	case resp.StatusCode == http.StatusUnauthorized:
		return engerrors.New(engerrors.ErrCodeLeaseInvalid, "catalog rejected session token", nil).
			WithDetail("zone", s.zone)
	case resp.StatusCode == http.StatusForbidden:
		return engerrors.New(engerrors.ErrCodeCatalogPermission, "permission denied: "+path, nil).
			WithDetail("zone", s.zone).
			WithDetail("path", path)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return engerrors.New(engerrors.ErrCodeCatalogUnavailable,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil).
			WithDetail("zone", s.zone)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return engerrors.New(engerrors.ErrCodeCatalogUnavailable, "failed to decode catalog response", err)
	}
	return nil
}

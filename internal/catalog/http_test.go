package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

func endpointFor(t *testing.T, srv *httptest.Server, zone string) Endpoint {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return Endpoint{Scheme: "http", Host: u.Hostname(), Port: port, Zone: zone}
}

func TestHTTPSession_ReadsItemsWithBearerToken(t *testing.T) {
	// Given: a catalog API that requires a bearer token
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		path := r.URL.Query().Get("path")
		switch r.URL.Path {
		case "/api/v1/zones/z/items":
			if path == "/z/missing" {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(Item{ID: 5, Kind: KindCollection, Path: path, Name: Base(path)})
		case "/api/v1/zones/z/metadata":
			_ = json.NewEncoder(w).Encode([]AVU{{Name: "mg.author", Value: "alice"}})
		case "/api/v1/zones/z/acls":
			_, _ = w.Write([]byte(`[{"principal_id":"9","kind":"group","access":"read"}]`))
		case "/api/v1/zones/z/children":
			_ = json.NewEncoder(w).Encode([]Item{{ID: 6, Kind: KindDataObject, Path: path + "/a"}})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	s := NewHTTPSession(endpointFor(t, srv, "z"), "tok", 0)
	defer s.Close()
	ctx := context.Background()

	// When: reading
	item, err := s.Stat(ctx, "/z/home")
	require.NoError(t, err)
	avus, err := s.Metadata(ctx, item)
	require.NoError(t, err)
	acls, err := s.ACLs(ctx, item)
	require.NoError(t, err)
	children, err := s.Children(ctx, "/z/home")
	require.NoError(t, err)

	// Then: results decode and the zone is filled in
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "z", item.Zone)
	assert.Equal(t, int64(5), item.ID)
	assert.Equal(t, "alice", avus[0].Value)
	assert.Equal(t, AccessRead, acls[0].Access)
	assert.Equal(t, PrincipalGroup, acls[0].Kind)
	assert.Equal(t, "z", children[0].Zone)
	assert.NoError(t, s.Ping(ctx))

	_, err = s.Stat(ctx, "/z/missing")
	assert.True(t, engerrors.HasCode(err, engerrors.ErrCodeItemNotFound))
}

func TestHTTPSession_MapsStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusUnauthorized, engerrors.ErrCodeLeaseInvalid},
		{http.StatusForbidden, engerrors.ErrCodeCatalogPermission},
		{http.StatusBadGateway, engerrors.ErrCodeCatalogUnavailable},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s := NewHTTPSession(endpointFor(t, srv, "z"), "tok", 0)
			_, err := s.Stat(context.Background(), "/z/x")

			assert.True(t, engerrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestHTTPSession_ClosedSessionFails(t *testing.T) {
	s := NewHTTPSession(Endpoint{Host: "127.0.0.1", Port: 1, Zone: "z"}, "tok", 0)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Ping(context.Background())

	assert.True(t, engerrors.HasCode(err, engerrors.ErrCodeLeaseInvalid))
}

func TestEndpoint_BaseURL(t *testing.T) {
	ep := Endpoint{Host: "catalog.example.org", Port: 8443, Zone: "tempZone"}
	assert.Equal(t, "https://catalog.example.org:8443/api/v1/zones/tempZone", ep.BaseURL())
}

package credential

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/catindex/internal/catalog"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/logging"
)

// Eviction reasons reported to the Observer.
const (
	ReasonExpired     = "expired"
	ReasonProbeFailed = "probe_failed"
	ReasonAdmin       = "admin"
	ReasonCredential  = "credential_changed"
)

// Observer receives lease lifecycle counts. metrics.Metrics implements it.
type Observer interface {
	LeaseFetched(result string)
	LeaseEvicted(reason string)
}

type nopObserver struct{}

func (nopObserver) LeaseFetched(string) {}
func (nopObserver) LeaseEvicted(string) {}

// Lease is a cached session for one zone.
type Lease struct {
	Zone        string
	Session     catalog.Session
	Expiry      time.Time
	Acquired    time.Time
	Fingerprint string
}

// LeaseInfo describes a cached lease without exposing its session.
type LeaseInfo struct {
	Zone        string    `json:"zone"`
	Expiry      time.Time `json:"expiry"`
	Acquired    time.Time `json:"acquired"`
	Fingerprint string    `json:"fingerprint"`
}

// Options configures a Broker.
type Options struct {
	// SafetyMargin is subtracted from every reported expiry.
	SafetyMargin time.Duration
	// Breaker guards the token source. Nil disables it.
	Breaker  *engerrors.CircuitBreaker
	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
}

// Broker hands out per-zone catalog sessions.
// It is safe for concurrent use by the worker, the sweep loop and the
// admin surface.
type Broker struct {
	source  TokenSource
	factory SessionFactory
	margin  time.Duration
	breaker *engerrors.CircuitBreaker
	logger  *slog.Logger
	obs     Observer
	now     func() time.Time

	leases *xsync.MapOf[string, *Lease]
	fetch  singleflight.Group
}

// NewBroker creates a broker.
func NewBroker(source TokenSource, factory SessionFactory, opts Options) *Broker {
	b := &Broker{
		source:  source,
		factory: factory,
		margin:  opts.SafetyMargin,
		breaker: opts.Breaker,
		logger:  opts.Logger,
		obs:     opts.Observer,
		now:     opts.Now,
		leases:  xsync.NewMapOf[string, *Lease](),
	}
	if b.logger == nil {
		b.logger = logging.Discard()
	}
	if b.obs == nil {
		b.obs = nopObserver{}
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Lease returns a live session for zone, fetching a new grant when the
// cached one is expired or fails its probe.
//
// Errors carry ErrCodeNoCredential when no service credential is
// configured (permanent) and ErrCodeCredentialFetch when the fetch failed
// (retryable).
func (b *Broker) Lease(ctx context.Context, zone string) (catalog.Session, error) {
	if l, ok := b.leases.Load(zone); ok {
		if b.now().Before(l.Expiry) {
			if err := l.Session.Ping(ctx); err == nil {
				return l.Session, nil
			}
			b.evictLease(l, ReasonProbeFailed)
		} else {
			b.evictLease(l, ReasonExpired)
		}
	}

	v, err, _ := b.fetch.Do(zone, func() (any, error) {
		// Another caller may have refreshed the zone while we probed.
		if l, ok := b.leases.Load(zone); ok && b.now().Before(l.Expiry) {
			return l, nil
		}
		return b.acquire(ctx, zone)
	})
	if err != nil {
		return nil, err
	}
	if g, ok := v.(Grant); ok {
		return b.openUncached(zone, g)
	}
	return v.(*Lease).Session, nil
}

// acquire fetches a grant and caches a lease for it. A grant that expires
// within the safety margin is returned as is.
func (b *Broker) acquire(ctx context.Context, zone string) (any, error) {
	grant, err := b.fetchGrant(ctx, zone)
	if err != nil {
		result := "error"
		if engerrors.HasCode(err, engerrors.ErrCodeNoCredential) {
			result = "no_credential"
		}
		b.obs.LeaseFetched(result)
		b.logger.Warn("lease_fetch_failed",
			slog.String("zone", zone),
			slog.String("code", engerrors.GetCode(err)),
			slog.String("error", err.Error()))
		return nil, err
	}

	now := b.now()
	expiry := grant.ExpiresAt.Add(-b.margin)
	if !now.Before(expiry) {
		b.logger.Warn("lease_not_cached",
			slog.String("zone", zone),
			slog.Time("expires_at", grant.ExpiresAt),
			slog.Duration("safety_margin", b.margin))
		return grant, nil
	}

	session, err := b.open(zone, grant)
	if err != nil {
		return nil, err
	}
	l := &Lease{
		Zone:        zone,
		Session:     session,
		Expiry:      expiry,
		Acquired:    now,
		Fingerprint: logging.Fingerprint(grant.Token),
	}
	b.obs.LeaseFetched("ok")

	if old, loaded := b.leases.LoadAndStore(zone, l); loaded && old != l {
		_ = old.Session.Close()
	}
	b.logger.Info("lease_refreshed",
		slog.String("zone", zone),
		slog.Time("expiry", l.Expiry),
		slog.String("token_fp", l.Fingerprint))
	return l, nil
}

func (b *Broker) open(zone string, grant Grant) (catalog.Session, error) {
	session, err := b.factory(zone, grant)
	if err != nil {
		b.obs.LeaseFetched("error")
		if _, ok := engerrors.As(err); ok {
			return nil, err
		}
		return nil, engerrors.New(engerrors.ErrCodeCredentialFetch, "failed to open catalog session", err).
			WithDetail("zone", zone)
	}
	return session, nil
}

// openUncached opens a session on a grant too short-lived to cache. The
// caller owns it and hands it back with catalog.Release.
func (b *Broker) openUncached(zone string, grant Grant) (catalog.Session, error) {
	session, err := b.open(zone, grant)
	if err != nil {
		return nil, err
	}
	b.obs.LeaseFetched("uncached")
	return &uncachedSession{Session: session}, nil
}

// uncachedSession closes its session on the first Release.
type uncachedSession struct {
	catalog.Session
	once sync.Once
}

func (s *uncachedSession) Release() {
	s.once.Do(func() { _ = s.Session.Close() })
}

func (b *Broker) fetchGrant(ctx context.Context, zone string) (Grant, error) {
	if b.breaker == nil {
		return b.source.Fetch(ctx, zone)
	}
	g, err := engerrors.CircuitExecute(b.breaker, func() (Grant, error) {
		return b.source.Fetch(ctx, zone)
	})
	if err == engerrors.ErrCircuitOpen {
		return Grant{}, engerrors.New(engerrors.ErrCodeCredentialFetch, "token service circuit open", err).
			WithDetail("zone", zone)
	}
	return g, err
}

// evictLease removes l if it is still the cached lease for its zone.
func (b *Broker) evictLease(l *Lease, reason string) bool {
	removed := false
	b.leases.Compute(l.Zone, func(cur *Lease, loaded bool) (*Lease, bool) {
		if loaded && cur == l {
			removed = true
			return nil, true
		}
		return cur, !loaded
	})
	if removed {
		_ = l.Session.Close()
		b.obs.LeaseEvicted(reason)
		b.logger.Info("lease_evicted",
			slog.String("zone", l.Zone),
			slog.String("reason", reason))
	}
	return removed
}

// Sweep probes every cached lease and evicts expired or failing ones.
// Returns the number of evicted leases.
func (b *Broker) Sweep(ctx context.Context) int {
	var cached []*Lease
	b.leases.Range(func(_ string, l *Lease) bool {
		cached = append(cached, l)
		return true
	})

	evicted := 0
	for _, l := range cached {
		if ctx.Err() != nil {
			break
		}
		reason := ""
		if !b.now().Before(l.Expiry) {
			reason = ReasonExpired
		} else if err := l.Session.Ping(ctx); err != nil {
			reason = ReasonProbeFailed
		}
		if reason != "" && b.evictLease(l, reason) {
			evicted++
		}
	}
	return evicted
}

// Run sweeps on every interval until ctx is done.
func (b *Broker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := b.Sweep(ctx); n > 0 {
				b.logger.Info("lease_sweep", slog.Int("evicted", n), slog.Int("cached", b.leases.Size()))
			}
		}
	}
}

// Evict drops the cached lease for zone.
func (b *Broker) Evict(zone string) bool {
	l, ok := b.leases.Load(zone)
	if !ok {
		return false
	}
	return b.evictLease(l, ReasonAdmin)
}

// EvictAll drops every cached lease. Returns how many were dropped.
func (b *Broker) EvictAll() int {
	return b.evictAll(ReasonAdmin)
}

// CredentialChanged drops every cached lease after the service credential
// was rotated.
func (b *Broker) CredentialChanged() int {
	return b.evictAll(ReasonCredential)
}

func (b *Broker) evictAll(reason string) int {
	var cached []*Lease
	b.leases.Range(func(_ string, l *Lease) bool {
		cached = append(cached, l)
		return true
	})
	n := 0
	for _, l := range cached {
		if b.evictLease(l, reason) {
			n++
		}
	}
	return n
}

// Leases returns a snapshot of cached leases ordered by zone.
func (b *Broker) Leases() []LeaseInfo {
	var out []LeaseInfo
	b.leases.Range(func(_ string, l *Lease) bool {
		out = append(out, LeaseInfo{
			Zone:        l.Zone,
			Expiry:      l.Expiry,
			Acquired:    l.Acquired,
			Fingerprint: l.Fingerprint,
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out
}

// Zones returns the zones with a cached lease.
func (b *Broker) Zones() []string {
	infos := b.Leases()
	zones := make([]string, len(infos))
	for i, info := range infos {
		zones[i] = info.Zone
	}
	return zones
}

// Close evicts every lease.
func (b *Broker) Close() error {
	b.evictAll(ReasonAdmin)
	return nil
}

package conditions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/river-hud/internal/observability"
)

// Service assembles condition snapshots from the configured sources through
// the cache.
type Service struct {
	cache     Cache
	sources   map[SourceID]Source
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	tolerance time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for snapshot timestamps and early-warning age.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithWarningTolerance sets the slack added to an upstream lead time before
// an upstream reading is considered too old to project.
func WithWarningTolerance(d time.Duration) Option {
	return func(s *Service) { s.tolerance = d }
}

// NewService creates a new Service. Sources are keyed by their ID; a source
// missing from the list is reported as unavailable in every snapshot.
func NewService(cache Cache, sources []Source, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		cache:     cache,
		sources:   make(map[SourceID]Source, len(sources)),
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		tolerance: SourceGauge.TTL(),
	}
	for _, src := range sources {
		s.sources[src.ID()] = src
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sites returns the monitored rivers.
func (s *Service) Sites() []Site {
	return Sites()
}

// BuildSnapshot fetches every source for the named river concurrently and
// merges them. Source failures degrade individual records to stale or
// unavailable; the only error is an unknown river.
func (s *Service) BuildSnapshot(ctx context.Context, riverName string) (ConditionSnapshot, error) {
	site, err := ResolveSite(riverName)
	if err != nil {
		return ConditionSnapshot{}, err
	}

	start := time.Now()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		records  = make(map[SourceID]SourceRecord, len(AllSources))
		upstream SourceRecord
	)

	for _, id := range AllSources {
		wg.Add(1)
		go func(id SourceID) {
			defer wg.Done()

			rec := s.record(ctx, site, id)

			mu.Lock()
			records[id] = rec
			mu.Unlock()
		}(id)
	}

	if site.UpstreamWarning != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Keyed by the upstream gauge id so any other consumer of that
			// gauge shares the entry.
			upstream = s.record(ctx, site.upstreamSite(), SourceGauge)
		}()
	}

	wg.Wait()

	now := s.clock.Now()
	snap := ConditionSnapshot{
		ID:          uuid.NewString(),
		Site:        site,
		GeneratedAt: now,
		Records:     records,
		Assessment:  Assess(site, records),
	}
	if site.UpstreamWarning != nil {
		snap.EarlyWarning = projectEarlyWarning(*site.UpstreamWarning, upstream, now, s.tolerance)
	}

	s.metrics.SnapshotsBuilt.Inc()
	s.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("snapshot built",
		"river", site.RiverName,
		"snapshot_id", snap.ID,
		"level", snap.Assessment.Level,
		"early_warning", snap.EarlyWarning != nil,
	)

	return snap, nil
}

// BuildAll builds a snapshot for every monitored river, in display order.
func (s *Service) BuildAll(ctx context.Context) ([]ConditionSnapshot, error) {
	all := Sites()
	out := make([]ConditionSnapshot, len(all))
	errs := make([]error, len(all))

	var wg sync.WaitGroup
	for i, site := range all {
		wg.Add(1)
		go func(i int, river string) {
			defer wg.Done()
			out[i], errs[i] = s.BuildSnapshot(ctx, river)
		}(i, site.RiverName)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, site Site, id SourceID) SourceRecord {
	src, ok := s.sources[id]
	if !ok {
		return UnavailableRecord(id)
	}

	key := CacheKey{SiteID: site.ID(), Source: id}
	if id.AreaWide() {
		key.SiteID = AreaSiteID
	}
	rec, status := s.cache.GetOrRefresh(ctx, key, id.TTL(), s.instrumented(src, site))
	rec.Source = id
	rec.Status = status
	return rec
}

// instrumented wraps a source fetch with metrics and failure logging.
func (s *Service) instrumented(src Source, site Site) RefreshFunc {
	id := string(src.ID())
	return func(ctx context.Context) (SourceRecord, error) {
		start := time.Now()
		rec, err := src.Fetch(ctx, site)
		s.metrics.FetchDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())

		outcome := "success"
		if err != nil {
			outcome = "error"
			if kind, ok := FetchErrorKindOf(err); ok {
				outcome = string(kind)
			}
			s.logger.Warn("source fetch failed",
				"source", id,
				"site", site.ID(),
				"kind", outcome,
				"error", err,
			)
		}
		s.metrics.FetchRequests.WithLabelValues(id, outcome).Inc()
		return rec, err
	}
}

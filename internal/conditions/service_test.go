package conditions_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/river-hud/internal/conditions"
	"github.com/i474232898/river-hud/internal/observability"
	"github.com/i474232898/river-hud/internal/store"
)

var serviceNow = time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

// stubSource records which gauges it was asked for and answers with fetch.
type stubSource struct {
	id    conditions.SourceID
	fetch func(site conditions.Site) (conditions.SourceRecord, error)

	mu    sync.Mutex
	calls map[string]int
}

func newStub(id conditions.SourceID, fetch func(site conditions.Site) (conditions.SourceRecord, error)) *stubSource {
	return &stubSource{id: id, fetch: fetch, calls: make(map[string]int)}
}

func (s *stubSource) ID() conditions.SourceID { return s.id }

func (s *stubSource) Fetch(_ context.Context, site conditions.Site) (conditions.SourceRecord, error) {
	s.mu.Lock()
	s.calls[site.ID()]++
	s.mu.Unlock()
	return s.fetch(site)
}

func (s *stubSource) callsFor(siteID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[siteID]
}

func (s *stubSource) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func okSource(id conditions.SourceID, payload conditions.Payload, observed time.Time) *stubSource {
	return newStub(id, func(conditions.Site) (conditions.SourceRecord, error) {
		return conditions.SourceRecord{Source: id, ObservedAt: observed, Payload: payload}, nil
	})
}

func failingSource(id conditions.SourceID) *stubSource {
	return newStub(id, func(conditions.Site) (conditions.SourceRecord, error) {
		return conditions.SourceRecord{}, conditions.NewFetchError(id, conditions.FetchHTTPError, errors.New("status 503"))
	})
}

// gaugeSource answers every gauge with a flow reading observed at observed.
func gaugeSource(observed time.Time) *stubSource {
	return newStub(conditions.SourceGauge, func(site conditions.Site) (conditions.SourceRecord, error) {
		flow := 3500.0
		height := 9.2
		return conditions.SourceRecord{
			Source:     conditions.SourceGauge,
			ObservedAt: observed,
			Payload:    conditions.GaugeReading{GaugeID: site.ID(), FlowCFS: &flow, GaugeHeightFt: &height},
		}, nil
	})
}

func allSources(gauge *stubSource) []conditions.Source {
	return []conditions.Source{
		gauge,
		okSource(conditions.SourceWeather, conditions.WeatherConditions{WindSpeedMPH: 5}, serviceNow),
		okSource(conditions.SourceAlerts, conditions.AlertList{Alerts: []conditions.Alert{}}, serviceNow),
		okSource(conditions.SourceForecast, conditions.StageForecast{GaugeID: "BRKP1"}, serviceNow),
		okSource(conditions.SourceLunar, conditions.LunarTable{MoonPhase: "Full Moon"}, serviceNow),
		okSource(conditions.SourceWaterQuality, conditions.WaterQualitySamples{}, serviceNow),
		okSource(conditions.SourceOverflow, conditions.OverflowStatus{Label: "NO OVERFLOW", Level: conditions.OverflowLevelOK}, serviceNow),
	}
}

func newTestService(t *testing.T, sources []conditions.Source, opts ...conditions.Option) (*conditions.Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(serviceNow)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	cache := store.NewCache(clock, metrics, logger)
	opts = append([]conditions.Option{conditions.WithClock(clock)}, opts...)
	return conditions.NewService(cache, sources, logger, metrics, opts...), clock
}

func TestBuildSnapshot_AllSourcesFresh(t *testing.T) {
	svc, _ := newTestService(t, allSources(gaugeSource(serviceNow.Add(-10*time.Minute))))

	snap, err := svc.BuildSnapshot(context.Background(), "monongahela")
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "Monongahela", snap.Site.RiverName)
	assert.Equal(t, serviceNow, snap.GeneratedAt)
	require.Len(t, snap.Records, len(conditions.AllSources))
	for _, id := range conditions.AllSources {
		rec, ok := snap.Records[id]
		require.True(t, ok, id)
		assert.Equal(t, conditions.StatusFresh, rec.Status, id)
		assert.Equal(t, id, rec.Source)
		assert.Equal(t, serviceNow, rec.FetchedAt, id)
	}
	assert.Equal(t, conditions.LevelGo, snap.Assessment.Level)
}

func TestBuildSnapshot_AllSourcesFailing(t *testing.T) {
	var sources []conditions.Source
	for _, id := range conditions.AllSources {
		sources = append(sources, failingSource(id))
	}
	svc, _ := newTestService(t, sources)

	snap, err := svc.BuildSnapshot(context.Background(), "Ohio")
	require.NoError(t, err)

	require.Len(t, snap.Records, len(conditions.AllSources))
	for _, id := range conditions.AllSources {
		assert.Equal(t, conditions.StatusUnavailable, snap.Records[id].Status, id)
		assert.Nil(t, snap.Records[id].Payload, id)
	}
	assert.Nil(t, snap.EarlyWarning)
	assert.Equal(t, conditions.LevelCaution, snap.Assessment.Level)
}

func TestBuildSnapshot_MissingSourceIsUnavailable(t *testing.T) {
	svc, _ := newTestService(t, []conditions.Source{gaugeSource(serviceNow)})

	snap, err := svc.BuildSnapshot(context.Background(), "Allegheny")
	require.NoError(t, err)

	require.Len(t, snap.Records, len(conditions.AllSources))
	assert.Equal(t, conditions.StatusFresh, snap.Records[conditions.SourceGauge].Status)
	assert.Equal(t, conditions.StatusUnavailable, snap.Records[conditions.SourceLunar].Status)
}

func TestBuildSnapshot_UnknownRiver(t *testing.T) {
	gauge := gaugeSource(serviceNow)
	svc, _ := newTestService(t, allSources(gauge))

	snap, err := svc.BuildSnapshot(context.Background(), "Youghiogheny")

	require.Error(t, err)
	assert.ErrorIs(t, err, conditions.ErrUnknownSite)
	assert.Empty(t, snap.ID)
	assert.Zero(t, gauge.total())
}

func TestBuildSnapshot_WithinTTLMakesNoNetworkCalls(t *testing.T) {
	gauge := gaugeSource(serviceNow)
	sources := allSources(gauge)
	svc, clock := newTestService(t, sources)

	first, err := svc.BuildSnapshot(context.Background(), "Monongahela")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := svc.BuildSnapshot(context.Background(), "Monongahela")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Records[conditions.SourceGauge], second.Records[conditions.SourceGauge])
	assert.Equal(t, 1, gauge.callsFor("03085000"))
	assert.Equal(t, 1, gauge.callsFor("03075070"))
	for _, src := range sources[1:] {
		assert.Equal(t, 1, src.(*stubSource).total(), src.ID())
	}
}

func TestBuildSnapshot_FailedRefreshAfterTTLIsStale(t *testing.T) {
	var failing bool
	var mu sync.Mutex
	weather := newStub(conditions.SourceWeather, func(conditions.Site) (conditions.SourceRecord, error) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return conditions.SourceRecord{}, conditions.NewFetchError(conditions.SourceWeather, conditions.FetchTimeout, context.DeadlineExceeded)
		}
		return conditions.SourceRecord{ObservedAt: serviceNow, Payload: conditions.WeatherConditions{TemperatureF: 71}}, nil
	})
	svc, clock := newTestService(t, []conditions.Source{weather})

	first, err := svc.BuildSnapshot(context.Background(), "Ohio")
	require.NoError(t, err)

	mu.Lock()
	failing = true
	mu.Unlock()
	clock.Advance(conditions.SourceWeather.TTL() + time.Second)

	second, err := svc.BuildSnapshot(context.Background(), "Ohio")
	require.NoError(t, err)

	rec := second.Records[conditions.SourceWeather]
	assert.Equal(t, conditions.StatusStale, rec.Status)
	assert.Equal(t, first.Records[conditions.SourceWeather].Payload, rec.Payload)
	assert.Equal(t, first.Records[conditions.SourceWeather].FetchedAt, rec.FetchedAt)
	assert.Equal(t, 2, weather.total())
}

func TestBuildSnapshot_EarlyWarning(t *testing.T) {
	observed := serviceNow.Add(-45 * time.Minute)
	tests := []struct {
		river    string
		upstream string
		lead     time.Duration
	}{
		{"Monongahela", "03075070", 6 * time.Hour},
		{"Allegheny", "03049500", 2 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.river, func(t *testing.T) {
			gauge := gaugeSource(observed)
			svc, _ := newTestService(t, allSources(gauge))

			snap, err := svc.BuildSnapshot(context.Background(), tt.river)
			require.NoError(t, err)

			w := snap.EarlyWarning
			require.NotNil(t, w)
			assert.Equal(t, tt.upstream, w.UpstreamGaugeID)
			assert.Equal(t, observed, w.UpstreamObservedAt)
			assert.Equal(t, observed.Add(tt.lead), w.ProjectedArrival)
			assert.Equal(t, conditions.StatusFresh, w.UpstreamStatus)
			assert.InDelta(t, 3500.0, w.UpstreamValue, 0)
			assert.Equal(t, 1, gauge.callsFor(tt.upstream))
		})
	}
}

func TestBuildSnapshot_NoEarlyWarningForOhio(t *testing.T) {
	gauge := gaugeSource(serviceNow)
	svc, _ := newTestService(t, allSources(gauge))

	snap, err := svc.BuildSnapshot(context.Background(), "Ohio")
	require.NoError(t, err)

	assert.Nil(t, snap.EarlyWarning)
	assert.Equal(t, 1, gauge.total())
}

func TestBuildSnapshot_UpstreamTooOld(t *testing.T) {
	// Allegheny lead is 2h; default tolerance is the gauge TTL.
	gauge := gaugeSource(serviceNow.Add(-2*time.Hour - 10*time.Minute))
	svc, _ := newTestService(t, allSources(gauge))

	snap, err := svc.BuildSnapshot(context.Background(), "Allegheny")
	require.NoError(t, err)
	assert.Nil(t, snap.EarlyWarning)

	wide, _ := newTestService(t, allSources(gauge), conditions.WithWarningTolerance(15*time.Minute))
	snap, err = wide.BuildSnapshot(context.Background(), "Allegheny")
	require.NoError(t, err)
	assert.NotNil(t, snap.EarlyWarning)
}

func TestBuildSnapshot_UpstreamFailureSuppressesWarning(t *testing.T) {
	gauge := newStub(conditions.SourceGauge, func(site conditions.Site) (conditions.SourceRecord, error) {
		if site.ID() == "03075070" {
			return conditions.SourceRecord{}, conditions.NewFetchError(conditions.SourceGauge, conditions.FetchEmptyResult, nil)
		}
		flow := 12000.0
		return conditions.SourceRecord{ObservedAt: serviceNow, Payload: conditions.GaugeReading{FlowCFS: &flow}}, nil
	})
	svc, _ := newTestService(t, allSources(gauge))

	snap, err := svc.BuildSnapshot(context.Background(), "Monongahela")
	require.NoError(t, err)

	assert.Nil(t, snap.EarlyWarning)
	assert.Equal(t, conditions.StatusFresh, snap.Records[conditions.SourceGauge].Status)
}

func TestBuildAll(t *testing.T) {
	svc, _ := newTestService(t, allSources(gaugeSource(serviceNow)))

	snaps, err := svc.BuildAll(context.Background())
	require.NoError(t, err)

	require.Len(t, snaps, 3)
	assert.Equal(t, "Monongahela", snaps[0].Site.RiverName)
	assert.Equal(t, "Allegheny", snaps[1].Site.RiverName)
	assert.Equal(t, "Ohio", snaps[2].Site.RiverName)
	for _, s := range snaps {
		assert.Len(t, s.Records, len(conditions.AllSources))
	}
	assert.Len(t, svc.Sites(), 3)
}

func TestBuildAll_AreaWideFeedsFetchedOnce(t *testing.T) {
	gauge := gaugeSource(serviceNow)
	sources := allSources(gauge)
	svc, _ := newTestService(t, sources)

	_, err := svc.BuildAll(context.Background())
	require.NoError(t, err)

	for _, src := range sources {
		stub := src.(*stubSource)
		switch {
		case stub.ID() == conditions.SourceGauge:
			// Three primaries plus two upstream gauges.
			assert.Equal(t, 5, stub.total())
		case stub.ID().AreaWide():
			assert.Equal(t, 1, stub.total(), stub.ID())
		default:
			assert.Equal(t, 3, stub.total(), stub.ID())
		}
	}
}

package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/river-hud/internal/conditions"
)

const usgsBody = `{
  "value": {
    "timeSeries": [
      {
        "sourceInfo": {"siteName": "MONONGAHELA RIVER AT BRADDOCK, PA", "siteCode": [{"value": "03085000"}]},
        "variable": {"variableCode": [{"value": "00060"}]},
        "values": [{"value": [
          {"value": "11800", "dateTime": "2025-06-14T11:00:00.000-04:00"},
          {"value": "-999999", "dateTime": "2025-06-14T11:05:00.000-04:00"},
          {"value": "12000", "dateTime": "2025-06-14T11:10:00.000-04:00"}
        ]}]
      },
      {
        "sourceInfo": {"siteName": "MONONGAHELA RIVER AT BRADDOCK, PA", "siteCode": [{"value": "03085000"}]},
        "variable": {"variableCode": [{"value": "00065"}]},
        "values": [{"value": [
          {"value": "9.10", "dateTime": "2025-06-14T11:10:00.000-04:00"},
          {"value": "9.25", "dateTime": "2025-06-14T11:15:00.000-04:00"}
        ]}]
      },
      {
        "sourceInfo": {"siteName": "MONONGAHELA RIVER AT BRADDOCK, PA", "siteCode": [{"value": "03085000"}]},
        "variable": {"variableCode": [{"value": "00010"}]},
        "values": [{"value": [
          {"value": "-999999", "dateTime": "2025-06-14T11:15:00.000-04:00"}
        ]}]
      }
    ]
  },
  "unknownTopLevel": true
}`

const usgsHistoryBody = `{
  "value": {
    "timeSeries": [
      {
        "sourceInfo": {"siteName": "MONONGAHELA RIVER AT BRADDOCK, PA", "siteCode": [{"value": "03085000"}]},
        "variable": {"variableCode": [{"value": "00065"}]},
        "values": [{"value": [
          {"value": "8.70", "dateTime": "2025-06-13T12:00:00.000-04:00"},
          {"value": "-999999", "dateTime": "2025-06-13T18:00:00.000-04:00"},
          {"value": "8.95", "dateTime": "2025-06-14T00:00:00.000-04:00"},
          {"value": "9.25", "dateTime": "2025-06-14T11:15:00.000-04:00"}
        ]}]
      }
    ]
  }
}`

func testGaugeClient(baseURL string) *GaugeClient {
	return testGaugeClientWithClock(baseURL, clockwork.NewFakeClockAt(june))
}

func testGaugeClientWithClock(baseURL string, clock clockwork.Clock) *GaugeClient {
	c := NewGaugeClient(testConfig(clock))
	c.baseURL = baseURL
	return c
}

// usgsServer answers live requests with live and 24-hour requests with
// history, counting the latter.
func usgsServer(t *testing.T, live, history string, historyHits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		if r.URL.Query().Get("period") == "P1D" {
			if historyHits != nil {
				historyHits.Add(1)
			}
			if history == "" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, history)
			return
		}
		_, _ = io.WriteString(w, live)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGaugeClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "03085000", q.Get("sites"))
		w.Header().Set(headerContentType, contentTypeJSON)
		switch q.Get("period") {
		case "PT2H":
			assert.Equal(t, "00060,00065,00010", q.Get("parameterCd"))
			_, _ = io.WriteString(w, usgsBody)
		case "P1D":
			assert.Equal(t, "00065", q.Get("parameterCd"))
			_, _ = io.WriteString(w, usgsHistoryBody)
		default:
			t.Errorf("unexpected period %q", q.Get("period"))
		}
	}))
	defer srv.Close()

	rec, err := testGaugeClient(srv.URL).Fetch(context.Background(), testSite(t, "Monongahela"))
	require.NoError(t, err)

	assert.Equal(t, conditions.SourceGauge, rec.Source)
	assert.Equal(t, conditions.StatusFresh, rec.Status)
	assert.Equal(t, june, rec.FetchedAt)
	assert.Equal(t, time.Date(2025, 6, 14, 15, 15, 0, 0, time.UTC), rec.ObservedAt)

	reading, ok := rec.Payload.(conditions.GaugeReading)
	require.True(t, ok)
	assert.Equal(t, "03085000", reading.GaugeID)
	assert.Equal(t, "MONONGAHELA RIVER AT BRADDOCK, PA", reading.SiteName)
	require.NotNil(t, reading.FlowCFS)
	assert.InDelta(t, 12000, *reading.FlowCFS, 0)
	require.NotNil(t, reading.FlowTrendCFS)
	assert.InDelta(t, 200, *reading.FlowTrendCFS, 1e-9)
	require.NotNil(t, reading.EstimatedSpeedMPH)
	assert.InDelta(t, 0.432, *reading.EstimatedSpeedMPH, 1e-9)
	require.NotNil(t, reading.GaugeHeightFt)
	assert.InDelta(t, 9.25, *reading.GaugeHeightFt, 0)
	assert.InDelta(t, 0.15, *reading.StageTrendFt, 1e-9)
	assert.Nil(t, reading.WaterTempC, "sentinel-only series is skipped")

	require.Len(t, reading.History, 3)
	assert.Equal(t, time.Date(2025, 6, 13, 16, 0, 0, 0, time.UTC), reading.History[0].ValidTime)
	assert.InDelta(t, 8.70, reading.History[0].StageFt, 0)
	assert.InDelta(t, 9.25, reading.History[2].StageFt, 0)
}

func TestGaugeClient_Fetch_HistoryFailureKeepsReading(t *testing.T) {
	srv := usgsServer(t, usgsBody, "", nil)

	rec, err := testGaugeClient(srv.URL).Fetch(context.Background(), testSite(t, "Monongahela"))
	require.NoError(t, err)

	reading := rec.Payload.(conditions.GaugeReading)
	require.NotNil(t, reading.FlowCFS)
	assert.Empty(t, reading.History)
}

func TestGaugeClient_Fetch_HistoryReusedWithinTTL(t *testing.T) {
	var hits atomic.Int32
	srv := usgsServer(t, usgsBody, usgsHistoryBody, &hits)
	clock := clockwork.NewFakeClockAt(june)
	client := testGaugeClientWithClock(srv.URL, clock)
	site := testSite(t, "Monongahela")

	_, err := client.Fetch(context.Background(), site)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	rec, err := client.Fetch(context.Background(), site)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, rec.Payload.(conditions.GaugeReading).History, 3)

	clock.Advance(historyTTL)
	_, err = client.Fetch(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGaugeClient_Fetch_HistoryFailureServesPrevious(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("period") == "P1D" {
			if failing.Load() {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = io.WriteString(w, usgsHistoryBody)
			return
		}
		_, _ = io.WriteString(w, usgsBody)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClockAt(june)
	client := testGaugeClientWithClock(srv.URL, clock)
	site := testSite(t, "Monongahela")

	_, err := client.Fetch(context.Background(), site)
	require.NoError(t, err)

	failing.Store(true)
	clock.Advance(historyTTL + time.Minute)
	rec, err := client.Fetch(context.Background(), site)
	require.NoError(t, err)
	assert.Len(t, rec.Payload.(conditions.GaugeReading).History, 3)
}

func TestGaugeClient_BreakerIsPerGauge(t *testing.T) {
	var brokenHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sites") == "03075070" {
			brokenHits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, usgsBody)
	}))
	defer srv.Close()

	client := testGaugeClient(srv.URL)
	broken := conditions.Site{PrimaryGaugeID: "03075070"}
	for i := 0; i < 5; i++ {
		_, err := client.Fetch(context.Background(), broken)
		requireKind(t, err, conditions.FetchHTTPError)
	}

	_, err := client.Fetch(context.Background(), broken)
	requireKind(t, err, conditions.FetchHTTPError)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(5), brokenHits.Load())

	rec, err := client.Fetch(context.Background(), testSite(t, "Monongahela"))
	require.NoError(t, err)
	assert.Equal(t, "03085000", rec.Payload.(conditions.GaugeReading).GaugeID)
}

func TestGaugeClient_Fetch_UpstreamSiteUsesItsOwnGauge(t *testing.T) {
	var sites string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sites = r.URL.Query().Get("sites")
		_, _ = io.WriteString(w, usgsBody)
	}))
	defer srv.Close()

	up := conditions.Site{PrimaryGaugeID: "03049500"}
	rec, err := testGaugeClient(srv.URL).Fetch(context.Background(), up)
	require.NoError(t, err)

	assert.Equal(t, "03049500", sites)
	assert.Equal(t, "03049500", rec.Payload.(conditions.GaugeReading).GaugeID)
}

func TestGaugeClient_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind conditions.FetchErrorKind
	}{
		{"malformed json", `{"value":`, conditions.FetchParseError},
		{"missing value", `{"other": {}}`, conditions.FetchParseError},
		{"missing timeSeries", `{"value": {}}`, conditions.FetchParseError},
		{"no series", `{"value": {"timeSeries": []}}`, conditions.FetchEmptyResult},
		{"only sentinels", `{"value": {"timeSeries": [{"variable": {"variableCode": [{"value": "00060"}]}, "values": [{"value": [{"value": "-999999", "dateTime": "2025-06-14T11:00:00-04:00"}]}]}]}}`, conditions.FetchEmptyResult},
		{"bad timestamp", `{"value": {"timeSeries": [{"variable": {"variableCode": [{"value": "00060"}]}, "values": [{"value": [{"value": "10", "dateTime": "yesterday"}]}]}]}}`, conditions.FetchParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, tt.body, nil)
			_, err := testGaugeClient(srv.URL).Fetch(context.Background(), testSite(t, "Ohio"))
			requireKind(t, err, tt.kind)
		})
	}
}

func TestHourTrend(t *testing.T) {
	assert.Nil(t, hourTrend([]gaugePoint{{value: 1}}))

	points := make([]gaugePoint, 20)
	for i := range points {
		points[i] = gaugePoint{value: float64(i)}
	}
	trend := hourTrend(points)
	require.NotNil(t, trend)
	assert.InDelta(t, 11, *trend, 0)
}

package providers

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/river-hud/internal/conditions"
)

// USGS parameter codes.
const (
	paramDischarge   = "00060" // cubic feet per second
	paramGaugeHeight = "00065" // feet
	paramWaterTemp   = "00010" // degrees Celsius
)

// usgsNoData marks a missing reading in NWIS instantaneous values.
const usgsNoData = -999999

// trendWindow is how many 5-minute readings make up the one-hour trend.
const trendWindow = 12

// cfsToMPH is a rough conversion from discharge to surface speed for the
// Pittsburgh pools (10,000 cfs is about 0.36 mph).
const cfsToMPH = 0.000036

// historyTTL is how long a fetched 24-hour stage history is reused.
const historyTTL = 15 * time.Minute

// GaugeClient reads USGS NWIS instantaneous values for a gauge.
type GaugeClient struct {
	baseURL string
	cfg     ClientConfig
	clock   clockwork.Clock

	mu     sync.Mutex
	gauges map[string]*gaugeState
}

// gaugeState is the per-gauge breaker pair and the last stage history.
type gaugeState struct {
	live    *requester
	history *requester

	points    []conditions.StagePoint
	fetchedAt time.Time
}

// NewGaugeClient creates a USGS gauge client. Each gauge gets its own
// circuit breakers.
func NewGaugeClient(cfg ClientConfig) *GaugeClient {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GaugeClient{
		baseURL: "https://waterservices.usgs.gov/nwis/iv/",
		cfg:     cfg,
		clock:   clock,
		gauges:  make(map[string]*gaugeState),
	}
}

func (c *GaugeClient) state(gaugeID string) *gaugeState {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.gauges[gaugeID]
	if !ok {
		name := string(conditions.SourceGauge) + ":" + gaugeID
		g = &gaugeState{
			live:    newNamedRequester(conditions.SourceGauge, name, c.cfg),
			history: newNamedRequester(conditions.SourceGauge, name+":history", c.cfg),
		}
		c.gauges[gaugeID] = g
	}
	return g
}

func (c *GaugeClient) ID() conditions.SourceID {
	return conditions.SourceGauge
}

type usgsResponse struct {
	Value *struct {
		TimeSeries []usgsSeries `json:"timeSeries" validate:"required"`
	} `json:"value" validate:"required"`
}

type usgsSeries struct {
	SourceInfo struct {
		SiteName string `json:"siteName"`
		SiteCode []struct {
			Value string `json:"value"`
		} `json:"siteCode"`
	} `json:"sourceInfo"`
	Variable struct {
		VariableCode []struct {
			Value string `json:"value"`
		} `json:"variableCode"`
	} `json:"variable"`
	Values []struct {
		Value []usgsValue `json:"value"`
	} `json:"values"`
}

type usgsValue struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}

// Fetch returns the latest flow, stage and temperature for site's gauge,
// with the last day of stage readings when they can be had.
func (c *GaugeClient) Fetch(ctx context.Context, site conditions.Site) (conditions.SourceRecord, error) {
	g := c.state(site.PrimaryGaugeID)
	req := g.live

	values := url.Values{}
	values.Set("format", "json")
	values.Set("sites", site.PrimaryGaugeID)
	values.Set("parameterCd", paramDischarge+","+paramGaugeHeight+","+paramWaterTemp)
	values.Set("period", "PT2H")

	body, err := req.get(ctx, c.baseURL+"?"+values.Encode(), "application/json")
	if err != nil {
		return conditions.SourceRecord{}, err
	}

	var resp usgsResponse
	if err := req.decode(body, &resp); err != nil {
		return conditions.SourceRecord{}, err
	}
	if len(resp.Value.TimeSeries) == 0 {
		return conditions.SourceRecord{}, req.empty("no time series for gauge %s", site.PrimaryGaugeID)
	}

	reading := conditions.GaugeReading{GaugeID: site.PrimaryGaugeID}
	var observed time.Time
	found := false

	for _, series := range resp.Value.TimeSeries {
		if reading.SiteName == "" {
			reading.SiteName = series.SourceInfo.SiteName
		}
		if len(series.Variable.VariableCode) == 0 || len(series.Values) == 0 {
			continue
		}

		points := validPoints(series.Values[0].Value)
		if len(points) == 0 {
			continue
		}
		latest := points[len(points)-1]
		ts, err := time.Parse(time.RFC3339, latest.dateTime)
		if err != nil {
			return conditions.SourceRecord{}, req.parseError("gauge %s dateTime %q: %v", site.PrimaryGaugeID, latest.dateTime, err)
		}

		v := latest.value
		trend := hourTrend(points)
		switch series.Variable.VariableCode[0].Value {
		case paramDischarge:
			reading.FlowCFS = &v
			reading.FlowTrendCFS = trend
			speed := v * cfsToMPH
			reading.EstimatedSpeedMPH = &speed
		case paramGaugeHeight:
			reading.GaugeHeightFt = &v
			reading.StageTrendFt = trend
		case paramWaterTemp:
			reading.WaterTempC = &v
		default:
			continue
		}

		found = true
		if ts.After(observed) {
			observed = ts
		}
	}

	if !found {
		return conditions.SourceRecord{}, req.empty("no valid readings for gauge %s", site.PrimaryGaugeID)
	}

	reading.History = c.stageHistory(ctx, g, site.PrimaryGaugeID)

	return req.record(observed, reading), nil
}

// stageHistory returns the last 24 hours of gauge height, reusing a copy
// younger than historyTTL. Failures leave the live reading untouched and
// fall back to the previous history, if any.
func (c *GaugeClient) stageHistory(ctx context.Context, g *gaugeState, gaugeID string) []conditions.StagePoint {
	now := c.clock.Now()

	c.mu.Lock()
	if g.points != nil && now.Sub(g.fetchedAt) < historyTTL {
		points := g.points
		c.mu.Unlock()
		return points
	}
	previous := g.points
	c.mu.Unlock()

	points, err := c.fetchHistory(ctx, g.history, gaugeID)
	if err != nil {
		g.history.cfg.Logger.Debug("stage history unavailable", "gauge", gaugeID, "error", err)
		return previous
	}

	c.mu.Lock()
	g.points = points
	g.fetchedAt = now
	c.mu.Unlock()
	return points
}

func (c *GaugeClient) fetchHistory(ctx context.Context, req *requester, gaugeID string) ([]conditions.StagePoint, error) {
	values := url.Values{}
	values.Set("format", "json")
	values.Set("sites", gaugeID)
	values.Set("parameterCd", paramGaugeHeight)
	values.Set("period", "P1D")

	body, err := req.get(ctx, c.baseURL+"?"+values.Encode(), "application/json")
	if err != nil {
		return nil, err
	}

	var resp usgsResponse
	if err := req.decode(body, &resp); err != nil {
		return nil, err
	}

	points := []conditions.StagePoint{}
	for _, series := range resp.Value.TimeSeries {
		if len(series.Variable.VariableCode) == 0 || series.Variable.VariableCode[0].Value != paramGaugeHeight || len(series.Values) == 0 {
			continue
		}
		for _, p := range validPoints(series.Values[0].Value) {
			ts, err := time.Parse(time.RFC3339, p.dateTime)
			if err != nil {
				return nil, req.parseError("gauge %s history dateTime %q: %v", gaugeID, p.dateTime, err)
			}
			points = append(points, conditions.StagePoint{ValidTime: ts.UTC(), StageFt: p.value})
		}
	}
	if len(points) == 0 {
		return nil, req.empty("no stage history for gauge %s", gaugeID)
	}
	return points, nil
}

type gaugePoint struct {
	value    float64
	dateTime string
}

// validPoints drops no-data sentinels and unparsable values.
func validPoints(raw []usgsValue) []gaugePoint {
	out := make([]gaugePoint, 0, len(raw))
	for _, r := range raw {
		v, err := strconv.ParseFloat(r.Value, 64)
		if err != nil || v == usgsNoData {
			continue
		}
		out = append(out, gaugePoint{value: v, dateTime: r.DateTime})
	}
	return out
}

// hourTrend is the change across the last trendWindow readings.
func hourTrend(points []gaugePoint) *float64 {
	if len(points) > trendWindow {
		points = points[len(points)-trendWindow:]
	}
	if len(points) < 2 {
		return nil
	}
	d := points[len(points)-1].value - points[0].value
	return &d
}

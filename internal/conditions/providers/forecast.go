package providers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/river-hud/internal/conditions"
)

// forecastHorizon limits how far ahead predicted stages are kept.
const forecastHorizon = 48 * time.Hour

// nwpsMissing is the NWPS placeholder for a missing value.
const nwpsMissing = -999

// ForecastClient reads NWPS predicted river stage for a site.
type ForecastClient struct {
	baseURL string
	req     *requester
}

// NewForecastClient creates an NWPS stage forecast client.
func NewForecastClient(cfg ClientConfig) *ForecastClient {
	return &ForecastClient{
		baseURL: "https://api.water.noaa.gov/nwps/v1/gauges",
		req:     newRequester(conditions.SourceForecast, cfg),
	}
}

func (c *ForecastClient) ID() conditions.SourceID {
	return conditions.SourceForecast
}

type nwpsStageFlow struct {
	Forecast *struct {
		IssuedTime string `json:"issuedTime"`
		Data       []struct {
			ValidTime string   `json:"validTime"`
			Primary   *float64 `json:"primary"`
		} `json:"data"`
	} `json:"forecast" validate:"required"`
}

// Fetch returns the predicted stage over the next 48 hours and its peak.
func (c *ForecastClient) Fetch(ctx context.Context, site conditions.Site) (conditions.SourceRecord, error) {
	if site.NWPSID == "" {
		return conditions.SourceRecord{}, c.req.empty("site %s has no NWPS gauge", site.ID())
	}

	u := strings.TrimRight(c.baseURL, "/") + "/" + url.PathEscape(site.NWPSID) + "/stageflow"
	body, err := c.req.get(ctx, u, "application/json")
	if err != nil {
		return conditions.SourceRecord{}, err
	}

	var resp nwpsStageFlow
	if err := c.req.decode(body, &resp); err != nil {
		return conditions.SourceRecord{}, err
	}

	now := c.req.now()
	horizon := now.Add(forecastHorizon)

	fc := conditions.StageForecast{GaugeID: site.NWPSID, Points: []conditions.StagePoint{}}
	for _, d := range resp.Forecast.Data {
		if d.Primary == nil || *d.Primary <= nwpsMissing {
			continue
		}
		ts, err := time.Parse(time.RFC3339, d.ValidTime)
		if err != nil {
			return conditions.SourceRecord{}, c.req.parseError("forecast %s validTime %q: %v", site.NWPSID, d.ValidTime, err)
		}
		if ts.After(horizon) {
			continue
		}

		p := conditions.StagePoint{ValidTime: ts.UTC(), StageFt: *d.Primary}
		if len(fc.Points) == 0 || p.StageFt > fc.PeakStageFt {
			fc.PeakStageFt = p.StageFt
			fc.PeakAt = p.ValidTime
		}
		fc.Points = append(fc.Points, p)
	}

	if len(fc.Points) == 0 {
		return conditions.SourceRecord{}, c.req.empty("no forecast points for %s", site.NWPSID)
	}

	var observed time.Time
	if ts, err := time.Parse(time.RFC3339, resp.Forecast.IssuedTime); err == nil {
		ts = ts.UTC()
		fc.IssuedAt = &ts
		observed = ts
	}

	return c.req.record(observed, fc), nil
}

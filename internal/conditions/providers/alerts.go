package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/river-hud/internal/common"
	"github.com/i474232898/river-hud/internal/conditions"
)

// AlertsClient reads active NWS alerts for a point.
type AlertsClient struct {
	baseURL string
	req     *requester
}

// NewAlertsClient creates an NWS alerts client.
func NewAlertsClient(cfg ClientConfig) *AlertsClient {
	return &AlertsClient{
		baseURL: "https://api.weather.gov/alerts/active",
		req:     newRequester(conditions.SourceAlerts, cfg),
	}
}

func (c *AlertsClient) ID() conditions.SourceID {
	return conditions.SourceAlerts
}

type nwsAlerts struct {
	Updated  string `json:"updated"`
	Features []struct {
		Properties struct {
			Event    string `json:"event"`
			Headline string `json:"headline"`
			Severity string `json:"severity"`
			Expires  string `json:"expires"`
		} `json:"properties"`
	} `json:"features" validate:"required"`
}

// Fetch returns every active alert for the site's point. No alerts is a
// valid, non-empty answer.
func (c *AlertsClient) Fetch(ctx context.Context, site conditions.Site) (conditions.SourceRecord, error) {
	values := url.Values{}
	values.Set("point", fmt.Sprintf("%.4f,%.4f", site.Lat, site.Lon))

	body, err := c.req.get(ctx, c.baseURL+"?"+values.Encode(), "application/geo+json")
	if err != nil {
		return conditions.SourceRecord{}, err
	}

	var resp nwsAlerts
	if err := c.req.decode(body, &resp); err != nil {
		return conditions.SourceRecord{}, err
	}

	list := conditions.AlertList{Alerts: make([]conditions.Alert, 0, len(resp.Features))}
	for _, f := range resp.Features {
		p := f.Properties
		a := conditions.Alert{
			Event:    p.Event,
			Headline: p.Headline,
			Severity: p.Severity,
		}
		if ts, err := time.Parse(time.RFC3339, p.Expires); err == nil {
			ts = ts.UTC()
			a.Expires = &ts
		}
		if IsFloodEvent(p.Event) {
			list.FloodAlertActive = true
		}
		list.Alerts = append(list.Alerts, a)
	}

	var observed time.Time
	if ts, err := time.Parse(time.RFC3339, resp.Updated); err == nil {
		observed = ts
	}

	return c.req.record(observed, list), nil
}

// IsFloodEvent reports whether an NWS event name is flood related.
func IsFloodEvent(event string) bool {
	return common.HasAny(event, "flood", "flash")
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/river-hud/internal/conditions"
)

// wprdcResourceID is the Allegheny County water-quality lab sample dataset.
const wprdcResourceID = "1c59b26a-1684-4bfb-92f7-205b947530cf"

const sampleLimit = 6

// CKAN bookkeeping columns that are not sample data.
var ckanInternalFields = map[string]bool{"_id": true, "_full_text": true}

var sampleDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// WaterQualityClient reads recent lab samples from the WPRDC CKAN datastore.
type WaterQualityClient struct {
	baseURL    string
	resourceID string
	req        *requester
}

// NewWaterQualityClient creates a WPRDC client.
func NewWaterQualityClient(cfg ClientConfig) *WaterQualityClient {
	return &WaterQualityClient{
		baseURL:    "https://data.wprdc.org/api/action/datastore_search",
		resourceID: wprdcResourceID,
		req:        newRequester(conditions.SourceWaterQuality, cfg),
	}
}

func (c *WaterQualityClient) ID() conditions.SourceID {
	return conditions.SourceWaterQuality
}

type ckanSearch struct {
	Success *bool `json:"success" validate:"required"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
	Result *struct {
		Records []map[string]any `json:"records"`
	} `json:"result"`
}

// Fetch returns the most recent samples, newest first.
func (c *WaterQualityClient) Fetch(ctx context.Context, _ conditions.Site) (conditions.SourceRecord, error) {
	values := url.Values{}
	values.Set("resource_id", c.resourceID)
	values.Set("limit", strconv.Itoa(sampleLimit))
	values.Set("sort", "date desc")

	body, err := c.req.get(ctx, c.baseURL+"?"+values.Encode(), "application/json")
	if err != nil {
		return conditions.SourceRecord{}, err
	}

	var resp ckanSearch
	if err := c.req.decode(body, &resp); err != nil {
		return conditions.SourceRecord{}, err
	}
	if !*resp.Success {
		msg := "datastore_search failed"
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return conditions.SourceRecord{}, conditions.NewFetchError(conditions.SourceWaterQuality, conditions.FetchHTTPError, errors.New(msg))
	}
	if resp.Result == nil || resp.Result.Records == nil {
		return conditions.SourceRecord{}, c.req.parseError("datastore_search result has no records")
	}
	if len(resp.Result.Records) == 0 {
		return conditions.SourceRecord{}, c.req.empty("no water quality samples")
	}

	out := conditions.WaterQualitySamples{Samples: make([]conditions.WaterSample, 0, len(resp.Result.Records))}
	var newest time.Time
	for _, rec := range resp.Result.Records {
		s := conditions.WaterSample{Fields: make(map[string]string, len(rec))}
		for k, v := range rec {
			if ckanInternalFields[k] || v == nil {
				continue
			}
			s.Fields[k] = formatField(v)
		}
		if ts, ok := parseSampleDate(s.Fields["date"]); ok {
			s.CollectedAt = &ts
			if ts.After(newest) {
				newest = ts
			}
		}
		out.Samples = append(out.Samples, s)
		if len(out.Samples) == sampleLimit {
			break
		}
	}

	return c.req.record(newest, out), nil
}

// formatField renders a decoded JSON value as text. Numbers keep every
// digit and never use exponent form.
func formatField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func parseSampleDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range sampleDateLayouts {
		if ts, err := time.ParseInLocation(layout, v, eastern); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

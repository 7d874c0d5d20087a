package providers

import (
	"context"
	"strings"
	"time"

	"github.com/i474232898/river-hud/internal/common"
	"github.com/i474232898/river-hud/internal/conditions"
)

// Sewage-overflow advisories run April through October.
const (
	overflowSeasonStart = time.April
	overflowSeasonEnd   = time.October
)

// OverflowClient reads the ALCOSAN sewage-overflow advisory page.
type OverflowClient struct {
	baseURL string
	req     *requester
}

// NewOverflowClient creates an ALCOSAN advisory client.
func NewOverflowClient(cfg ClientConfig) *OverflowClient {
	return &OverflowClient{
		baseURL: "https://www.alcosan.org/services/sewage-overflow-alerts",
		req:     newRequester(conditions.SourceOverflow, cfg),
	}
}

func (c *OverflowClient) ID() conditions.SourceID {
	return conditions.SourceOverflow
}

// Fetch classifies the advisory page. Outside the season it answers
// inactive without touching the network.
func (c *OverflowClient) Fetch(ctx context.Context, _ conditions.Site) (conditions.SourceRecord, error) {
	if !InOverflowSeason(c.req.now()) {
		return c.req.record(time.Time{}, conditions.OverflowStatus{
			Inactive: true,
			Label:    "INACTIVE",
			Level:    conditions.OverflowLevelOff,
			Detail:   "Season: Apr 1 - Oct 31",
		}), nil
	}

	body, err := c.req.get(ctx, c.baseURL, "text/html")
	if err != nil {
		return conditions.SourceRecord{}, err
	}
	if strings.TrimSpace(string(body)) == "" {
		return conditions.SourceRecord{}, c.req.empty("empty advisory page")
	}

	return c.req.record(time.Time{}, ClassifyOverflow(string(body))), nil
}

// InOverflowSeason reports whether t falls in the advisory season, judged
// by the US Eastern calendar month.
func InOverflowSeason(t time.Time) bool {
	m := t.In(eastern).Month()
	return m >= overflowSeasonStart && m <= overflowSeasonEnd
}

// ClassifyOverflow maps advisory page text to a status. Negative phrases
// are checked first since they also contain the positive keywords.
func ClassifyOverflow(page string) conditions.OverflowStatus {
	switch {
	case common.HasAny(page, "no overflow", "no active"):
		return conditions.OverflowStatus{Label: "NO OVERFLOW", Level: conditions.OverflowLevelOK, Detail: "Overflow monitoring active"}
	case common.HasAny(page, "overflow", "active"):
		return conditions.OverflowStatus{Label: "OVERFLOW ACTIVE", Level: conditions.OverflowLevelWarn, Detail: "Check alcosan.org for details"}
	default:
		return conditions.OverflowStatus{Label: "CHECK SITE", Level: conditions.OverflowLevelWarn, Detail: "Status unclear, visit alcosan.org"}
	}
}

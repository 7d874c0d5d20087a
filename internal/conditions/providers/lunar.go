package providers

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/i474232898/river-hud/internal/conditions"
)

const synodicMonthDays = 29.53059

// referenceNewMoon is a known new moon used to estimate the phase locally.
var referenceNewMoon = time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

// LunarClient reads the solunar.org fishing table for a site and day.
type LunarClient struct {
	baseURL string
	req     *requester
}

// NewLunarClient creates a solunar.org client.
func NewLunarClient(cfg ClientConfig) *LunarClient {
	return &LunarClient{
		baseURL: "https://api.solunar.org/solunar",
		req:     newRequester(conditions.SourceLunar, cfg),
	}
}

func (c *LunarClient) ID() conditions.SourceID {
	return conditions.SourceLunar
}

type solunarTable struct {
	SunRise          string  `json:"sunRise"`
	SunSet           string  `json:"sunSet"`
	MoonPhase        string  `json:"moonPhase" validate:"required"`
	MoonIllumination float64 `json:"moonIllumination"`
	DayRating        int     `json:"dayRating"`
	Major1Start      string  `json:"major1Start"`
	Major1Stop       string  `json:"major1Stop"`
	Major2Start      string  `json:"major2Start"`
	Major2Stop       string  `json:"major2Stop"`
	Minor1Start      string  `json:"minor1Start"`
	Minor1Stop       string  `json:"minor1Stop"`
	Minor2Start      string  `json:"minor2Start"`
	Minor2Stop       string  `json:"minor2Stop"`
}

// Fetch returns today's solunar table in US Eastern time.
func (c *LunarClient) Fetch(ctx context.Context, site conditions.Site) (conditions.SourceRecord, error) {
	local := c.req.now().In(eastern)
	_, offset := local.Zone()
	date := local.Format("20060102")

	u := fmt.Sprintf("%s/%.4f,%.4f,%s,%d", strings.TrimRight(c.baseURL, "/"), site.Lat, site.Lon, date, offset/3600)
	body, err := c.req.get(ctx, u, "application/json")
	if err != nil {
		return conditions.SourceRecord{}, err
	}

	var resp solunarTable
	if err := c.req.decode(body, &resp); err != nil {
		return conditions.SourceRecord{}, err
	}

	phase := MoonPhaseFraction(local)
	table := conditions.LunarTable{
		Date:             local.Format("2006-01-02"),
		MoonPhase:        resp.MoonPhase,
		MoonIllumination: resp.MoonIllumination,
		DayRating:        resp.DayRating,
		SunRise:          resp.SunRise,
		SunSet:           resp.SunSet,
		Periods:          []conditions.FeedingPeriod{},
		PhaseFraction:    phase,
		FishingMoon:      FishingMoon(phase),
	}
	for _, p := range []conditions.FeedingPeriod{
		{Label: "MAJOR 1", Major: true, Start: resp.Major1Start, Stop: resp.Major1Stop},
		{Label: "MAJOR 2", Major: true, Start: resp.Major2Start, Stop: resp.Major2Stop},
		{Label: "MINOR 1", Start: resp.Minor1Start, Stop: resp.Minor1Stop},
		{Label: "MINOR 2", Start: resp.Minor2Start, Stop: resp.Minor2Stop},
	} {
		if p.Start != "" && p.Stop != "" {
			table.Periods = append(table.Periods, p)
		}
	}

	return c.req.record(time.Time{}, table), nil
}

// MoonPhaseFraction estimates the lunar phase for the calendar day of t:
// 0 is new moon, 0.5 full.
func MoonPhaseFraction(t time.Time) float64 {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := math.Floor(day.Sub(referenceNewMoon).Hours() / 24)
	phase := math.Mod(days, synodicMonthDays) / synodicMonthDays
	if phase < 0 {
		phase++
	}
	return phase
}

// FishingMoon rates a phase; crescent and gibbous phases fish best.
func FishingMoon(phase float64) string {
	if (phase > 0.1 && phase < 0.4) || (phase > 0.6 && phase < 0.9) {
		return "GOOD"
	}
	return "MODERATE"
}

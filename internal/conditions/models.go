package conditions

import (
	"time"
)

// SourceID identifies one of the upstream feeds fused into a snapshot.
type SourceID string

const (
	SourceGauge        SourceID = "gauge"
	SourceWeather      SourceID = "weather"
	SourceAlerts       SourceID = "alerts"
	SourceForecast     SourceID = "forecast"
	SourceLunar        SourceID = "lunar"
	SourceWaterQuality SourceID = "water_quality"
	SourceOverflow     SourceID = "overflow"
)

// AllSources lists every feed in display order. A snapshot always carries
// one record per entry.
var AllSources = []SourceID{
	SourceGauge,
	SourceWeather,
	SourceAlerts,
	SourceForecast,
	SourceLunar,
	SourceWaterQuality,
	SourceOverflow,
}

// sourceTTLs are the fixed freshness windows per feed.
var sourceTTLs = map[SourceID]time.Duration{
	SourceGauge:        5 * time.Minute,
	SourceWeather:      10 * time.Minute,
	SourceAlerts:       10 * time.Minute,
	SourceForecast:     15 * time.Minute,
	SourceLunar:        24 * time.Hour,
	SourceWaterQuality: 30 * time.Minute,
	SourceOverflow:     10 * time.Minute,
}

// TTL returns the cache time-to-live for a source.
func (s SourceID) TTL() time.Duration {
	return sourceTTLs[s]
}

// AreaSiteID is the cache site id shared by the feeds that cover the whole
// city rather than one gauge.
const AreaSiteID = "pittsburgh"

// AreaWide reports whether a source answers for the whole city. Its
// records are cached once for all sites.
func (s SourceID) AreaWide() bool {
	switch s {
	case SourceWeather, SourceAlerts, SourceLunar, SourceWaterQuality, SourceOverflow:
		return true
	default:
		return false
	}
}

// Status tells consumers how much to trust a record.
type Status string

const (
	StatusFresh       Status = "fresh"
	StatusStale       Status = "stale"
	StatusUnavailable Status = "unavailable"
)

// SourceRecord is the normalized output of one source for one site.
type SourceRecord struct {
	Source     SourceID  `json:"source"`
	ObservedAt time.Time `json:"observedAt"` // upstream attribution time
	FetchedAt  time.Time `json:"fetchedAt"`  // local fetch time
	Payload    Payload   `json:"payload"`
	Status     Status    `json:"status"`
}

// UnavailableRecord is the placeholder for a source that never produced data.
func UnavailableRecord(source SourceID) SourceRecord {
	return SourceRecord{
		Source: source,
		Status: StatusUnavailable,
	}
}

// CacheKey addresses one cached record: a site (gauge id, or AreaSiteID for
// area-wide feeds) and a source.
type CacheKey struct {
	SiteID string
	Source SourceID
}

func (k CacheKey) String() string {
	return k.SiteID + ":" + string(k.Source)
}

// UpstreamWarning links a site to a gauge further up the watershed.
type UpstreamWarning struct {
	GaugeID       string  `json:"gaugeId"`
	Name          string  `json:"name"`
	LeadTimeHours float64 `json:"leadTimeHours"`
}

// LeadTime returns the configured lead time as a duration.
func (u UpstreamWarning) LeadTime() time.Duration {
	return time.Duration(u.LeadTimeHours * float64(time.Hour))
}

// Site is the static configuration of one monitored river.
type Site struct {
	RiverName       string           `json:"riverName"`
	PrimaryGaugeID  string           `json:"primaryGaugeId"`
	DisplayLocation string           `json:"displayLocation"`
	NWPSID          string           `json:"nwpsId"`
	ActionStageFt   float64          `json:"actionStageFt"`
	FloodStageFt    float64          `json:"floodStageFt"`
	Lat             float64          `json:"lat"`
	Lon             float64          `json:"lon"`
	UpstreamWarning *UpstreamWarning `json:"upstreamWarning,omitempty"`
}

// ID is the cache identity of the site.
func (s Site) ID() string {
	return s.PrimaryGaugeID
}

// upstreamSite describes the upstream gauge as a site of its own so the
// regular gauge client and cache can serve it.
func (s Site) upstreamSite() Site {
	up := s.UpstreamWarning
	return Site{
		RiverName:       s.RiverName,
		PrimaryGaugeID:  up.GaugeID,
		DisplayLocation: up.Name,
		Lat:             s.Lat,
		Lon:             s.Lon,
	}
}

// EarlyWarning projects what passed the upstream gauge onto the site.
// It is a projection, not a forecast.
type EarlyWarning struct {
	UpstreamGaugeID    string    `json:"upstreamGaugeId"`
	UpstreamName       string    `json:"upstreamName"`
	UpstreamValue      float64   `json:"upstreamValue"`
	Unit               string    `json:"unit"`
	UpstreamFlowCFS    *float64  `json:"upstreamFlowCfs,omitempty"`
	UpstreamStageFt    *float64  `json:"upstreamStageFt,omitempty"`
	Trend              *float64  `json:"trend,omitempty"`
	UpstreamObservedAt time.Time `json:"upstreamObservedAt"`
	UpstreamStatus     Status    `json:"upstreamStatus"`
	LeadTimeHours      float64   `json:"leadTimeHours"`
	ProjectedArrival   time.Time `json:"projectedArrival"`
	Caveat             string    `json:"caveat"`
}

// ConditionSnapshot is the merged view of all sources for one site.
// It is built per request and never mutated afterwards.
type ConditionSnapshot struct {
	ID           string                    `json:"id"`
	Site         Site                      `json:"site"`
	GeneratedAt  time.Time                 `json:"generatedAt"`
	Records      map[SourceID]SourceRecord `json:"records"`
	EarlyWarning *EarlyWarning             `json:"earlyWarning,omitempty"`
	Assessment   Assessment                `json:"assessment"`
}

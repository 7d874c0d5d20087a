package conditions

import "time"

// Payload is the source-specific body of a SourceRecord. Each source has
// exactly one concrete payload type.
type Payload interface {
	Source() SourceID
}

// GaugeReading is the latest USGS instantaneous-value reading for a gauge.
type GaugeReading struct {
	GaugeID           string   `json:"gaugeId"`
	SiteName          string   `json:"siteName,omitempty"`
	FlowCFS           *float64 `json:"flowCfs,omitempty"`
	GaugeHeightFt     *float64 `json:"gaugeHeightFt,omitempty"`
	WaterTempC        *float64 `json:"waterTempC,omitempty"`
	FlowTrendCFS      *float64 `json:"flowTrendCfs,omitempty"` // change over the last hour
	StageTrendFt      *float64 `json:"stageTrendFt,omitempty"` // change over the last hour
	EstimatedSpeedMPH *float64 `json:"estimatedSpeedMph,omitempty"`

	// History is the last 24 hours of gauge height, oldest first.
	History []StagePoint `json:"history,omitempty"`
}

func (GaugeReading) Source() SourceID { return SourceGauge }

// WeatherConditions combines Open-Meteo current weather, daily outlook and
// air quality for the reference point.
type WeatherConditions struct {
	TemperatureF     float64  `json:"temperatureF"`
	ApparentF        float64  `json:"apparentF"`
	WindSpeedMPH     float64  `json:"windSpeedMph"`
	WindDirectionDeg float64  `json:"windDirectionDeg"`
	WindCompass      string   `json:"windCompass"`
	WindGustMPH      float64  `json:"windGustMph"`
	PrecipitationIn  float64  `json:"precipitationIn"`
	WeatherCode      int      `json:"weatherCode"`
	Description      string   `json:"description"`
	CloudCoverPct    float64  `json:"cloudCoverPct"`
	VisibilityMi     *float64 `json:"visibilityMi,omitempty"`

	Today    DailyOutlook  `json:"today"`
	Tomorrow *DailyOutlook `json:"tomorrow,omitempty"`

	AQI  *int     `json:"aqi,omitempty"`
	PM25 *float64 `json:"pm25,omitempty"`
}

func (WeatherConditions) Source() SourceID { return SourceWeather }

// DailyOutlook is one day of the Open-Meteo daily aggregation.
type DailyOutlook struct {
	UVIndexMax           *float64   `json:"uvIndexMax,omitempty"`
	PrecipProbabilityMax *float64   `json:"precipProbabilityMax,omitempty"`
	PrecipSumIn          *float64   `json:"precipSumIn,omitempty"`
	WindMaxMPH           *float64   `json:"windMaxMph,omitempty"`
	Sunrise              *time.Time `json:"sunrise,omitempty"`
	Sunset               *time.Time `json:"sunset,omitempty"`
}

// Alert is one active NWS alert.
type Alert struct {
	Event    string     `json:"event"`
	Headline string     `json:"headline"`
	Severity string     `json:"severity"`
	Expires  *time.Time `json:"expires,omitempty"`
}

// AlertList holds the active NWS alerts for the reference point.
type AlertList struct {
	Alerts           []Alert `json:"alerts"`
	FloodAlertActive bool    `json:"floodAlertActive"`
}

func (AlertList) Source() SourceID { return SourceAlerts }

// StagePoint is one observed or predicted stage value.
type StagePoint struct {
	ValidTime time.Time `json:"validTime"`
	StageFt   float64   `json:"stageFt"`
}

// StageForecast is the NWPS predicted river stage for a site.
type StageForecast struct {
	GaugeID     string       `json:"gaugeId"`
	IssuedAt    *time.Time   `json:"issuedAt,omitempty"`
	Points      []StagePoint `json:"points"`
	PeakStageFt float64      `json:"peakStageFt"`
	PeakAt      time.Time    `json:"peakAt"`
}

func (StageForecast) Source() SourceID { return SourceForecast }

// FeedingPeriod is a solunar major or minor window, in local clock text.
type FeedingPeriod struct {
	Label string `json:"label"`
	Major bool   `json:"major"`
	Start string `json:"start"`
	Stop  string `json:"stop"`
}

// LunarTable is the day's solunar table plus a locally computed moon phase.
type LunarTable struct {
	Date             string          `json:"date"`
	MoonPhase        string          `json:"moonPhase"`
	MoonIllumination float64         `json:"moonIllumination"`
	DayRating        int             `json:"dayRating"`
	SunRise          string          `json:"sunRise,omitempty"`
	SunSet           string          `json:"sunSet,omitempty"`
	Periods          []FeedingPeriod `json:"periods"`
	PhaseFraction    float64         `json:"phaseFraction"` // 0 new, 0.5 full
	FishingMoon      string          `json:"fishingMoon"`
}

func (LunarTable) Source() SourceID { return SourceLunar }

// WaterSample is one lab sample row from the county open-data catalog.
type WaterSample struct {
	CollectedAt *time.Time        `json:"collectedAt,omitempty"`
	Fields      map[string]string `json:"fields"`
}

// WaterQualitySamples lists the most recent lab samples.
type WaterQualitySamples struct {
	Samples []WaterSample `json:"samples"`
}

func (WaterQualitySamples) Source() SourceID { return SourceWaterQuality }

// Overflow levels.
const (
	OverflowLevelOK   = "ok"
	OverflowLevelWarn = "warn"
	OverflowLevelOff  = "off"
)

// OverflowStatus is the sewage-overflow advisory state.
type OverflowStatus struct {
	Inactive bool   `json:"inactive"`
	Label    string `json:"label"`
	Level    string `json:"level"`
	Detail   string `json:"detail"`
}

func (OverflowStatus) Source() SourceID { return SourceOverflow }

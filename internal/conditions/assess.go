package conditions

import "fmt"

// Level is the overall go/caution/danger rating of a snapshot.
type Level string

const (
	LevelGo      Level = "go"
	LevelCaution Level = "caution"
	LevelDanger  Level = "danger"
)

var levelLabels = map[Level]string{
	LevelGo:      "CONDITIONS FAVORABLE",
	LevelCaution: "USE CAUTION",
	LevelDanger:  "STAY OFF WATER",
}

// Stage statuses relative to the site's NWS thresholds.
const (
	StageFlood    = "flood"
	StageAction   = "action"
	StageElevated = "elevated"
	StageNormal   = "normal"
	StageUnknown  = "unknown"
)

// elevatedMarginFt is how far below action stage a river counts as elevated.
const elevatedMarginFt = 3.0

// Combined-sewer-overflow risk derived from rainfall.
const (
	CSORiskHigh     = "HIGH"
	CSORiskModerate = "MODERATE"
	CSORiskLow      = "LOW"
)

// Assessment is the derived go/caution/danger verdict for one site.
// Issues force danger; warnings alone give caution.
type Assessment struct {
	Level       Level     `json:"level"`
	Label       string    `json:"label"`
	StageStatus string    `json:"stageStatus"`
	Issues      []string  `json:"issues"`
	Warnings    []string  `json:"warnings"`
	CSORisk     string    `json:"csoRisk"`
	AQICategory string    `json:"aqiCategory,omitempty"`
	Species     []Species `json:"species"`
}

// Assess rates a site from its records. Unavailable records contribute
// nothing except the gauge, whose absence is itself a warning.
func Assess(site Site, records map[SourceID]SourceRecord) Assessment {
	a := Assessment{
		StageStatus: StageUnknown,
		Issues:      []string{},
		Warnings:    []string{},
		CSORisk:     CSORiskLow,
	}

	gauge := records[SourceGauge]
	var waterTempC *float64
	if reading, ok := usable(gauge).(GaugeReading); ok {
		waterTempC = reading.WaterTempC
	}
	a.Species = SpeciesAdvice(waterTempC)

	if reading, ok := usable(gauge).(GaugeReading); ok && reading.GaugeHeightFt != nil {
		a.StageStatus = StageStatus(*reading.GaugeHeightFt, site.ActionStageFt, site.FloodStageFt)
		switch a.StageStatus {
		case StageFlood:
			a.Issues = append(a.Issues, fmt.Sprintf("%s at FLOOD STAGE", site.RiverName))
		case StageAction:
			a.Issues = append(a.Issues, fmt.Sprintf("%s at ACTION STAGE", site.RiverName))
		}
	}
	switch gauge.Status {
	case StatusStale:
		a.Warnings = append(a.Warnings, "GAUGE DATA STALE")
	case StatusUnavailable, "":
		a.Warnings = append(a.Warnings, "GAUGE DATA UNAVAILABLE")
	}

	if alerts, ok := usable(records[SourceAlerts]).(AlertList); ok && alerts.FloodAlertActive {
		a.Issues = append(a.Issues, "NWS FLOOD ALERT ACTIVE")
	}

	if wx, ok := usable(records[SourceWeather]).(WeatherConditions); ok {
		a.assessWeather(wx)
	}

	if of, ok := usable(records[SourceOverflow]).(OverflowStatus); ok && !of.Inactive && of.Level == OverflowLevelWarn {
		a.Warnings = append(a.Warnings, "SEWAGE OVERFLOW: "+of.Label)
	}

	switch {
	case len(a.Issues) > 0:
		a.Level = LevelDanger
	case len(a.Warnings) > 0:
		a.Level = LevelCaution
	default:
		a.Level = LevelGo
	}
	a.Label = levelLabels[a.Level]
	return a
}

func (a *Assessment) assessWeather(wx WeatherConditions) {
	switch {
	case wx.WindSpeedMPH > 25:
		a.Issues = append(a.Issues, fmt.Sprintf("DANGEROUS WIND (%.0f mph)", wx.WindSpeedMPH))
	case wx.WindSpeedMPH > 15:
		a.Warnings = append(a.Warnings, fmt.Sprintf("HIGH WIND (%.0f mph)", wx.WindSpeedMPH))
	}

	var precipProb, precipSum float64
	if wx.Today.PrecipProbabilityMax != nil {
		precipProb = *wx.Today.PrecipProbabilityMax
	}
	if wx.Today.PrecipSumIn != nil {
		precipSum = *wx.Today.PrecipSumIn
	}
	if precipProb > 70 || precipSum > 0.5 {
		a.Warnings = append(a.Warnings, "RAIN / CSO RISK")
	}
	a.CSORisk = CSORisk(precipSum, precipProb)

	if wx.AQI != nil {
		aqi := *wx.AQI
		a.AQICategory = AQICategory(aqi)
		switch {
		case aqi > 150:
			a.Issues = append(a.Issues, fmt.Sprintf("POOR AIR QUALITY (AQI %d)", aqi))
		case aqi > 100:
			a.Warnings = append(a.Warnings, fmt.Sprintf("MODERATE AIR QUALITY (AQI %d)", aqi))
		}
	}

	if wx.VisibilityMi != nil {
		switch vis := *wx.VisibilityMi; {
		case vis < 0.5:
			a.Issues = append(a.Issues, "DENSE FOG, LIMITED VISIBILITY")
		case vis < 2:
			a.Warnings = append(a.Warnings, "REDUCED VISIBILITY / FOG")
		}
	}

	if wx.WeatherCode >= 95 {
		a.Issues = append(a.Issues, "THUNDERSTORM ACTIVE")
	}
}

// StageStatus classifies a gauge height against action and flood stage.
func StageStatus(heightFt, actionFt, floodFt float64) string {
	switch {
	case heightFt >= floodFt:
		return StageFlood
	case heightFt >= actionFt:
		return StageAction
	case heightFt >= actionFt-elevatedMarginFt:
		return StageElevated
	default:
		return StageNormal
	}
}

// CSORisk estimates sewage-overflow risk from the day's rain total (inches)
// and maximum precipitation probability (percent).
func CSORisk(precipIn, probabilityPct float64) string {
	switch {
	case precipIn >= 0.5 || probabilityPct >= 70:
		return CSORiskHigh
	case precipIn >= 0.2 || probabilityPct >= 40:
		return CSORiskModerate
	default:
		return CSORiskLow
	}
}

// AQICategory returns the US EPA category name for an AQI value.
func AQICategory(aqi int) string {
	switch {
	case aqi <= 50:
		return "good"
	case aqi <= 100:
		return "moderate"
	case aqi <= 150:
		return "unhealthy for sensitive groups"
	case aqi <= 200:
		return "unhealthy"
	default:
		return "very unhealthy"
	}
}

// Species is one fishing target with a short where-to tip.
type Species struct {
	Name string `json:"name"`
	Tip  string `json:"tip"`
}

// Water temperature bands for species advice, in Fahrenheit.
const (
	coldWaterF = 45.0
	coolWaterF = 60.0
)

var (
	coldWaterSpecies = []Species{
		{"Walleye & Sauger", "Active in cold water; fish deep holes near dams"},
		{"Channel Catfish", "Still feeding; try deep channel structure"},
		{"Muskie", "Slow but big fish possible near Lock & Dam pools"},
	}
	coolWaterSpecies = []Species{
		{"Smallmouth Bass", "Pre-spawn; warming up near bridge piers & boulders"},
		{"Walleye", "Excellent; check Allegheny islands & creek mouths"},
		{"White Bass", "Schools forming near dam tailwaters"},
	}
	warmWaterSpecies = []Species{
		{"Smallmouth Bass", "Prime time; bridge piers & rocky banks throughout city"},
		{"Flathead Catfish", "60+ lb fish in city limits; fish after dark"},
		{"Muskellunge", "Back channels of Allegheny islands"},
	}
	yearRoundSpecies = []Species{
		{"Smallmouth Bass", "Bridge piers, mooring structures, rocky banks"},
		{"Walleye & Sauger", "Allegheny islands, creek mouths, dam tailwaters"},
		{"Channel & Flathead Catfish", "Deep holes and confluence areas; some 60+ lbs"},
	}
)

// SpeciesAdvice picks target species for a water temperature in Celsius.
// A nil temperature gives the year-round list.
func SpeciesAdvice(waterTempC *float64) []Species {
	list := yearRoundSpecies
	if waterTempC != nil {
		switch f := *waterTempC*9/5 + 32; {
		case f < coldWaterF:
			list = coldWaterSpecies
		case f < coolWaterF:
			list = coolWaterSpecies
		default:
			list = warmWaterSpecies
		}
	}
	return append([]Species(nil), list...)
}

func usable(rec SourceRecord) Payload {
	if rec.Status == StatusUnavailable {
		return nil
	}
	return rec.Payload
}

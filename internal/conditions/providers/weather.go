package providers

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/river-hud/internal/conditions"
)

const (
	metersPerMile = 1609.34
	feetPerMile   = 5280.0
)

// WeatherClient reads Open-Meteo current conditions, the daily outlook and
// air quality for a site's coordinates.
type WeatherClient struct {
	forecastURL   string
	airQualityURL string
	req           *requester
	aqReq         *requester // separate breaker for the air-quality endpoint
}

// NewWeatherClient creates an Open-Meteo client.
func NewWeatherClient(cfg ClientConfig) *WeatherClient {
	return &WeatherClient{
		forecastURL:   "https://api.open-meteo.com/v1/forecast",
		airQualityURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
		req:           newRequester(conditions.SourceWeather, cfg),
		aqReq:         newRequester(conditions.SourceWeather, cfg),
	}
}

func (c *WeatherClient) ID() conditions.SourceID {
	return conditions.SourceWeather
}

type openMeteoForecast struct {
	CurrentUnits struct {
		Visibility string `json:"visibility"`
	} `json:"current_units"`
	Current *struct {
		Time          *int64   `json:"time" validate:"required"`
		Temperature   *float64 `json:"temperature_2m" validate:"required"`
		Apparent      *float64 `json:"apparent_temperature"`
		WindSpeed     *float64 `json:"wind_speed_10m" validate:"required"`
		WindDirection *float64 `json:"wind_direction_10m"`
		WindGusts     *float64 `json:"wind_gusts_10m"`
		Precipitation *float64 `json:"precipitation"`
		WeatherCode   *int     `json:"weather_code"`
		CloudCover    *float64 `json:"cloud_cover"`
		Visibility    *float64 `json:"visibility"`
	} `json:"current" validate:"required"`
	Daily struct {
		Time              []int64    `json:"time"`
		Sunrise           []int64    `json:"sunrise"`
		Sunset            []int64    `json:"sunset"`
		UVIndexMax        []*float64 `json:"uv_index_max"`
		PrecipProbability []*float64 `json:"precipitation_probability_max"`
		PrecipSum         []*float64 `json:"precipitation_sum"`
		WindSpeedMax      []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

type openMeteoAirQuality struct {
	Current *struct {
		USAQI *float64 `json:"us_aqi"`
		PM25  *float64 `json:"pm2_5"`
	} `json:"current" validate:"required"`
}

// Fetch returns current weather for the site. Air quality is best effort:
// if that call fails the AQI fields are left empty.
func (c *WeatherClient) Fetch(ctx context.Context, site conditions.Site) (conditions.SourceRecord, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", site.Lat))
	values.Set("longitude", fmt.Sprintf("%f", site.Lon))
	values.Set("current", "temperature_2m,apparent_temperature,wind_speed_10m,wind_direction_10m,wind_gusts_10m,precipitation,weather_code,cloud_cover,visibility")
	values.Set("daily", "sunrise,sunset,uv_index_max,precipitation_probability_max,wind_speed_10m_max,precipitation_sum")
	values.Set("timezone", "America/New_York")
	values.Set("timeformat", "unixtime")
	values.Set("forecast_days", "2")
	values.Set("wind_speed_unit", "mph")
	values.Set("temperature_unit", "fahrenheit")
	values.Set("precipitation_unit", "inch")

	body, err := c.req.get(ctx, c.forecastURL+"?"+values.Encode(), "application/json")
	if err != nil {
		return conditions.SourceRecord{}, err
	}

	var fc openMeteoForecast
	if err := c.req.decode(body, &fc); err != nil {
		return conditions.SourceRecord{}, err
	}

	cur := fc.Current
	wx := conditions.WeatherConditions{
		TemperatureF:     *cur.Temperature,
		ApparentF:        valueOr(cur.Apparent, *cur.Temperature),
		WindSpeedMPH:     *cur.WindSpeed,
		WindDirectionDeg: valueOr(cur.WindDirection, 0),
		WindGustMPH:      valueOr(cur.WindGusts, 0),
		PrecipitationIn:  valueOr(cur.Precipitation, 0),
		CloudCoverPct:    valueOr(cur.CloudCover, 0),
	}
	wx.WindCompass = WindCompass(wx.WindDirectionDeg)
	if cur.WeatherCode != nil {
		wx.WeatherCode = *cur.WeatherCode
	}
	wx.Description = WeatherDescription(wx.WeatherCode)
	if cur.Visibility != nil {
		miles := visibilityMiles(*cur.Visibility, fc.CurrentUnits.Visibility)
		wx.VisibilityMi = &miles
	}

	wx.Today = fc.dailyOutlook(0)
	if len(fc.Daily.Time) > 1 {
		tomorrow := fc.dailyOutlook(1)
		wx.Tomorrow = &tomorrow
	}

	c.addAirQuality(ctx, site, &wx)

	return c.req.record(time.Unix(*cur.Time, 0), wx), nil
}

func (c *WeatherClient) addAirQuality(ctx context.Context, site conditions.Site, wx *conditions.WeatherConditions) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", site.Lat))
	values.Set("longitude", fmt.Sprintf("%f", site.Lon))
	values.Set("current", "us_aqi,pm2_5")
	values.Set("timezone", "America/New_York")

	body, err := c.aqReq.get(ctx, c.airQualityURL+"?"+values.Encode(), "application/json")
	if err == nil {
		var aq openMeteoAirQuality
		if err = c.aqReq.decode(body, &aq); err == nil {
			if aq.Current.USAQI != nil {
				aqi := int(math.Round(*aq.Current.USAQI))
				wx.AQI = &aqi
			}
			wx.PM25 = aq.Current.PM25
			return
		}
	}
	c.aqReq.cfg.Logger.Debug("air quality unavailable", "site", site.ID(), "error", err)
}

func (fc *openMeteoForecast) dailyOutlook(i int) conditions.DailyOutlook {
	d := fc.Daily
	out := conditions.DailyOutlook{
		UVIndexMax:           at(d.UVIndexMax, i),
		PrecipProbabilityMax: at(d.PrecipProbability, i),
		PrecipSumIn:          at(d.PrecipSum, i),
		WindMaxMPH:           at(d.WindSpeedMax, i),
	}
	if i < len(d.Sunrise) {
		t := time.Unix(d.Sunrise[i], 0).UTC()
		out.Sunrise = &t
	}
	if i < len(d.Sunset) {
		t := time.Unix(d.Sunset[i], 0).UTC()
		out.Sunset = &t
	}
	return out
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func visibilityMiles(v float64, unit string) float64 {
	var miles float64
	if strings.EqualFold(unit, "ft") {
		miles = v / feetPerMile
	} else {
		miles = v / metersPerMile
	}
	return math.Round(miles*10) / 10
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindCompass converts a bearing in degrees to a 16-point compass label.
func WindCompass(deg float64) string {
	idx := int(math.Round(deg/22.5)) % 16
	if idx < 0 {
		idx += 16
	}
	return compassPoints[idx]
}

var wmoDescriptions = map[int]string{
	0: "Clear", 1: "Mainly Clear", 2: "Partly Cloudy", 3: "Overcast",
	45: "Fog", 48: "Freezing Fog",
	51: "Light Drizzle", 53: "Drizzle", 55: "Heavy Drizzle",
	61: "Light Rain", 63: "Rain", 65: "Heavy Rain",
	71: "Light Snow", 73: "Snow", 75: "Heavy Snow", 77: "Snow Grains",
	80: "Light Showers", 81: "Showers", 82: "Heavy Showers",
	85: "Light Snow Showers", 86: "Snow Showers",
	95: "Thunderstorm", 96: "Thunderstorm+Hail", 99: "Heavy T-Storm+Hail",
}

// WeatherDescription names a WMO weather code.
func WeatherDescription(code int) string {
	if d, ok := wmoDescriptions[code]; ok {
		return d
	}
	return "Unknown"
}

package providers

import "github.com/i474232898/river-hud/internal/conditions"

// All returns one client per feed, each with its own circuit breaker.
func All(cfg ClientConfig) []conditions.Source {
	return []conditions.Source{
		NewGaugeClient(cfg),
		NewWeatherClient(cfg),
		NewAlertsClient(cfg),
		NewForecastClient(cfg),
		NewLunarClient(cfg),
		NewWaterQualityClient(cfg),
		NewOverflowClient(cfg),
	}
}

package conditions

import "strings"

// Pittsburgh reference point (Point State Park) used by the area-wide feeds.
const (
	ReferenceLat = 40.4406
	ReferenceLon = -79.9959
)

var sites = []Site{
	{
		RiverName:       "Monongahela",
		PrimaryGaugeID:  "03085000",
		DisplayLocation: "Braddock",
		NWPSID:          "BRKP1",
		ActionStageFt:   17.0,
		FloodStageFt:    25.0,
		Lat:             ReferenceLat,
		Lon:             ReferenceLon,
		UpstreamWarning: &UpstreamWarning{
			GaugeID:       "03075070",
			Name:          "Youghiogheny at Connellsville",
			LeadTimeHours: 6,
		},
	},
	{
		RiverName:       "Allegheny",
		PrimaryGaugeID:  "03049640",
		DisplayLocation: "Acmetonia",
		NWPSID:          "PTBP1",
		ActionStageFt:   18.0,
		FloodStageFt:    25.0,
		Lat:             ReferenceLat,
		Lon:             ReferenceLon,
		UpstreamWarning: &UpstreamWarning{
			GaugeID:       "03049500",
			Name:          "Allegheny at Natrona",
			LeadTimeHours: 2,
		},
	},
	{
		// Downstream of the confluence; no tracked upstream gauge.
		RiverName:       "Ohio",
		PrimaryGaugeID:  "03086000",
		DisplayLocation: "Sewickley",
		NWPSID:          "SEWP1",
		ActionStageFt:   16.0,
		FloodStageFt:    24.0,
		Lat:             ReferenceLat,
		Lon:             ReferenceLon,
	},
}

// Sites returns the monitored rivers in display order.
func Sites() []Site {
	out := make([]Site, len(sites))
	for i, s := range sites {
		out[i] = copySite(s)
	}
	return out
}

// ResolveSite looks up a river by name, ignoring case and surrounding space.
func ResolveSite(riverName string) (Site, error) {
	name := strings.TrimSpace(riverName)
	for _, s := range sites {
		if strings.EqualFold(s.RiverName, name) {
			return copySite(s), nil
		}
	}
	return Site{}, &UnknownSiteError{Name: riverName}
}

// copySite keeps callers from mutating the shared upstream configuration.
func copySite(s Site) Site {
	if s.UpstreamWarning != nil {
		up := *s.UpstreamWarning
		s.UpstreamWarning = &up
	}
	return s
}

package conditions

import "time"

const earlyWarningCaveat = "Projection from the upstream gauge using a typical travel time. Not an official forecast; rain between the gauges, dam operations and tributary inflow are not accounted for."

// projectEarlyWarning turns the upstream gauge record into a time-shifted
// signal for the downstream site. It returns nil when the record is
// unavailable, carries no flow or stage value, or was observed longer ago
// than lead time plus tolerance.
func projectEarlyWarning(up UpstreamWarning, rec SourceRecord, now time.Time, tolerance time.Duration) *EarlyWarning {
	if rec.Status == StatusUnavailable || rec.ObservedAt.IsZero() {
		return nil
	}
	reading, ok := rec.Payload.(GaugeReading)
	if !ok {
		return nil
	}

	lead := up.LeadTime()
	if now.Sub(rec.ObservedAt) > lead+tolerance {
		return nil
	}

	w := &EarlyWarning{
		UpstreamGaugeID:    up.GaugeID,
		UpstreamName:       up.Name,
		UpstreamFlowCFS:    reading.FlowCFS,
		UpstreamStageFt:    reading.GaugeHeightFt,
		UpstreamObservedAt: rec.ObservedAt,
		UpstreamStatus:     rec.Status,
		LeadTimeHours:      up.LeadTimeHours,
		ProjectedArrival:   rec.ObservedAt.Add(lead),
		Caveat:             earlyWarningCaveat,
	}

	switch {
	case reading.FlowCFS != nil:
		w.UpstreamValue = *reading.FlowCFS
		w.Unit = "cfs"
		w.Trend = reading.FlowTrendCFS
	case reading.GaugeHeightFt != nil:
		w.UpstreamValue = *reading.GaugeHeightFt
		w.Unit = "ft"
		w.Trend = reading.StageTrendFt
	default:
		return nil
	}

	return w
}

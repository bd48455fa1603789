package measure

import (
	"math"
	"time"
)

// DropStats counts what normalization intentionally left out.
type DropStats struct {
	NonRealGroups   int
	UnknownMeasures int
}

func (d DropStats) Add(other DropStats) DropStats {
	return DropStats{
		NonRealGroups:   d.NonRealGroups + other.NonRealGroups,
		UnknownMeasures: d.UnknownMeasures + other.UnknownMeasures,
	}
}

// Decode returns the real value of a measure: value * 10^unit.
func Decode(value int64, unit int) float64 {
	if unit < 0 {
		// dividing by an exact power of ten keeps 80000e-3 at exactly 80
		return float64(value) / math.Pow10(-unit)
	}
	return float64(value) * math.Pow10(unit)
}

// NormalizeGroups maps raw getmeas groups onto samples expressed in loc.
// Groups that are not real measurements and measures of unknown type are
// skipped; both are reported in DropStats.
func NormalizeGroups(groups []MeasureGroup, loc *time.Location) ([]Sample, DropStats) {
	if loc == nil {
		loc = time.Local
	}

	var stats DropStats
	samples := make([]Sample, 0, len(groups))
	for _, grp := range groups {
		if grp.Category != CategoryReal {
			stats.NonRealGroups++
			continue
		}

		values := make(map[Metric]float64, len(grp.Measures))
		for _, m := range grp.Measures {
			metric, ok := MeasureType(m.Type).Metric()
			if !ok {
				stats.UnknownMeasures++
				continue
			}
			values[metric] = Decode(m.Value, m.Unit)
		}

		unixTs := grp.Date
		if unixTs == 0 {
			unixTs = grp.Created
		}

		var deviceID string
		if grp.DeviceID != nil {
			deviceID = *grp.DeviceID
		}

		samples = append(samples, Sample{
			Timestamp: time.Unix(unixTs, 0).In(loc),
			GroupID:   grp.GrpID,
			DeviceID:  deviceID,
			Values:    values,
		})
	}

	SortByTimestamp(samples)

	return samples, stats
}

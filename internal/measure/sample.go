package measure

import (
	"sort"
	"time"
)

// Metric is one of the body composition values a scale reports, in kilograms.
type Metric int

const (
	Weight Metric = iota
	FatFreeMass
	FatMass
	MuscleMass
	BoneMass
	Hydration
)

// AllMetrics lists every metric in a stable order.
var AllMetrics = []Metric{Weight, FatFreeMass, FatMass, MuscleMass, BoneMass, Hydration}

func (m Metric) String() string {
	switch m {
	case Weight:
		return "weight"
	case FatFreeMass:
		return "fat_free_mass"
	case FatMass:
		return "fat_mass"
	case MuscleMass:
		return "muscle_mass"
	case BoneMass:
		return "bone_mass"
	case Hydration:
		return "hydration"
	default:
		return "unknown"
	}
}

// MeasureType is the Withings numeric code of a measure.
// https://developer.withings.com/api-reference/#tag/measure/operation/measure-getmeas
type MeasureType int

const (
	TypeWeight      MeasureType = 1
	TypeFatFreeMass MeasureType = 5
	TypeFatMass     MeasureType = 8
	TypeMuscleMass  MeasureType = 76
	TypeHydration   MeasureType = 77
	TypeBoneMass    MeasureType = 88
)

var typeToMetric = map[MeasureType]Metric{
	TypeWeight:      Weight,
	TypeFatFreeMass: FatFreeMass,
	TypeFatMass:     FatMass,
	TypeMuscleMass:  MuscleMass,
	TypeHydration:   Hydration,
	TypeBoneMass:    BoneMass,
}

// ScaleTypes are the measure types requested from getmeas by default.
func ScaleTypes() []MeasureType {
	return []MeasureType{
		TypeWeight,
		TypeFatFreeMass,
		TypeFatMass,
		TypeMuscleMass,
		TypeBoneMass,
		TypeHydration,
	}
}

// Metric returns the sample slot for a type code; false for codes we don't know.
func (t MeasureType) Metric() (Metric, bool) {
	m, ok := typeToMetric[t]
	return m, ok
}

// Sample is one measurement event. A metric missing from Values is absent,
// which is different from a zero reading.
type Sample struct {
	Timestamp time.Time
	GroupID   int64
	DeviceID  string
	Values    map[Metric]float64
}

func (s Sample) Value(m Metric) (float64, bool) {
	v, ok := s.Values[m]
	return v, ok
}

// SortByTimestamp sorts samples in place, keeping the input order of equal timestamps.
func SortByTimestamp(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
}

// FilterRange keeps the samples with start <= timestamp < end.
func FilterRange(samples []Sample, start, end time.Time) []Sample {
	filtered := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.Before(start) || !s.Timestamp.Before(end) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

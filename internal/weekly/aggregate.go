package weekly

import (
	"math"
	"sort"
	"time"

	"github.com/2beens/withings2weeks/internal/measure"
	"github.com/2beens/withings2weeks/internal/weeks"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
)

// DailyAverage holds the per-metric means of one calendar day. Date is
// midnight of that day in the location of its samples.
type DailyAverage struct {
	Date   time.Time
	Values map[measure.Metric]float64
}

// WeeklyAverage holds the per-metric means of the daily means of one ISO week.
type WeeklyAverage struct {
	Week   weeks.ID
	Days   int
	Values map[measure.Metric]float64
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

// Daily groups samples by the calendar date of their timestamp and averages
// each metric over the samples where it is present.
func Daily(samples []measure.Sample) []DailyAverage {
	type dayBucket struct {
		date   time.Time
		values map[measure.Metric][]float64
	}

	buckets := make(map[civilDate]*dayBucket)
	for _, s := range samples {
		y, m, d := s.Timestamp.Date()
		key := civilDate{year: y, month: m, day: d}
		bucket, ok := buckets[key]
		if !ok {
			bucket = &dayBucket{
				date:   time.Date(y, m, d, 0, 0, 0, 0, s.Timestamp.Location()),
				values: make(map[measure.Metric][]float64),
			}
			buckets[key] = bucket
		}
		for metric, v := range s.Values {
			bucket.values[metric] = append(bucket.values[metric], v)
		}
	}

	daily := make([]DailyAverage, 0, len(buckets))
	for _, bucket := range buckets {
		daily = append(daily, DailyAverage{
			Date:   bucket.date,
			Values: meanPerMetric(bucket.values),
		})
	}
	sort.Slice(daily, func(i, j int) bool {
		return daily[i].Date.Before(daily[j].Date)
	})

	return daily
}

// Weekly groups daily averages by ISO week and averages each metric over the
// days where it is present. Every day has the same weight regardless of how
// many samples it had.
func Weekly(daily []DailyAverage) []WeeklyAverage {
	type weekBucket struct {
		days   int
		values map[measure.Metric][]float64
	}

	buckets := make(map[weeks.ID]*weekBucket)
	for _, day := range daily {
		id := weeks.IDOf(day.Date)
		bucket, ok := buckets[id]
		if !ok {
			bucket = &weekBucket{values: make(map[measure.Metric][]float64)}
			buckets[id] = bucket
		}
		bucket.days++
		for metric, v := range day.Values {
			bucket.values[metric] = append(bucket.values[metric], v)
		}
	}

	weekly := make([]WeeklyAverage, 0, len(buckets))
	for id, bucket := range buckets {
		weekly = append(weekly, WeeklyAverage{
			Week:   id,
			Days:   bucket.days,
			Values: meanPerMetric(bucket.values),
		})
	}
	sort.Slice(weekly, func(i, j int) bool {
		return weekly[i].Week.Code() < weekly[j].Week.Code()
	})

	return weekly
}

// Aggregate runs the daily and weekly stages and lays the result out in the
// fixed output schema.
func Aggregate(samples []measure.Sample) Table {
	daily := Daily(samples)
	weekly := Weekly(daily)
	log.Debugf("aggregated %d samples into %d days and %d weeks", len(samples), len(daily), len(weekly))
	return NewTable(weekly)
}

func meanPerMetric(values map[measure.Metric][]float64) map[measure.Metric]float64 {
	means := make(map[measure.Metric]float64, len(values))
	for metric, vals := range values {
		vals = finite(vals)
		if len(vals) == 0 {
			continue
		}
		mean, err := stats.Mean(vals)
		if err != nil {
			log.Errorf("mean of %s: %s", metric, err)
			continue
		}
		means[metric] = mean
	}
	return means
}

// finite drops NaN and infinite readings, they count as absent.
func finite(vals []float64) []float64 {
	kept := vals[:0:0]
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}

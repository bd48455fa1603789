package weeks

import (
	"time"
)

// Range is a half-open interval [Start, End) aligned to ISO week boundaries.
type Range struct {
	Start     time.Time // inclusive, Monday 00:00
	End       time.Time // exclusive, Monday 00:00 of the week after EndCode
	StartCode string
	EndCode   string // last fully included week
}

// Days returns the number of calendar days covered by the range.
func (r Range) Days() int {
	sy, sm, sd := r.Start.Date()
	ey, em, ed := r.End.Date()
	start := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// ResolveRange turns week tokens into concrete boundaries.
//
// An empty endToken means "through the last completed week": the range then
// ends at Monday 00:00 of the ISO week containing now, and EndCode names the
// week before it. now is never read from the clock here.
func ResolveRange(startToken, endToken string, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.Local
	}

	startID, err := ParseID(startToken, now)
	if err != nil {
		return Range{}, err
	}
	start, err := Start(startID, loc)
	if err != nil {
		return Range{}, err
	}

	rng := Range{
		Start:     start,
		StartCode: startID.Code(),
	}

	if endToken != "" {
		endID, err := ParseID(endToken, now)
		if err != nil {
			return Range{}, err
		}
		rng.End, err = FollowingStart(endID, loc)
		if err != nil {
			return Range{}, err
		}
		rng.EndCode = endID.Code()
		return rng, nil
	}

	currentWeekStart, err := Start(IDOf(now.In(loc)), loc)
	if err != nil {
		return Range{}, err
	}
	previousMonday := currentWeekStart.AddDate(0, 0, -7)

	rng.End = currentWeekStart
	rng.EndCode = IDOf(previousMonday).Code()

	return rng, nil
}

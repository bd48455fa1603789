package weeks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidFormat = errors.New("invalid week format")
	ErrOutOfRange    = errors.New("week number out of range 1..53")
	ErrInvalidWeek   = errors.New("week does not exist in ISO calendar")
)

// TokenError carries the user supplied token that could not be turned into a week.
type TokenError struct {
	Token string
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Token)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// ID is an ISO-8601 (year, week) pair.
type ID struct {
	Year int
	Week int
}

// Code returns the canonical YYYYWww label, e.g. 2025W05.
func (id ID) Code() string {
	return fmt.Sprintf("%04dW%02d", id.Year, id.Week)
}

func (id ID) String() string {
	return id.Code()
}

// IDOf returns the ISO week the given instant falls in, using its own location.
func IDOf(t time.Time) ID {
	year, week := t.ISOWeek()
	return ID{Year: year, Week: week}
}

// ParseID parses either a full YYYYWww token or a short 1-2 digit week number.
// Short tokens are resolved against the ISO year of now.
func ParseID(token string, now time.Time) (ID, error) {
	value := strings.TrimSpace(token)
	if value == "" {
		return ID{}, &TokenError{Token: token, Err: ErrInvalidFormat}
	}

	var id ID
	if yearPart, weekPart, found := strings.Cut(value, "W"); found {
		if !isDigits(yearPart) || !isDigits(weekPart) {
			return ID{}, &TokenError{Token: token, Err: ErrInvalidFormat}
		}
		year, err := strconv.Atoi(yearPart)
		if err != nil {
			return ID{}, &TokenError{Token: token, Err: ErrInvalidFormat}
		}
		week, err := strconv.Atoi(weekPart)
		if err != nil {
			return ID{}, &TokenError{Token: token, Err: ErrInvalidFormat}
		}
		id = ID{Year: year, Week: week}
	} else {
		if !isDigits(value) || len(value) > 2 {
			return ID{}, &TokenError{Token: token, Err: ErrInvalidFormat}
		}
		week, err := strconv.Atoi(value)
		if err != nil {
			return ID{}, &TokenError{Token: token, Err: ErrInvalidFormat}
		}
		year, _ := now.ISOWeek()
		id = ID{Year: year, Week: week}
	}

	// 53 is accepted for every year, Start rejects the ones that don't exist
	if id.Week < 1 || id.Week > 53 {
		return ID{}, &TokenError{Token: token, Err: ErrOutOfRange}
	}

	return id, nil
}

// WeeksInYear returns 52 or 53, the number of ISO weeks in the given ISO year.
func WeeksInYear(year int) int {
	// 28 Dec is always in the last ISO week of its year
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// Start returns Monday 00:00 of the given ISO week in loc.
// A nil loc means the local wall clock.
func Start(id ID, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if id.Year < 1 || id.Year > 9999 || id.Week < 1 || id.Week > WeeksInYear(id.Year) {
		return time.Time{}, &TokenError{Token: id.Code(), Err: ErrInvalidWeek}
	}

	// 4 Jan is always in week 1
	jan4 := time.Date(id.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since monday
	day := 4 - offset + (id.Week-1)*7

	return time.Date(id.Year, time.January, day, 0, 0, 0, 0, loc), nil
}

// FollowingStart returns Monday 00:00 of the week right after id, rolling
// over to week 1 of the next year when id is the last week of its year.
func FollowingStart(id ID, loc *time.Location) (time.Time, error) {
	next, err := Start(ID{Year: id.Year, Week: id.Week + 1}, loc)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, ErrInvalidWeek) {
		return time.Time{}, err
	}

	// id itself must exist, otherwise week 54 of a 52 week year would roll over silently
	if _, err := Start(id, loc); err != nil {
		return time.Time{}, err
	}

	return Start(ID{Year: id.Year + 1, Week: 1}, loc)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package measure

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CategoryReal marks a group as an actual scale reading, as opposed to a
// user objective (category 2).
const CategoryReal = 1

// GetMeasResponse is the envelope returned by measure?action=getmeas.
type GetMeasResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
	Error  string          `json:"error,omitempty"`
}

type GetMeasBody struct {
	UpdateTime  int64          `json:"updatetime"`
	Timezone    string         `json:"timezone"`
	MeasureGrps []MeasureGroup `json:"measuregrps"`
	More        Flag           `json:"more"`
	Offset      *int64         `json:"offset"`
}

// MeasureGroup is one batch of measures taken together by a device.
type MeasureGroup struct {
	GrpID    int64     `json:"grpid"`
	Attrib   int       `json:"attrib"`
	Date     int64     `json:"date"`
	Created  int64     `json:"created"`
	Modified int64     `json:"modified"`
	Category int       `json:"category"`
	DeviceID *string   `json:"deviceid"`
	Measures []Measure `json:"measures"`
}

// Measure is a single (type, mantissa, exponent) triple.
type Measure struct {
	Value int64 `json:"value"`
	Type  int   `json:"type"`
	Unit  int   `json:"unit"`
}

// Flag accepts the 0/1 integers Withings uses as well as plain JSON booleans.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := string(data)
	switch raw {
	case "null", "false", "0", `"0"`, `""`:
		*f = false
		return nil
	case "true":
		*f = true
		return nil
	}

	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid flag value %s", data)
	}
	*f = n != 0
	return nil
}

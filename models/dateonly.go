package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// DateOnly is a calendar date at local midnight.
type DateOnly struct {
	time.Time
}

// DateOf strips the time of day from t in the server's local zone.
func DateOf(t time.Time) DateOnly {
	local := t.In(time.Local)
	return DateOnly{time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)}
}

// DateFromParts rebuilds a date read back from storage, which may carry
// any zone, keeping its year/month/day.
func DateFromParts(t time.Time) DateOnly {
	return DateOnly{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)}
}

func ParseDate(value string) (DateOnly, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.Local)
	if err != nil {
		return DateOnly{}, err
	}
	return DateOnly{t}, nil
}

func (d DateOnly) String() string {
	return d.Format(DateLayout)
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date format: %v", err)
	}
	*d = parsed
	return nil
}

func (d DateOnly) MarshalJSON() ([]byte, error) {
	if d.Time.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(d.Format(DateLayout))
}

// Package timezone converts event times between the venue's local clock
// (America/Lima) and UTC.
package timezone

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	Zone = "America/Lima"

	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
	// ISOLayout matches JavaScript's Date.toISOString output.
	ISOLayout   = "2006-01-02T15:04:05.000Z"
)

var (
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTime      = errors.New("invalid time, expected HH:MM")
	ErrInvalidTimestamp = errors.New("invalid ISO timestamp")
)

var location = mustLoad()

func mustLoad() *time.Location {
	loc, err := time.LoadLocation(Zone)
	if err != nil {
		// Lima has no DST, so a fixed offset is exact.
		return time.FixedZone("PET", -5*60*60)
	}
	return loc
}

// Location returns the venue time zone.
func Location() *time.Location {
	return location
}

// LocalToUTC interprets date ("YYYY-MM-DD") and clock ("HH:MM" or "HH:MM:SS")
// as Lima wall time and returns the instant in UTC.
func LocalToUTC(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	if date == "" {
		return time.Time{}, ErrInvalidDate
	}
	d, err := time.ParseInLocation(DateLayout, date, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	if clock == "" {
		return time.Time{}, ErrInvalidTime
	}
	layout := ClockLayout
	if strings.Count(clock, ":") == 2 {
		layout = "15:04:05"
	}
	c, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}

	local := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, location)
	return local.UTC(), nil
}

// LocalToUTCISO is LocalToUTC formatted with ISOLayout.
func LocalToUTCISO(date, clock string) (string, error) {
	t, err := LocalToUTC(date, clock)
	if err != nil {
		return "", err
	}
	return FormatISO(t), nil
}

// UTCISOToLocal splits an ISO-8601 instant into Lima date and clock (see ToLocal).
func UTCISOToLocal(iso string) (date, clock string, err error) {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return "", "", ErrInvalidTimestamp
	}
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTimestamp, iso)
	}
	date, clock = ToLocal(t)
	return date, clock, nil
}

// ToLocal returns the Lima date and clock of t. The clock is "HH:MM", or
// "HH:MM:SS" when t has non-zero seconds, so LocalToUTC round-trips.
func ToLocal(t time.Time) (date, clock string) {
	local := t.In(location)
	layout := ClockLayout
	if local.Second() != 0 {
		layout = "15:04:05"
	}
	return local.Format(DateLayout), local.Format(layout)
}

func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// Package clock provides a wall-clock time of day without a date or zone.
package clock

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day is the length of one day. Valid times of day are in [0, Day).
const Day = Time(24 * time.Hour)

var ErrInvalidTime = errors.New("invalid time of day, expected HH:MM or HH:MM:SS")

// Time is a time of day stored as the offset from midnight.
// Adding a duration may move it past Day; such values only take part in
// interval arithmetic and are never persisted.
type Time time.Duration

// New returns the time of day hour:minute.
func New(hour, minute int) Time {
	return Time(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// FromTime extracts the time of day from t in t's location.
func FromTime(t time.Time) Time {
	h, m, s := t.Clock()
	return Time(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// Parse reads "HH:MM" or "HH:MM:SS".
func Parse(s string) (Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, ErrInvalidTime
	}

	limits := []int{23, 59, 59}
	var vals [3]int
	for i, p := range parts {
		if len(p) != 2 {
			return 0, ErrInvalidTime
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, ErrInvalidTime
		}
		vals[i] = n
	}

	return Time(time.Duration(vals[0])*time.Hour +
		time.Duration(vals[1])*time.Minute +
		time.Duration(vals[2])*time.Second), nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Time {
	t, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("clock: %q: %v", s, err))
	}
	return t
}

// Add returns t shifted by d.
func (t Time) Add(d time.Duration) Time {
	return t + Time(d)
}

// AddMinutes returns t shifted by n minutes.
func (t Time) AddMinutes(n int) Time {
	return t.Add(time.Duration(n) * time.Minute)
}

// Duration returns the offset from midnight.
func (t Time) Duration() time.Duration {
	return time.Duration(t)
}

// Valid reports whether t lies within a single day.
func (t Time) Valid() bool {
	return t >= 0 && t < Day
}

// On combines t with the calendar date of d in d's location.
func (t Time) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.Location()).Add(time.Duration(t))
}

// String formats t as HH:MM, or HH:MM:SS when seconds are set.
func (t Time) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (t Time) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Time) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidTime
	}
	return t.UnmarshalText([]byte(s))
}

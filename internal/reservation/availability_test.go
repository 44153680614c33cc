package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
)

func iv(start, end string) Interval {
	return Interval{Start: clock.MustParse(start), End: clock.MustParse(end)}
}

func booked(id int64, start string, duration int, status Status) *Reservation {
	return &Reservation{ID: id, StartTime: clock.MustParse(start), Duration: duration, Status: status}
}

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"abutting after", iv("10:00", "12:00"), iv("12:00", "14:00"), false},
		{"abutting before", iv("12:00", "14:00"), iv("10:00", "12:00"), false},
		{"partial", iv("10:00", "12:00"), iv("11:00", "13:00"), true},
		{"contained", iv("10:00", "14:00"), iv("11:00", "12:00"), true},
		{"identical", iv("10:00", "12:00"), iv("10:00", "12:00"), true},
		{"disjoint", iv("08:00", "09:00"), iv("10:00", "11:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestFindConflict(t *testing.T) {
	day := []*Reservation{
		booked(1, "10:00", 120, StatusCancelled),
		booked(2, "10:00", 120, StatusCompleted),
		booked(3, "12:00", 60, StatusConfirmed),
		booked(4, "18:00", 0, StatusPending), // missing duration counts as 120
	}

	assert.Nil(t, FindConflict(day, iv("10:00", "12:00"), 0), "non-blocking statuses never conflict")
	assert.Equal(t, int64(3), FindConflict(day, iv("11:00", "12:30"), 0).ID)
	assert.Nil(t, FindConflict(day, iv("11:00", "12:30"), 3), "excluded reservation is ignored")
	assert.Nil(t, FindConflict(day, iv("13:00", "18:00"), 0))
	assert.Equal(t, int64(4), FindConflict(day, iv("19:30", "20:30"), 0).ID)
	assert.Nil(t, FindConflict(day, iv("20:00", "21:00"), 0))
	assert.Nil(t, FindConflict(nil, iv("00:00", "23:59"), 0))
}

func TestFreeWindows(t *testing.T) {
	open, close := clock.New(9, 0), clock.New(18, 0)

	tests := []struct {
		name string
		day  []*Reservation
		want []Interval
	}{
		{
			name: "no reservations, full day free",
			want: []Interval{iv("09:00", "18:00")},
		},
		{
			name: "one reservation in the middle",
			day:  []*Reservation{booked(1, "12:00", 60, StatusConfirmed)},
			want: []Interval{iv("09:00", "12:00"), iv("13:00", "18:00")},
		},
		{
			name: "pending blocks like confirmed",
			day:  []*Reservation{booked(1, "10:00", 60, StatusPending)},
			want: []Interval{iv("09:00", "10:00"), iv("11:00", "18:00")},
		},
		{
			name: "cancelled is ignored",
			day:  []*Reservation{booked(1, "10:00", 60, StatusCancelled)},
			want: []Interval{iv("09:00", "18:00")},
		},
		{
			name: "reservation covers the whole day",
			day:  []*Reservation{booked(1, "08:00", 11*60, StatusConfirmed)},
			want: []Interval{},
		},
		{
			name: "overlapping and unsorted",
			day: []*Reservation{
				booked(1, "14:00", 60, StatusConfirmed),
				booked(2, "10:00", 90, StatusConfirmed),
				booked(3, "11:00", 60, StatusPending),
			},
			want: []Interval{iv("09:00", "10:00"), iv("12:00", "14:00"), iv("15:00", "18:00")},
		},
		{
			name: "reservations outside opening hours",
			day: []*Reservation{
				booked(1, "07:00", 60, StatusConfirmed),
				booked(2, "18:00", 60, StatusConfirmed),
			},
			want: []Interval{iv("09:00", "18:00")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FreeWindows(tt.day, open, close))
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusConfirmed))
	assert.True(t, StatusPending.CanTransition(StatusCancelled))
	assert.False(t, StatusPending.CanTransition(StatusCompleted))
	assert.True(t, StatusConfirmed.CanTransition(StatusCompleted))
	assert.False(t, StatusCancelled.CanTransition(StatusPending))
	assert.False(t, StatusCompleted.CanTransition(StatusConfirmed))
	assert.True(t, StatusCancelled.CanTransition(StatusCancelled))

	assert.False(t, Status("archived").Valid())
	assert.False(t, StatusCancelled.Blocking())
	assert.True(t, StatusPending.Blocking())
}

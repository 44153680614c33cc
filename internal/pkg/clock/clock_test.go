package clock

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Time
		wantErr bool
	}{
		{in: "10:00", want: New(10, 0)},
		{in: "09:30", want: New(9, 30)},
		{in: "23:59:30", want: New(23, 59).Add(30 * time.Second)},
		{in: " 00:00 ", want: 0},
		{in: "24:00", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "10", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "10:00", New(10, 0).String())
	assert.Equal(t, "07:05", New(7, 5).String())
	assert.Equal(t, "12:00:15", New(12, 0).Add(15*time.Second).String())
	// Past midnight values keep counting hours.
	assert.Equal(t, "25:00", New(23, 0).AddMinutes(120).String())
}

func TestAddAndValid(t *testing.T) {
	start := New(22, 30)
	end := start.AddMinutes(120)

	assert.True(t, start.Valid())
	assert.False(t, end.Valid())
	assert.Equal(t, 150*time.Minute, (end - New(22, 0)).Duration())
}

func TestFromTimeAndOn(t *testing.T) {
	ts := time.Date(2026, 5, 1, 18, 45, 0, 0, time.UTC)
	got := FromTime(ts)
	assert.Equal(t, New(18, 45), got)

	day := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 2, 18, 45, 0, 0, time.UTC), got.On(day))
}

func TestJSON(t *testing.T) {
	type payload struct {
		Start Time `json:"start"`
	}

	b, err := json.Marshal(payload{Start: New(19, 15)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"19:15"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"start":"08:00:00"}`), &p))
	assert.Equal(t, New(8, 0), p.Start)

	err = json.Unmarshal([]byte(`{"start":"late"}`), &p)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"start":800}`), &p)
	assert.Error(t, err)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	d, err := New("06:30", nil)
	require.NoError(t, err)
	assert.Equal(t, 6, d.Hour)
	assert.Equal(t, 30, d.Minute)

	for _, bad := range []string{"", "6", "25:00", "06:60", "noon"} {
		_, err := New(bad, nil)
		assert.Error(t, err, bad)
	}
}

func TestNext(t *testing.T) {
	d, err := New("06:00", nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"earlier same day", time.Date(2024, 2, 3, 5, 59, 0, 0, time.UTC), time.Date(2024, 2, 3, 6, 0, 0, 0, time.UTC)},
		{"exactly at time", time.Date(2024, 2, 3, 6, 0, 0, 0, time.UTC), time.Date(2024, 2, 4, 6, 0, 0, 0, time.UTC)},
		{"later same day", time.Date(2024, 2, 3, 23, 59, 0, 0, time.UTC), time.Date(2024, 2, 4, 6, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2024, 2, 29, 7, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)},
		{"non-UTC input", time.Date(2024, 2, 3, 1, 0, 0, 0, time.FixedZone("EST", -5*3600)), time.Date(2024, 2, 4, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Next(tt.now))
		})
	}
}

func TestNextAcrossMidnight(t *testing.T) {
	d, err := New("00:15", nil)
	require.NoError(t, err)
	got := d.Next(time.Date(2024, 12, 31, 23, 50, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC), got)
}

func TestRun(t *testing.T) {
	d, err := New("06:00", nil)
	require.NoError(t, err)
	d.now = func() time.Time { return time.Date(2024, 2, 3, 5, 0, 0, 0, time.UTC) }

	var waits []time.Duration
	d.after = func(dur time.Duration) <-chan time.Time {
		waits = append(waits, dur)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err = d.Run(ctx, func(context.Context) {
		calls++
		if calls == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
	require.NotEmpty(t, waits)
	assert.Equal(t, time.Hour, waits[0])
}

func TestRunStopsWhileWaiting(t *testing.T) {
	d, err := New("06:00", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, func(context.Context) { t.Error("fn must not run") }) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

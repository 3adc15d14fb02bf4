package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scienceol/caffeine/internal/power"
	"github.com/scienceol/caffeine/internal/session"
)

func TestSessionLength(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		minutesSet bool
		minutes    uint64
		forSet     bool
		d          time.Duration
		want       *uint64
		wantErr    bool
	}{
		{name: "unbounded"},
		{name: "positional minutes", args: []string{"30"}, want: session.Seconds(1800)},
		{name: "minutes flag", minutesSet: true, minutes: 5, want: session.Seconds(300)},
		{name: "for flag", forSet: true, d: 90 * time.Second, want: session.Seconds(90)},
		{name: "for truncates", forSet: true, d: 1500 * time.Millisecond, want: session.Seconds(1)},
		{name: "for too short", forSet: true, d: 500 * time.Millisecond, wantErr: true},
		{name: "zero minutes", args: []string{"0"}, wantErr: true},
		{name: "zero minutes flag", minutesSet: true, wantErr: true},
		{name: "not a number", args: []string{"ten"}, wantErr: true},
		{name: "negative", args: []string{"-5"}, wantErr: true},
		{name: "given twice", args: []string{"5"}, minutesSet: true, minutes: 5, wantErr: true},
		{name: "largest minutes", args: []string{strconv.FormatUint(session.MaxSeconds/60, 10)}, want: session.Seconds(session.MaxSeconds / 60 * 60)},
		{name: "minutes overflow", args: []string{"307445734561825862"}, wantErr: true},
		{name: "minutes flag overflow", minutesSet: true, minutes: session.MaxSeconds/60 + 1, wantErr: true},
		{name: "minutes and for", minutesSet: true, minutes: 5, forSet: true, d: time.Minute, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sessionLength(tt.args, tt.minutesSet, tt.minutes, tt.forSet, tt.d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, describe(session.ErrConflictingSession), "already enabled")
	assert.Contains(t, describe(fmt.Errorf("acquire inhibitor: %w", power.ErrBackendUnavailable)), "Could not keep the machine awake")
	assert.Contains(t, describe(fmt.Errorf("%w: %w", session.ErrWatcherUnavailable, errors.New("fork failed"))), "fork failed")
	assert.Equal(t, "boom", describe(errors.New("boom")))
}

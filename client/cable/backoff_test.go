package cable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second}
	tests := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, 50 * time.Millisecond, 100 * time.Millisecond},
		{1, 100 * time.Millisecond, 200 * time.Millisecond},
		{3, 400 * time.Millisecond, 800 * time.Millisecond},
		{4, 500 * time.Millisecond, time.Second},
		{64, 500 * time.Millisecond, time.Second},
		{-1, 50 * time.Millisecond, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		for range 50 {
			d := b.Delay(tt.attempt)
			require.GreaterOrEqual(t, d, tt.min, "attempt %d", tt.attempt)
			require.LessOrEqual(t, d, tt.max, "attempt %d", tt.attempt)
		}
	}
}

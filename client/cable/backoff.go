package cable

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes reconnect delays: exponential growth capped at Max, with
// the actual delay drawn uniformly from the upper half of the window.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(float64(b.Base) * math.Pow(2, float64(attempt)))
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(d-half)+1))
}

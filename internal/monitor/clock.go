package monitor

import "time"

// Clock abstracts "now" so tests can drive freshness/decay/sliding
// window logic deterministically. Grounded in the Clock seam used by
// randomizedcoder/go-ffmpeg-hls-swarm's internal/timeseries package.
type Clock interface {
	Now() time.Time
}

// systemClock is the production Clock backed by time.Now().
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default production Clock.
var SystemClock Clock = systemClock{}

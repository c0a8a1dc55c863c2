package entry

import (
	"time"

	"github.com/okian/moncell/pkg/logger"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithClock sets the clock used to stamp the day of entry.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the recorder logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

package trend

import "github.com/okian/moncell/pkg/logger"

// Option applies a configuration option to the Summarizer.
type Option func(*Summarizer)

// WithLogger sets the summarizer logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Summarizer) {
		if l != nil {
			s.logger = l
		}
	}
}

package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of ids to remember.
// If maxSize > 0 the oldest id is forgotten first once full.
// If maxSize <= 0 ids are never forgotten.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

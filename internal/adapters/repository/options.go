package repository

import (
	"io/fs"

	"github.com/okian/moncell/pkg/logger"
)

// Option applies a configuration option to the CSVStore.
type Option func(*CSVStore)

// WithLogger sets the logger used for skipped rows and layout migrations.
func WithLogger(l logger.Logger) Option {
	return func(s *CSVStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFileMode sets the permission bits of a newly created store file.
func WithFileMode(mode fs.FileMode) Option {
	return func(s *CSVStore) {
		if mode != 0 {
			s.fileMode = mode
		}
	}
}

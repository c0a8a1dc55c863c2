// Package service wires the reference directory, entry recorder, persisted
// store, filter engine and trend summarizer behind the HTTP API.
package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/moncell/internal/adapters/repository"
	"github.com/okian/moncell/internal/domain/dedupe"
	"github.com/okian/moncell/internal/domain/entry"
	"github.com/okian/moncell/internal/domain/filter"
	"github.com/okian/moncell/internal/domain/forecast"
	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/internal/domain/reference"
	"github.com/okian/moncell/internal/domain/trend"
	"github.com/okian/moncell/internal/domain/types"
	"github.com/okian/moncell/pkg/logger"
	"github.com/okian/moncell/pkg/metrics"
)

// Service implements the API dependencies for the monitoring dashboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	directory  *reference.Directory
	deduper    dedupe.Deduper
	recorder   *entry.Recorder
	summarizer *trend.Summarizer
	forecaster forecast.Forecaster

	// Configuration
	dataFile         string
	catalog          types.Catalog
	dedupeSize       int
	defaultRangeDays int
	now              func() time.Time

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDataFile sets the path of the CSV store created on Start.
func WithDataFile(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dataFile = path
		}
	}
}

// WithStore replaces the CSV store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDirectory sets the district/school reference directory.
func WithDirectory(d *reference.Directory) Option {
	return func(s *Service) {
		if d != nil {
			s.directory = d
		}
	}
}

// WithCatalog sets the team members and metric names offered by the form.
func WithCatalog(teamMembers, metricNames []string) Option {
	return func(s *Service) {
		s.catalog = types.Catalog{
			TeamMembers: append([]string(nil), teamMembers...),
			MetricNames: append([]string(nil), metricNames...),
		}
	}
}

// WithDedupeSize sets the number of submission ids remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDefaultRangeDays sets the length of the default date filter.
func WithDefaultRangeDays(days int) Option {
	return func(s *Service) {
		if days >= 0 {
			s.defaultRangeDays = days
		}
	}
}

// WithClock sets the clock used for entry dates and the default range.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithForecaster replaces the default forecasting backend.
func WithForecaster(f forecast.Forecaster) Option {
	return func(s *Service) {
		if f != nil {
			s.forecaster = f
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dataFile:         "monitoring_data.csv",
		dedupeSize:       10_000,
		defaultRangeDays: 7,
		now:              time.Now,
		forecaster:       forecast.NewLinear(),
		logger:           nil, // replaced on Start
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.store == nil {
		s.store = repository.NewCSVStore(s.dataFile, repository.WithLogger(s.logger.Named("store")))
	}
	if s.directory == nil {
		s.directory = &reference.Directory{}
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.recorder = entry.NewRecorder(s.store,
		entry.WithClock(s.now),
		entry.WithLogger(s.logger.Named("entry")),
	)
	s.summarizer = trend.NewSummarizer(s.forecaster, trend.WithLogger(s.logger.Named("trend")))

	s.started = true
	s.logger.Info(ctx, "monitoring service started",
		logger.String("dataFile", s.dataFile),
		logger.Int("districts", len(s.directory.Districts())),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop marks the service stopped. Nothing is buffered between requests.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "monitoring service stopped")
}

// Reference returns the district/school directory.
func (s *Service) Reference() *reference.Directory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.directory == nil {
		return &reference.Directory{}
	}
	return s.directory
}

// Catalog returns a copy of the entry form choices.
func (s *Service) Catalog() types.Catalog {
	return types.Catalog{
		TeamMembers: append([]string(nil), s.catalog.TeamMembers...),
		MetricNames: append([]string(nil), s.catalog.MetricNames...),
	}
}

// Submit records sub unless its ID was already recorded. A failed write
// forgets the ID so the client can retry with it.
func (s *Service) Submit(ctx context.Context, sub types.Submission) (types.Receipt, error) {
	id := strings.TrimSpace(sub.ID)
	if id == "" {
		id = uuid.NewString()
	}
	res := types.Receipt{SubmissionID: id}

	if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordEntryDuplicate()
		s.logger.Debug(ctx, "duplicate submission", logger.String("submissionID", id))
		res.Duplicate = true
		return res, nil
	}
	metrics.UpdateDedupeTracked(s.deduper.Size())

	buf, rec, err := s.recorder.Submit(ctx, entry.Buffer{}, sub.Candidate)
	if err != nil {
		s.deduper.Unrecord(ctx, id)
		return res, err
	}
	res.Record = rec
	res.Pending = buf.Len()
	return res, nil
}

// DefaultRange returns the date window used when a request names none.
func (s *Service) DefaultRange() (from, to time.Time) {
	return filter.DefaultRange(s.now(), s.defaultRangeDays)
}

// Records loads the store and returns the rows matching c.
func (s *Service) Records(ctx context.Context, c filter.Criteria) ([]model.MetricRecord, error) {
	all, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	rows := filter.Apply(all, c)
	metrics.UpdateFilterRows(len(rows))
	return rows, nil
}

// Options returns the distinct filter values present in the store.
func (s *Service) Options(ctx context.Context) (filter.Options, error) {
	all, err := s.store.Load(ctx)
	if err != nil {
		return filter.Options{}, fmt.Errorf("load records: %w", err)
	}
	return filter.OptionsOf(all), nil
}

// Export writes the rows matching c to w in the store layout and returns how
// many were written.
func (s *Service) Export(ctx context.Context, w io.Writer, c filter.Criteria) (int, error) {
	rows, err := s.Records(ctx, c)
	if err != nil {
		return 0, err
	}
	if err := repository.WriteCSV(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Analyze runs trend analysis over the rows matching c.
func (s *Service) Analyze(ctx context.Context, c filter.Criteria) (trend.Report, error) {
	rows, err := s.Records(ctx, c)
	if err != nil {
		return trend.Report{}, err
	}
	return s.summarizer.Summarize(ctx, rows)
}

// Reset deletes the store and returns the now empty pending buffer.
func (s *Service) Reset(ctx context.Context) (entry.Buffer, error) {
	if err := s.store.Reset(ctx); err != nil {
		return entry.Buffer{}, fmt.Errorf("reset store: %w", err)
	}
	s.logger.Warn(ctx, "store reset", logger.String("dataFile", s.dataFile))
	return entry.Buffer{}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"dataFile":         s.dataFile,
		"dedupeSize":       s.dedupeSize,
		"defaultRangeDays": s.defaultRangeDays,
	}
	if s.started {
		stats["storeExists"] = s.store.Exists()
		stats["districts"] = len(s.directory.Districts())
		stats["trackedSubmissions"] = s.deduper.Size()
		metrics.UpdateDedupeTracked(s.deduper.Size())
	}
	return stats
}

// Size returns the number of tracked submission ids.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

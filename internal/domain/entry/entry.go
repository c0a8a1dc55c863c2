// Package entry validates submitted metric records and appends them to the
// store through an explicit, request-scoped buffer of pending records.
package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/pkg/logger"
	"github.com/okian/moncell/pkg/metrics"
)

// ErrEmptyValue rejects a submission whose value is blank.
var ErrEmptyValue = errors.New("value must not be empty")

// FieldError ties a validation failure to the form field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// Candidate is a submission as entered in the form. It has no timestamp:
// the recorder stamps the day of entry.
type Candidate struct {
	TeamMember     string
	District       string
	SchoolName     string
	MetricName     string
	Value          string
	IsAnomaly      bool
	AnomalyComment string
}

// Buffer holds validated records not yet written. It is a value: Stage and
// Flush return the next buffer and never change the one passed in.
type Buffer struct {
	pending []model.MetricRecord
}

// Len returns the number of pending records.
func (b Buffer) Len() int { return len(b.pending) }

// Records returns a copy of the pending records.
func (b Buffer) Records() []model.MetricRecord {
	return append([]model.MetricRecord(nil), b.pending...)
}

// Appender is the part of the store the recorder writes through.
type Appender interface {
	Append(ctx context.Context, rec model.MetricRecord) error
}

// Recorder turns candidates into stored records.
type Recorder struct {
	store  Appender
	now    func() time.Time
	logger logger.Logger
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Appender, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stage validates c and returns buf with the resulting record added.
// On a validation error buf is returned unchanged.
func (r *Recorder) Stage(buf Buffer, c Candidate) (Buffer, error) {
	rec, err := r.build(c)
	if err != nil {
		return buf, err
	}
	next := make([]model.MetricRecord, len(buf.pending), len(buf.pending)+1)
	copy(next, buf.pending)
	return Buffer{pending: append(next, rec)}, nil
}

// Flush appends every pending record in order and returns an empty buffer
// with the number written. When an append fails, the returned buffer holds
// the records that were not written.
func (r *Recorder) Flush(ctx context.Context, buf Buffer) (Buffer, int, error) {
	for i, rec := range buf.pending {
		if err := r.store.Append(ctx, rec); err != nil {
			r.logger.Error(ctx, "append failed",
				logger.String("school", rec.SchoolName),
				logger.String("metric", rec.MetricName),
				logger.Error(err),
			)
			return Buffer{pending: append([]model.MetricRecord(nil), buf.pending[i:]...)}, i, fmt.Errorf("append record: %w", err)
		}
		metrics.RecordEntryRecorded()
		r.logger.Info(ctx, "metric recorded",
			logger.String("team_member", rec.TeamMember),
			logger.String("school", rec.SchoolName),
			logger.String("metric", rec.MetricName),
			logger.Bool("anomaly", rec.IsAnomaly),
		)
	}
	return Buffer{}, len(buf.pending), nil
}

// Submit stages c and flushes the buffer. The returned record is the one
// built from c.
func (r *Recorder) Submit(ctx context.Context, buf Buffer, c Candidate) (Buffer, model.MetricRecord, error) {
	staged, err := r.Stage(buf, c)
	if err != nil {
		return buf, model.MetricRecord{}, err
	}
	rec := staged.pending[len(staged.pending)-1]
	next, _, err := r.Flush(ctx, staged)
	return next, rec, err
}

func (r *Recorder) build(c Candidate) (model.MetricRecord, error) {
	value := model.ParseValue(c.Value)
	if value.IsBlank() {
		metrics.RecordEntryRejected("value")
		return model.MetricRecord{}, &FieldError{Field: "value", Err: ErrEmptyValue}
	}
	rec := model.MetricRecord{
		TeamMember:     strings.TrimSpace(c.TeamMember),
		District:       strings.TrimSpace(c.District),
		SchoolName:     strings.TrimSpace(c.SchoolName),
		MetricName:     strings.TrimSpace(c.MetricName),
		Value:          value,
		IsAnomaly:      c.IsAnomaly,
		AnomalyComment: c.AnomalyComment,
		Timestamp:      model.Day(r.now()),
	}
	if !rec.IsAnomaly {
		rec.AnomalyComment = ""
	}
	return rec, nil
}

package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/pkg/logger"
	"github.com/okian/moncell/pkg/metrics"
)

const defaultFileMode fs.FileMode = 0o644

// CSVStore is a Store backed by a single CSV file. Writers in this process
// are serialized by mu; other processes writing the same file are not
// coordinated with.
type CSVStore struct {
	path     string
	fileMode fs.FileMode
	logger   logger.Logger

	mu sync.RWMutex
}

var _ Store = (*CSVStore)(nil)

// NewCSVStore returns a store for path. The file is not touched until the
// first Append.
func NewCSVStore(path string, opts ...Option) *CSVStore {
	s := &CSVStore{
		path:     path,
		fileMode: defaultFileMode,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *CSVStore) Path() string { return s.path }

// Exists reports whether the backing file is present.
func (s *CSVStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the whole file on every call. Rows with an unreadable
// timestamp are skipped and logged.
func (s *CSVStore) Load(ctx context.Context) ([]model.MetricRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLoadLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		metrics.UpdateStoreRecords(0)
		return nil, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent("store", "open")
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer func() { _ = f.Close() }()

	res, err := ReadCSV(ctx, f)
	if err != nil {
		metrics.RecordErrorByComponent("store", "decode")
		return nil, err
	}
	for _, line := range res.Skipped {
		metrics.RecordStoreSkippedRow()
		s.logger.Warn(ctx, "skipping stored row with unreadable timestamp",
			logger.String("path", s.path),
			logger.Int("line", line),
		)
	}
	metrics.UpdateStoreRecords(len(res.Records))
	return res.Records, nil
}

// Append adds rec to the file. A new or empty file gets the header first.
// A file whose header differs from Columns is rewritten into the current
// layout before the record is added, keeping every existing row.
func (s *CSVStore) Append(ctx context.Context, rec model.MetricRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		metrics.RecordStoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	header, size, err := s.peekHeader()
	if err != nil {
		metrics.RecordErrorByComponent("store", "open")
		return err
	}

	switch {
	case size == 0:
		err = s.create(rec)
	case slices.Equal(header, Columns):
		err = s.appendRow(rec)
	default:
		s.logger.Info(ctx, "migrating store to current layout",
			logger.String("path", s.path),
			logger.Any("header", header),
		)
		err = s.migrate(ctx, rec)
	}
	if err != nil {
		metrics.RecordErrorByComponent("store", "write")
	}
	return err
}

// Reset deletes the backing file.
func (s *CSVStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.RecordErrorByComponent("store", "remove")
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	metrics.RecordStoreReset()
	metrics.UpdateStoreRecords(0)
	s.logger.Info(ctx, "store reset", logger.String("path", s.path))
	return nil
}

// peekHeader returns the header row and the file size; both are zero for
// an absent file.
func (s *CSVStore) peekHeader() ([]string, int64, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if st.Size() == 0 {
		return nil, 0, nil
	}
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("%w: header: %w", ErrRead, err)
	}
	for i := range header {
		header[i] = trimHeader(header[i])
	}
	return header, st.Size(), nil
}

func (s *CSVStore) create(rec model.MetricRecord) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create dir: %w", ErrWrite, err)
		}
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []model.MetricRecord{rec}); err != nil {
		return err
	}
	return s.writeFile(buf.Bytes(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

func (s *CSVStore) appendRow(rec model.MetricRecord) error {
	var buf bytes.Buffer
	needsNewline, err := s.missingTrailingNewline()
	if err != nil {
		return err
	}
	if needsNewline {
		buf.WriteByte('\n')
	}
	cw := csv.NewWriter(&buf)
	if err := cw.Write(encodeRow(rec)); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	cw.Flush()
	return s.writeFile(buf.Bytes(), os.O_APPEND|os.O_WRONLY)
}

func (s *CSVStore) missingTrailingNewline() (bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if st.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, st.Size()-1); err != nil {
		return false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return last[0] != '\n', nil
}

// migrate rewrites the file in the current column layout at the raw row
// level, so rows that would not decode are kept verbatim, then adds rec.
func (s *CSVStore) migrate(ctx context.Context, rec model.MetricRecord) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRead, err)
	}
	header, rows, err := readRaw(ctx, f)
	_ = f.Close()
	if err != nil {
		return err
	}

	idx := columnIndex(header)
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	for _, row := range rows {
		out := make([]string, len(Columns))
		for i, col := range Columns {
			out[i] = field(idx, row, col)
		}
		if _, ok := idx[ColIsAnomaly]; !ok {
			out[slices.Index(Columns, ColIsAnomaly)] = formatBool(false)
		}
		if err := cw.Write(out); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
	}
	if err := cw.Write(encodeRow(rec)); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), s.fileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (s *CSVStore) writeFile(b []byte, flag int) error {
	f, err := os.OpenFile(s.path, flag, s.fileMode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: sync: %w", ErrWrite, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

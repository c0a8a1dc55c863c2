package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/okian/moncell/internal/domain/model"
)

// Store columns, in file order.
const (
	ColTeamMember     = "Team Member"
	ColDistrict       = "District"
	ColSchoolName     = "School Name"
	ColMetricName     = "Metric Name"
	ColValue          = "Value"
	ColIsAnomaly      = "Is Anomaly"
	ColAnomalyComment = "Anomaly Comment"
	ColTimestamp      = "Timestamp"
)

// Columns is the header written for every store and export.
var Columns = []string{
	ColTeamMember, ColDistrict, ColSchoolName, ColMetricName,
	ColValue, ColIsAnomaly, ColAnomalyComment, ColTimestamp,
}

// timestampLayouts are accepted on read; everything is truncated to the day.
var timestampLayouts = []string{
	model.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ReadResult is the outcome of decoding a store file.
type ReadResult struct {
	Records []model.MetricRecord
	// Skipped holds 1-based data line numbers whose timestamp did not parse.
	Skipped []int
}

// ReadCSV decodes records from r. Columns are located by header name, so
// column order is free and absent columns decode as empty; an absent
// "Is Anomaly" column means false.
func ReadCSV(ctx context.Context, r io.Reader) (ReadResult, error) {
	var res ReadResult
	header, rows, err := readRaw(ctx, r)
	if err != nil || header == nil {
		return res, err
	}
	idx := columnIndex(header)
	for i, row := range rows {
		rec, ok := decodeRow(idx, row)
		if !ok {
			res.Skipped = append(res.Skipped, i+1)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// WriteCSV encodes the header and records to w.
func WriteCSV(w io.Writer, records []model.MetricRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("%w: header: %w", ErrWrite, err)
	}
	for i := range records {
		if err := cw.Write(encodeRow(records[i])); err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrWrite, i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func readRaw(ctx context.Context, r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: header: %w", ErrRead, err)
	}
	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrRead, err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := trimHeader(h)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func trimHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

func field(idx map[string]int, row []string, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func decodeRow(idx map[string]int, row []string) (model.MetricRecord, bool) {
	ts, ok := parseTimestamp(field(idx, row, ColTimestamp))
	if !ok {
		return model.MetricRecord{}, false
	}
	rec := model.MetricRecord{
		TeamMember:     field(idx, row, ColTeamMember),
		District:       field(idx, row, ColDistrict),
		SchoolName:     field(idx, row, ColSchoolName),
		MetricName:     field(idx, row, ColMetricName),
		Value:          model.ParseValue(field(idx, row, ColValue)),
		IsAnomaly:      parseBool(field(idx, row, ColIsAnomaly)),
		AnomalyComment: field(idx, row, ColAnomalyComment),
		Timestamp:      ts,
	}
	if !rec.IsAnomaly {
		rec.AnomalyComment = ""
	}
	return rec, true
}

func encodeRow(rec model.MetricRecord) []string {
	comment := rec.AnomalyComment
	if !rec.IsAnomaly {
		comment = ""
	}
	return []string{
		rec.TeamMember,
		rec.District,
		rec.SchoolName,
		rec.MetricName,
		rec.Value.String(),
		formatBool(rec.IsAnomaly),
		comment,
		rec.Date(),
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), true
		}
	}
	return time.Time{}, false
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// formatBool mirrors the True/False spelling of existing store files.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Package reference loads the static district to school directory that
// feeds the dependent selection fields of the entry form.
package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Required reference columns.
const (
	ColumnDistrict = "District"
	ColumnSchool   = "School"
)

// Sentinel kinds for reference errors.
var (
	ErrMissingColumn = errors.New("reference column missing")
	ErrRead          = errors.New("reference read failed")
)

// Directory maps districts to their schools, both in file order.
type Directory struct {
	districts []string
	schools   map[string][]string
	index     map[string]map[string]struct{}
}

// LoadFile reads a directory from a CSV file.
func LoadFile(ctx context.Context, path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer func() { _ = f.Close() }()
	return Load(ctx, f)
}

// Load reads a directory from CSV. Header names are matched case-insensitively;
// columns other than District and School are ignored.
func Load(ctx context.Context, r io.Reader) (*Directory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s, %s", ErrMissingColumn, ColumnDistrict, ColumnSchool)
		}
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	di, si := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case strings.ToLower(ColumnDistrict):
			di = i
		case strings.ToLower(ColumnSchool):
			si = i
		}
	}
	if di < 0 || si < 0 {
		return nil, fmt.Errorf("%w: need %s and %s, got %v", ErrMissingColumn, ColumnDistrict, ColumnSchool, header)
	}

	d := &Directory{
		schools: make(map[string][]string),
		index:   make(map[string]map[string]struct{}),
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRead, err)
		}
		if di >= len(row) || si >= len(row) {
			continue
		}
		d.add(strings.TrimSpace(row[di]), strings.TrimSpace(row[si]))
	}
	return d, nil
}

func (d *Directory) add(district, school string) {
	if district == "" || school == "" {
		return
	}
	set, ok := d.index[district]
	if !ok {
		set = make(map[string]struct{})
		d.index[district] = set
		d.districts = append(d.districts, district)
	}
	if _, dup := set[school]; dup {
		return
	}
	set[school] = struct{}{}
	d.schools[district] = append(d.schools[district], school)
}

// Districts returns the distinct districts in first-appearance order.
func (d *Directory) Districts() []string {
	return append([]string(nil), d.districts...)
}

// Schools returns the schools of district, or nil when it is unknown.
func (d *Directory) Schools(district string) []string {
	s := d.schools[district]
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// Contains reports whether school belongs to district.
func (d *Directory) Contains(district, school string) bool {
	_, ok := d.index[district][school]
	return ok
}

// Len returns the number of (district, school) pairs.
func (d *Directory) Len() int {
	n := 0
	for _, s := range d.schools {
		n += len(s)
	}
	return n
}

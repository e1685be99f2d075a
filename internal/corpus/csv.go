package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVSource reads an incident table from a CSV file with a header row.
type CSVSource struct {
	path   string
	header []string
	rows   []map[string]string
	read   bool
}

// NewCSVSource returns a source that reads path on first use.
func NewCSVSource(path string) *CSVSource { return &CSVSource{path: path} }

// Name returns the file path.
func (s *CSVSource) Name() string { return s.path }

// Columns returns the trimmed header row.
func (s *CSVSource) Columns(ctx context.Context) ([]string, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.header, nil
}

// Rows returns every data row keyed by header name.
func (s *CSVSource) Rows(ctx context.Context) ([]map[string]string, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.rows, nil
}

func (s *CSVSource) load(ctx context.Context) error {
	if s.read {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	header, rows, err := ReadCSV(ctx, f)
	if err != nil {
		return err
	}
	s.header, s.rows, s.read = header, rows, true
	return nil
}

// ReadCSV parses a header row followed by data rows. Missing trailing fields
// read as empty, so a row cut off before its description is later dropped
// rather than failing the load. Rows wider than the header are rejected.
func ReadCSV(ctx context.Context, r io.Reader) ([]string, []map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty csv: no header row")
		}
		return nil, nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	var rows []map[string]string
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line++
		if len(rec) > len(header) {
			return nil, nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(rec))
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

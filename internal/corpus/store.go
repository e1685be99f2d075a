package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"incident-search/internal/domain"
)

// Column names of the incident table. Sources must provide them verbatim.
const (
	ColID          = "Incident_ID"
	ColDate        = "Date"
	ColDepartment  = "Department"
	ColModel       = "Model"
	ColSubAssembly = "Sub_Assembly"
	ColDescription = "Incident_Description"
)

// Columns lists every required column in table order.
var Columns = []string{ColID, ColDate, ColDepartment, ColModel, ColSubAssembly, ColDescription}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Source yields the raw incident rows of a table, keyed by column name.
type Source interface {
	Name() string
	Columns(ctx context.Context) ([]string, error)
	Rows(ctx context.Context) ([]map[string]string, error)
}

// Store is the immutable, load-ordered set of incident records.
type Store struct {
	records []domain.IncidentRecord
	dropped int
}

// Load reads every row from src, drops rows without a description and
// validates the rest. Any failure is returned as a *domain.LoadError.
func Load(ctx context.Context, src Source) (*Store, error) {
	cols, err := src.Columns(ctx)
	if err != nil {
		return nil, domain.NewLoadError(src.Name(), 0, err)
	}
	if err := checkColumns(cols); err != nil {
		return nil, domain.NewLoadError(src.Name(), 0, err)
	}
	rows, err := src.Rows(ctx)
	if err != nil {
		return nil, domain.NewLoadError(src.Name(), 0, err)
	}

	s := &Store{records: make([]domain.IncidentRecord, 0, len(rows))}
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		desc := strings.TrimSpace(row[ColDescription])
		if desc == "" {
			s.dropped++
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, domain.NewLoadError(src.Name(), i+1, err)
		}
		if first, ok := seen[rec.ID]; ok {
			return nil, domain.NewLoadError(src.Name(), i+1, fmt.Errorf("duplicate id %q (first seen at row %d)", rec.ID, first))
		}
		seen[rec.ID] = i + 1
		s.records = append(s.records, rec)
	}
	return s, nil
}

// NewStore builds a store from records that are already validated, keeping
// their order and dropping any without a description.
func NewStore(records []domain.IncidentRecord) *Store {
	s := &Store{records: make([]domain.IncidentRecord, 0, len(records))}
	for _, r := range records {
		if strings.TrimSpace(r.Description) == "" {
			s.dropped++
			continue
		}
		s.records = append(s.records, r)
	}
	return s
}

// Count returns the number of loaded records.
func (s *Store) Count() int { return len(s.records) }

// Dropped returns how many rows were skipped for having no description.
func (s *Store) Dropped() int { return s.dropped }

// RecordAt returns the record at load-order position pos.
func (s *Store) RecordAt(pos int) (domain.IncidentRecord, error) {
	if pos < 0 || pos >= len(s.records) {
		return domain.IncidentRecord{}, fmt.Errorf("record position %d out of range [0,%d)", pos, len(s.records))
	}
	return s.records[pos], nil
}

// Records returns a copy of all records in load order.
func (s *Store) Records() []domain.IncidentRecord {
	out := make([]domain.IncidentRecord, len(s.records))
	copy(out, s.records)
	return out
}

// AllDescriptions returns the descriptions in load order.
func (s *Store) AllDescriptions() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Description
	}
	return out
}

func checkColumns(cols []string) error {
	have := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		have[strings.TrimSpace(c)] = struct{}{}
	}
	var missing []string
	for _, c := range Columns {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseRow(row map[string]string) (domain.IncidentRecord, error) {
	id := strings.TrimSpace(row[ColID])
	if id == "" {
		return domain.IncidentRecord{}, errors.New("empty incident id")
	}
	date, err := ParseDate(row[ColDate])
	if err != nil {
		return domain.IncidentRecord{}, err
	}
	return domain.IncidentRecord{
		ID:          id,
		Date:        date,
		Department:  strings.TrimSpace(row[ColDepartment]),
		Model:       strings.TrimSpace(row[ColModel]),
		SubAssembly: strings.TrimSpace(row[ColSubAssembly]),
		Description: strings.TrimSpace(row[ColDescription]),
	}, nil
}

// ParseDate accepts the date layouts seen in incident exports.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

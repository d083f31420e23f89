// Package store persists workout records as one JSON document per calendar
// date. The mapping between dates and files is bijective and the files are
// human-inspectable; a range scan is a bounded walk over the span, not over
// the store. No locking is provided: the service is single-operator.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kalambet/trainlog/internal/workout"
)

// ErrNotFound is returned when no record exists for the requested date.
var ErrNotFound = errors.New("record not found")

// ErrInvalidRange is returned when a range scan starts after it ends.
var ErrInvalidRange = errors.New("invalid date range: start after end")

// Store reads and writes date-keyed workout records under a single directory.
type Store struct {
	dir string
	now func() time.Time
}

// Open creates the record directory if needed and returns a Store over it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating record directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) path(date workout.Date) string {
	return filepath.Join(s.dir, date.String()+".json")
}

// Put writes the record for record.Date, replacing any existing document.
// UpdatedAt is refreshed on every write; CreatedAt is stamped only when the
// caller left it zero. Put never merges: preserving the original CreatedAt
// across an update is the caller's job. The document is written to a temp
// file and renamed into place so a crash mid-write leaves the prior record
// untouched.
func (s *Store) Put(record *workout.Record) error {
	now := s.now().UTC()
	record.UpdatedAt = now
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record for %s: %w", record.Date, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, record.Date.String()+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing record for %s: %w", record.Date, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(record.Date)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing record for %s: %w", record.Date, err)
	}
	return nil
}

// Get returns the record stored for date, or ErrNotFound.
func (s *Store) Get(date workout.Date) (*workout.Record, error) {
	data, err := os.ReadFile(s.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
		}
		return nil, fmt.Errorf("reading record for %s: %w", date, err)
	}

	var record workout.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding record for %s: %w", date, err)
	}
	return &record, nil
}

// Range returns every stored record with a date in [start, end], ascending.
// Dates without a record are skipped. Fails with ErrInvalidRange when start
// is after end.
func (s *Store) Range(start, end workout.Date) ([]*workout.Record, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w (%s > %s)", ErrInvalidRange, start, end)
	}

	var records []*workout.Record
	for d := start; !d.After(end); d = d.AddDays(1) {
		record, err := s.Get(d)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Recent returns the records for the trailing days ending today.
func (s *Store) Recent(days int) ([]*workout.Record, error) {
	end := workout.Today()
	return s.Range(end.AddDays(-(days - 1)), end)
}

// Delete removes the record for date, reporting whether one existed.
func (s *Store) Delete(date workout.Date) (bool, error) {
	err := os.Remove(s.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("deleting record for %s: %w", date, err)
	}
	return true, nil
}

// Dates lists every date with a persisted record, ascending. Files whose
// names contain "example" are reserved and excluded; filenames that do not
// parse as a date are skipped.
func (s *Store) Dates() ([]workout.Date, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing record directory: %w", err)
	}

	var dates []workout.Date
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.Contains(name, "example") {
			continue
		}
		date, err := workout.ParseDate(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}
	// os.ReadDir returns entries sorted by filename, and the YYYY-MM-DD form
	// sorts lexicographically in date order.
	return dates, nil
}

package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kalambet/trainlog/internal/workout"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func intPtr(v int) *int { return &v }

func record(date workout.Date) *workout.Record {
	return &workout.Record{
		Date:        date,
		WorkoutType: workout.TypeStrength,
		Exercises: []workout.Exercise{
			{Name: "Deadlift", Sets: intPtr(3), Reps: intPtr(5), Load: "140kg", Notes: "belt on"},
		},
		FatigueLevel: intPtr(6),
		Reflection:   "Heavy but moving well.",
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	date := workout.NewDate(2026, time.March, 14)
	in := record(date)

	if err := s.Put(in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(date)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("Get = %+v, want %+v", got, in)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps were not stamped on first write")
	}
}

func TestPut_RefreshesUpdatedAtOnly(t *testing.T) {
	s := newTestStore(t)
	date := workout.NewDate(2026, time.March, 14)

	base := time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	in := record(date)
	if err := s.Put(in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	created := in.CreatedAt

	s.now = func() time.Time { return base.Add(time.Hour) }
	if err := s.Put(in); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := s.Get(date)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want unchanged %v", got.CreatedAt, created)
	}
	if !got.UpdatedAt.After(created) {
		t.Errorf("UpdatedAt = %v, want after %v", got.UpdatedAt, created)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(workout.NewDate(2026, time.March, 14))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty store = %v, want ErrNotFound", err)
	}
}

func TestRange(t *testing.T) {
	s := newTestStore(t)
	for _, day := range []int{10, 12, 15} {
		if err := s.Put(record(workout.NewDate(2026, time.March, day))); err != nil {
			t.Fatalf("Put day %d: %v", day, err)
		}
	}

	got, err := s.Range(workout.NewDate(2026, time.March, 11), workout.NewDate(2026, time.March, 14))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 1 || got[0].Date.String() != "2026-03-12" {
		t.Errorf("Range returned %d records, want exactly 2026-03-12", len(got))
	}

	// Inclusive on both ends.
	got, err = s.Range(workout.NewDate(2026, time.March, 10), workout.NewDate(2026, time.March, 15))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Range returned %d records, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Errorf("records out of order: %s before %s", got[i-1].Date, got[i].Date)
		}
	}
}

func TestRange_SingleDay(t *testing.T) {
	s := newTestStore(t)
	date := workout.NewDate(2026, time.March, 14)
	if err := s.Put(record(date)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Range(date, date)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Range(d, d) returned %d records, want 1", len(got))
	}
}

func TestRange_Inverted(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Range(workout.NewDate(2026, time.March, 15), workout.NewDate(2026, time.March, 10))
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Range with start > end = %v, want ErrInvalidRange", err)
	}
}

func TestRange_CrossesMonthBoundary(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(record(workout.NewDate(2026, time.February, 1))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Range(workout.NewDate(2026, time.January, 30), workout.NewDate(2026, time.February, 2))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Range across month boundary returned %d records, want 1", len(got))
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	date := workout.NewDate(2026, time.March, 14)

	existed, err := s.Delete(date)
	if err != nil {
		t.Fatalf("Delete on empty store: %v", err)
	}
	if existed {
		t.Error("Delete on empty store reported a record existed")
	}

	if err := s.Put(record(date)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	existed, err = s.Delete(date)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Error("Delete did not report the record existed")
	}
	if _, err := s.Get(date); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestDates_SkipsReservedAndMalformed(t *testing.T) {
	s := newTestStore(t)
	for _, day := range []int{3, 1, 2} {
		if err := s.Put(record(workout.NewDate(2026, time.March, day))); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	// Reserved and malformed entries must be skipped, not errored.
	for _, name := range []string{"example-log.json", "notes.txt", "2026-13-99.json"} {
		if err := os.WriteFile(filepath.Join(s.dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("seeding %s: %v", name, err)
		}
	}

	dates, err := s.Dates()
	if err != nil {
		t.Fatalf("Dates: %v", err)
	}
	want := []string{"2026-03-01", "2026-03-02", "2026-03-03"}
	if len(dates) != len(want) {
		t.Fatalf("Dates returned %d entries, want %d", len(dates), len(want))
	}
	for i, d := range dates {
		if d.String() != want[i] {
			t.Errorf("Dates[%d] = %s, want %s", i, d, want[i])
		}
	}
}

func TestPut_LeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(record(workout.NewDate(2026, time.March, 14))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("record directory has %d entries, want 1", len(entries))
	}
}

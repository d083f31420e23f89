// Package api exposes the record store and the analysis gateway over HTTP
// and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/trainlog/internal/analysis"
	"github.com/kalambet/trainlog/internal/journal"
	"github.com/kalambet/trainlog/internal/store"
	"github.com/kalambet/trainlog/internal/workout"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Default and maximum bounds for listing and history windows.
const (
	defaultListDays    = 7
	maxListDays        = 90
	defaultHistoryDays = 7
	maxHistoryDays     = 30
)

// analysisTimeout bounds a single completion round trip.
const analysisTimeout = 90 * time.Second

// Deps holds the collaborators the HTTP and MCP surfaces share.
type Deps struct {
	Store    *store.Store
	Analyzer *analysis.Analyzer
	Journal  *journal.Journal // optional; if nil, attempts are not journaled
	Model    string           // model identifier, recorded in the journal
	Version  string
}

// NewHandler returns the HTTP handler for the record CRUD surface, analysis
// triggering, and stats.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", handleHealth(deps))
	r.Post("/records", handleCreateRecord(deps))
	r.Get("/records", handleListRecords(deps))
	r.Get("/records/dates", handleListDates(deps))
	r.Get("/records/{date}", handleGetRecord(deps))
	r.Put("/records/{date}", handleUpdateRecord(deps))
	r.Delete("/records/{date}", handleDeleteRecord(deps))
	r.Post("/records/{date}/analysis", handleAnalyzeRecord(deps))
	r.Get("/stats/summary", handleStatsSummary(deps))
	r.Get("/analysis/journal", handleAnalysisJournal(deps))

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "trainlog",
			"version": deps.Version,
		})
	}
}

func handleCreateRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := decodeRecord(w, r)
		if !ok {
			return
		}

		if _, err := deps.Store.Get(record.Date); err == nil {
			httpError(w, http.StatusConflict, "conflict_error",
				"record already exists for %s, use PUT to update", record.Date)
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, "api_error", "checking existing record: %v", err)
			return
		}

		if err := deps.Store.Put(record); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving record: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	}
}

func handleGetRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := pathDate(w, r)
		if !ok {
			return
		}
		record, err := deps.Store.Get(date)
		if err != nil {
			writeStoreError(w, date, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func handleUpdateRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := pathDate(w, r)
		if !ok {
			return
		}
		existing, err := deps.Store.Get(date)
		if err != nil {
			writeStoreError(w, date, err)
			return
		}

		record, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		if !record.Date.Equal(date) {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"body date %s does not match path date %s", record.Date, date)
			return
		}

		// The store overwrites unconditionally; the original creation
		// timestamp is carried forward here.
		record.CreatedAt = existing.CreatedAt
		if err := deps.Store.Put(record); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving record: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func handleDeleteRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := pathDate(w, r)
		if !ok {
			return
		}
		existed, err := deps.Store.Delete(date)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting record: %v", err)
			return
		}
		if !existed {
			httpError(w, http.StatusNotFound, "not_found_error", "no record for %s", date)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		startStr, endStr := q.Get("start"), q.Get("end")

		var records []*workout.Record
		var err error
		switch {
		case startStr != "" && endStr != "":
			var start, end workout.Date
			if start, err = workout.ParseDate(startStr); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid start date: %v", err)
				return
			}
			if end, err = workout.ParseDate(endStr); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid end date: %v", err)
				return
			}
			records, err = deps.Store.Range(start, end)
			if errors.Is(err, store.ErrInvalidRange) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
		case startStr != "" || endStr != "":
			httpError(w, http.StatusBadRequest, "invalid_request_error", "start and end must be supplied together")
			return
		default:
			days := defaultListDays
			if daysStr := q.Get("days"); daysStr != "" {
				days, err = strconv.Atoi(daysStr)
				if err != nil || days < 1 || days > maxListDays {
					httpError(w, http.StatusBadRequest, "invalid_request_error",
						"days must be an integer between 1 and %d", maxListDays)
					return
				}
			}
			records, err = deps.Store.Recent(days)
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing records: %v", err)
			return
		}

		if records == nil {
			records = []*workout.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleListDates(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dates, err := deps.Store.Dates()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing dates: %v", err)
			return
		}
		if dates == nil {
			dates = []workout.Date{}
		}
		writeJSON(w, http.StatusOK, dates)
	}
}

func handleAnalyzeRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := pathDate(w, r)
		if !ok {
			return
		}

		historyDays := defaultHistoryDays
		if s := r.URL.Query().Get("history_days"); s != "" {
			var err error
			historyDays, err = strconv.Atoi(s)
			if err != nil || historyDays < 1 || historyDays > maxHistoryDays {
				httpError(w, http.StatusBadRequest, "invalid_request_error",
					"history_days must be an integer between 1 and %d", maxHistoryDays)
				return
			}
		}

		record, err := runAnalysis(r.Context(), deps, date, historyDays)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "no record for %s", date)
				return
			}
			httpError(w, http.StatusBadGateway, "analysis_error", "analysis failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// runAnalysis loads the record for date, pulls the trailing history window
// ending the day before, invokes the gateway, and persists the enriched
// record. The analysis wholly replaces any prior one. Every attempt is
// journaled, including failures.
func runAnalysis(ctx context.Context, deps Deps, date workout.Date, historyDays int) (*workout.Record, error) {
	record, err := deps.Store.Get(date)
	if err != nil {
		return nil, err
	}

	end := date.AddDays(-1)
	history, err := deps.Store.Range(end.AddDays(-(historyDays - 1)), end)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	started := time.Now()
	result, aerr := deps.Analyzer.Analyze(ctx, record, history)
	journalAttempt(deps, date, time.Since(started), aerr)
	if aerr != nil {
		return nil, aerr
	}

	record.Analysis = result
	if err := deps.Store.Put(record); err != nil {
		return nil, fmt.Errorf("saving analyzed record: %w", err)
	}
	return record, nil
}

// journalAttempt records the attempt outcome best-effort; journal failures
// are logged, not surfaced.
func journalAttempt(deps Deps, date workout.Date, elapsed time.Duration, aerr error) {
	if deps.Journal == nil {
		return
	}
	entry := journal.Entry{
		ID:         uuid.New().String(),
		Date:       date.String(),
		Model:      deps.Model,
		DurationMs: elapsed.Milliseconds(),
		Outcome:    journal.OutcomeOK,
	}
	if aerr != nil {
		entry.Error = aerr.Error()
		if errors.Is(aerr, analysis.ErrMalformed) {
			entry.Outcome = journal.OutcomeMalformed
		} else {
			entry.Outcome = journal.OutcomeUpstream
		}
	}
	if err := deps.Journal.Record(entry); err != nil {
		slog.Warn("failed to journal analysis attempt", "date", date, "error", err)
	}
}

func handleAnalysisJournal(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Journal == nil {
			writeJSON(w, http.StatusOK, []journal.Entry{})
			return
		}
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			var err error
			limit, err = strconv.Atoi(s)
			if err != nil || limit < 1 || limit > 500 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be between 1 and 500")
				return
			}
		}
		entries, err := deps.Journal.Recent(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading journal: %v", err)
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// statsSummary aggregates counts across every stored record.
type statsSummary struct {
	TotalRecords int            `json:"total_records"`
	FirstDate    string         `json:"first_date,omitempty"`
	LastDate     string         `json:"last_date,omitempty"`
	WorkoutTypes map[string]int `json:"workout_types"`
}

func handleStatsSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dates, err := deps.Store.Dates()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing dates: %v", err)
			return
		}

		summary := statsSummary{WorkoutTypes: map[string]int{}}
		if len(dates) > 0 {
			records, err := deps.Store.Range(dates[0], dates[len(dates)-1])
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "scanning records: %v", err)
				return
			}
			summary.TotalRecords = len(records)
			summary.FirstDate = dates[0].String()
			summary.LastDate = dates[len(dates)-1].String()
			for _, record := range records {
				summary.WorkoutTypes[record.WorkoutType]++
			}
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// decodeRecord reads, decodes, and validates a record submission, writing
// the HTTP error itself when anything fails.
func decodeRecord(w http.ResponseWriter, r *http.Request) (*workout.Record, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var record workout.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return nil, false
	}
	// Submissions never carry server-owned fields.
	record.Analysis = nil
	record.CreatedAt = time.Time{}
	record.UpdatedAt = time.Time{}

	if err := record.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return nil, false
	}
	return &record, true
}

func pathDate(w http.ResponseWriter, r *http.Request) (workout.Date, bool) {
	date, err := workout.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid date: %v", err)
		return workout.Date{}, false
	}
	return date, true
}

func writeStoreError(w http.ResponseWriter, date workout.Date, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "no record for %s", date)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "reading record: %v", err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

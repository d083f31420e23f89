// Package workout defines the record types shared by the store, the
// analysis gateway, and the API surface.
package workout

import (
	"errors"
	"fmt"
	"time"
)

// Workout types.
const (
	TypeStrength = "strength"
	TypeRun      = "run"
	TypeRecovery = "recovery"
)

// Perceived effort levels.
const (
	EffortEasy     = "easy"
	EffortModerate = "moderate"
	EffortHard     = "hard"
)

// Pain severity levels.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Record is one calendar day's workout entry. Exactly one record exists per
// date; Analysis is attached post-hoc and wholly replaced on re-analysis.
type Record struct {
	Date            Date             `json:"date"`
	WorkoutType     string           `json:"workout_type"`
	Exercises       []Exercise       `json:"exercises,omitempty"`
	RunningMetrics  *RunningMetrics  `json:"running_metrics,omitempty"`
	PerceivedEffort string           `json:"perceived_effort,omitempty"`
	FatigueLevel    *int             `json:"fatigue_level,omitempty"`
	PainOrTightness *PainOrTightness `json:"pain_or_tightness,omitempty"`
	Reflection      string           `json:"reflection,omitempty"`
	Analysis        *Analysis        `json:"analysis,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Exercise is a single exercise within a strength workout.
type Exercise struct {
	Name  string `json:"name"`
	Sets  *int   `json:"sets,omitempty"`
	Reps  *int   `json:"reps,omitempty"`
	Load  string `json:"load,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// RunningMetrics holds run-specific numbers.
type RunningMetrics struct {
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
	PaceMinPerKm    *float64 `json:"pace_min_per_km,omitempty"`
	Route           string   `json:"route,omitempty"`
}

// PainOrTightness describes physical discomfort reported for the day.
type PainOrTightness struct {
	BodyAreas   []string `json:"body_areas,omitempty"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity,omitempty"`
}

// Analysis is the coaching analysis produced by the completion service.
type Analysis struct {
	ID             string         `json:"id"`
	HumanInsight   string         `json:"human_insight"`
	MachineContext MachineContext `json:"machine_context"`
	AnalyzedAt     time.Time      `json:"analyzed_at"`
}

// MachineContext is the structured half of an analysis. String fields are
// stored verbatim from the model reply; they are not validated against a
// closed set.
type MachineContext struct {
	TrainingPhase    string   `json:"training_phase,omitempty"`
	OverallFatigue   string   `json:"overall_fatigue,omitempty"`
	InjuryRisk       string   `json:"injury_risk,omitempty"`
	ProblemAreas     []string `json:"problem_areas,omitempty"`
	MovementQuality  string   `json:"movement_quality,omitempty"`
	RecommendedFocus []string `json:"recommended_focus,omitempty"`
	LoadAdjustment   string   `json:"load_adjustment,omitempty"`
	ConfidenceScore  *float64 `json:"confidence_score,omitempty"`
}

// ErrInvalid wraps all record validation failures.
var ErrInvalid = errors.New("invalid record")

// Validate checks a submitted record against the field constraints: known
// enum values, fatigue 1-10, non-negative sets/reps, named exercises.
func (r *Record) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalid)
	}
	switch r.WorkoutType {
	case TypeStrength, TypeRun, TypeRecovery:
	default:
		return fmt.Errorf("%w: unknown workout_type %q", ErrInvalid, r.WorkoutType)
	}
	switch r.PerceivedEffort {
	case "", EffortEasy, EffortModerate, EffortHard:
	default:
		return fmt.Errorf("%w: unknown perceived_effort %q", ErrInvalid, r.PerceivedEffort)
	}
	if r.FatigueLevel != nil && (*r.FatigueLevel < 1 || *r.FatigueLevel > 10) {
		return fmt.Errorf("%w: fatigue_level %d out of range 1-10", ErrInvalid, *r.FatigueLevel)
	}
	if p := r.PainOrTightness; p != nil {
		switch p.Severity {
		case "", SeverityMild, SeverityModerate, SeveritySevere:
		default:
			return fmt.Errorf("%w: unknown pain severity %q", ErrInvalid, p.Severity)
		}
	}
	for i, ex := range r.Exercises {
		if ex.Name == "" {
			return fmt.Errorf("%w: exercise %d has no name", ErrInvalid, i)
		}
		if ex.Sets != nil && *ex.Sets < 0 {
			return fmt.Errorf("%w: exercise %q has negative sets", ErrInvalid, ex.Name)
		}
		if ex.Reps != nil && *ex.Reps < 0 {
			return fmt.Errorf("%w: exercise %q has negative reps", ErrInvalid, ex.Name)
		}
	}
	if m := r.RunningMetrics; m != nil {
		for name, v := range map[string]*float64{
			"duration_minutes": m.DurationMinutes,
			"distance_km":      m.DistanceKm,
			"pace_min_per_km":  m.PaceMinPerKm,
		} {
			if v != nil && *v < 0 {
				return fmt.Errorf("%w: %s must be non-negative", ErrInvalid, name)
			}
		}
	}
	if a := r.Analysis; a != nil && a.MachineContext.ConfidenceScore != nil {
		s := *a.MachineContext.ConfidenceScore
		if s < 0 || s > 1 {
			return fmt.Errorf("%w: confidence_score %v out of range 0-1", ErrInvalid, s)
		}
	}
	return nil
}

package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kalambet/trainlog/internal/workout"
)

// mockCompleter implements Completer for testing.
type mockCompleter struct {
	response string
	err      error
	prompt   string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.response, m.err
}

const wellFormedReply = "### HUMAN INSIGHT\n" +
	"Great session.\n" +
	"### MACHINE CONTEXT\n" +
	"```json\n" +
	`{"training_phase":"maintenance","confidence_score":0.8}` + "\n" +
	"```\n"

func TestParse_WellFormed(t *testing.T) {
	got, err := Parse(wellFormedReply)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.HumanInsight != "Great session." {
		t.Errorf("HumanInsight = %q, want %q", got.HumanInsight, "Great session.")
	}
	if got.MachineContext.TrainingPhase != "maintenance" {
		t.Errorf("TrainingPhase = %q, want %q", got.MachineContext.TrainingPhase, "maintenance")
	}
	if got.MachineContext.ConfidenceScore == nil || *got.MachineContext.ConfidenceScore != 0.8 {
		t.Errorf("ConfidenceScore = %v, want 0.8", got.MachineContext.ConfidenceScore)
	}
	// Keys the reply never mentioned stay absent.
	if got.MachineContext.InjuryRisk != "" || got.MachineContext.ProblemAreas != nil {
		t.Errorf("unspecified keys populated: %+v", got.MachineContext)
	}
}

func TestParse_MultiLineInsight(t *testing.T) {
	raw := "### HUMAN INSIGHT\nStrong squats today.\n\nKeep the volume where it is.\n" +
		"### MACHINE CONTEXT\n```json\n{}\n```\n"
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "Strong squats today. Keep the volume where it is."
	if got.HumanInsight != want {
		t.Errorf("HumanInsight = %q, want %q", got.HumanInsight, want)
	}
}

func TestParse_VerbatimMachineContext(t *testing.T) {
	// Unrecognized enum-like values must be stored as-is, never coerced.
	raw := "### HUMAN INSIGHT\nFine.\n### MACHINE CONTEXT\n```json\n" +
		`{"training_phase":"experimental_block","problem_areas":["left knee"]}` + "\n```\n"
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.MachineContext.TrainingPhase != "experimental_block" {
		t.Errorf("TrainingPhase = %q, want verbatim value", got.MachineContext.TrainingPhase)
	}
	if len(got.MachineContext.ProblemAreas) != 1 || got.MachineContext.ProblemAreas[0] != "left knee" {
		t.Errorf("ProblemAreas = %v", got.MachineContext.ProblemAreas)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no JSON block", "### HUMAN INSIGHT\nNice work.\n### MACHINE CONTEXT\nnothing here\n"},
		{"unclosed fence", "### HUMAN INSIGHT\nNice.\n### MACHINE CONTEXT\n```json\n{\"a\":1}\n"},
		{"truncated JSON", "### HUMAN INSIGHT\nNice.\n### MACHINE CONTEXT\n```json\n{\"training_phase\":\n```\n"},
		{"non-object JSON", "### HUMAN INSIGHT\nNice.\n### MACHINE CONTEXT\n```json\n[1,2]\n```\n"},
		{"empty insight", "### HUMAN INSIGHT\n\n### MACHINE CONTEXT\n```json\n{}\n```\n"},
		{"empty reply", ""},
		{"confidence above 1", "### HUMAN INSIGHT\nNice.\n### MACHINE CONTEXT\n```json\n{\"confidence_score\":1.5}\n```\n"},
		{"negative confidence", "### HUMAN INSIGHT\nNice.\n### MACHINE CONTEXT\n```json\n{\"confidence_score\":-0.1}\n```\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParse_ConfidenceBounds(t *testing.T) {
	// 0 and 1 are valid; anything beyond fails rather than being clamped.
	for _, score := range []string{"0", "1", "0.75"} {
		raw := "### HUMAN INSIGHT\nFine.\n### MACHINE CONTEXT\n```json\n" +
			`{"confidence_score":` + score + "}\n```\n"
		if _, err := Parse(raw); err != nil {
			t.Errorf("Parse with confidence_score=%s: %v", score, err)
		}
	}
	raw := "### HUMAN INSIGHT\nFine.\n### MACHINE CONTEXT\n```json\n" +
		`{"confidence_score":1.01}` + "\n```\n"
	if _, err := Parse(raw); !errors.Is(err, ErrMalformed) {
		t.Errorf("Parse with confidence_score=1.01 = %v, want ErrMalformed", err)
	}
}

func TestAnalyze(t *testing.T) {
	mock := &mockCompleter{response: wellFormedReply}
	a := NewAnalyzer(mock)
	a.now = func() time.Time { return time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC) }

	record := &workout.Record{
		Date:        workout.NewDate(2026, time.March, 14),
		WorkoutType: workout.TypeStrength,
	}
	got, err := a.Analyze(context.Background(), record, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.ID == "" {
		t.Error("analysis has no ID")
	}
	if !got.AnalyzedAt.Equal(time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC)) {
		t.Errorf("AnalyzedAt = %v, want stamp from parse time", got.AnalyzedAt)
	}
	if mock.prompt == "" {
		t.Fatal("completer never received a prompt")
	}
}

func TestAnalyze_UpstreamError(t *testing.T) {
	mock := &mockCompleter{err: fmt.Errorf("connection refused")}
	a := NewAnalyzer(mock)

	record := &workout.Record{Date: workout.NewDate(2026, time.March, 14), WorkoutType: workout.TypeRun}
	_, err := a.Analyze(context.Background(), record, nil)
	if err == nil {
		t.Fatal("Analyze succeeded with a failing completer")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("upstream failure reported as a parse failure")
	}
}

func TestAnalyze_MalformedReply(t *testing.T) {
	mock := &mockCompleter{response: "I cannot analyze this workout."}
	a := NewAnalyzer(mock)

	record := &workout.Record{Date: workout.NewDate(2026, time.March, 14), WorkoutType: workout.TypeRun}
	_, err := a.Analyze(context.Background(), record, nil)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Analyze = %v, want ErrMalformed", err)
	}
}

// Package analysis turns a workout record and its recent history into a
// structured coaching analysis via an external completion service: it
// renders a deterministic prompt, invokes the service, and parses the fixed
// two-section reply.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/trainlog/internal/workout"
)

// ErrMalformed is returned when the completion reply cannot be parsed: the
// fenced JSON block is absent, truncated, or not an object, the insight
// section is empty, or confidence_score falls outside [0,1].
var ErrMalformed = errors.New("malformed analysis response")

// Completer is the completion-service call the analyzer depends on.
// Implemented by anthropic.Client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Analyzer orchestrates prompt rendering, invocation, and reply parsing.
type Analyzer struct {
	client Completer
	now    func() time.Time
}

// NewAnalyzer creates an Analyzer backed by the given completion client.
func NewAnalyzer(client Completer) *Analyzer {
	return &Analyzer{client: client, now: time.Now}
}

// Analyze produces an analysis for record given its history window. Upstream
// errors and malformed replies are surfaced, never retried.
func (a *Analyzer) Analyze(ctx context.Context, record *workout.Record, history []*workout.Record) (*workout.Analysis, error) {
	prompt := RenderPrompt(record, history)

	raw, err := a.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}

	result, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	result.ID = uuid.New().String()
	result.AnalyzedAt = a.now().UTC()
	return result, nil
}

// Reply section markers. Matched by substring so the model's exact heading
// style ("### HUMAN INSIGHT", "## HUMAN INSIGHT", ...) does not matter.
const (
	markerInsight   = "HUMAN INSIGHT"
	markerContext   = "MACHINE CONTEXT"
	markerFenceOpen = "```json"
	markerFence     = "```"
)

// Parse scans the reply line by line through three states: outside any
// section, inside the insight section, and inside the fenced JSON block.
// Insight lines are trimmed and joined with single spaces; JSON lines are
// joined with newlines and decoded once the scan completes. Machine-context
// strings are kept verbatim; unknown keys are dropped, missing keys stay
// absent. confidence_score is the one numeric bound enforced here: a value
// outside [0,1] fails the parse. AnalyzedAt and ID are the caller's to stamp.
func Parse(raw string) (*workout.Analysis, error) {
	var insightParts []string
	var jsonLines []string
	sawFence := false
	inInsight := false
	inJSON := false

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.Contains(line, markerInsight):
			inInsight = true
			continue
		case strings.Contains(line, markerContext):
			inInsight = false
			continue
		case strings.Contains(line, markerFenceOpen):
			inJSON = true
			sawFence = true
			continue
		case strings.Contains(line, markerFence) && inJSON:
			inJSON = false
			continue
		}

		if inInsight {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				insightParts = append(insightParts, trimmed)
			}
		} else if inJSON {
			jsonLines = append(jsonLines, line)
		}
	}

	if !sawFence {
		return nil, fmt.Errorf("%w: no fenced JSON block", ErrMalformed)
	}
	if inJSON {
		return nil, fmt.Errorf("%w: JSON block not closed", ErrMalformed)
	}

	insight := strings.Join(insightParts, " ")
	if insight == "" {
		return nil, fmt.Errorf("%w: empty insight section", ErrMalformed)
	}

	blob := strings.TrimSpace(strings.Join(jsonLines, "\n"))
	if !strings.HasPrefix(blob, "{") {
		return nil, fmt.Errorf("%w: JSON block is not an object", ErrMalformed)
	}
	var mc workout.MachineContext
	if err := json.Unmarshal([]byte(blob), &mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s := mc.ConfidenceScore; s != nil && (*s < 0 || *s > 1) {
		return nil, fmt.Errorf("%w: confidence_score %v out of range 0-1", ErrMalformed, *s)
	}

	return &workout.Analysis{
		HumanInsight:   insight,
		MachineContext: mc,
	}, nil
}

package analysis

import (
	"fmt"
	"strings"

	"github.com/kalambet/trainlog/internal/workout"
)

// historyWindow caps how many history entries the prompt carries, counted
// from the end of the supplied sequence.
const historyWindow = 7

const promptPreamble = `You are an expert fitness coach and movement analyst. Your role is to:
1. Analyze workout data objectively
2. Detect warning signals (fatigue accumulation, injury risk)
3. Identify patterns across multiple training sessions
4. Provide conservative, safety-focused recommendations
5. Generate both human-friendly insights and structured machine context

Your analysis should be:
- Evidence-based and specific
- Conservative (err on the side of safety)
- Encouraging but honest
- Actionable
`

const promptOutputFormat = `

## OUTPUT FORMAT

You MUST provide your analysis in exactly this format:

### HUMAN INSIGHT
[2-3 sentences of encouraging, practical feedback written naturally]

### MACHINE CONTEXT
` + "```json" + `
{
  "training_phase": "early_adaptation|maintenance|progressive_overload|deload",
  "overall_fatigue": "low|moderate|high|very_high",
  "injury_risk": "low|low_to_moderate|moderate|moderate_to_high|high",
  "problem_areas": ["area1", "area2"],
  "movement_quality": "excellent|good|acceptable|poor",
  "recommended_focus": ["focus1", "focus2"],
  "load_adjustment": "increase|maintain|maintain_or_slightly_reduce|reduce|rest",
  "confidence_score": 0.75
}
` + "```" + `

Guidelines:
- Be specific about problem areas and recommendations
- Confidence score should reflect data quality and certainty
- Conservative recommendations prioritize long-term health
- Focus on actionable next steps
`

// RenderPrompt produces the deterministic analysis prompt for a record and
// its history window. Sections for absent fields are omitted entirely; they
// are never rendered as empty markers. History entries beyond the 7 most
// recent (by supplied order) are dropped, and each surviving entry is
// reduced to date, type, fatigue, and pain areas.
func RenderPrompt(record *workout.Record, history []*workout.Record) string {
	var b strings.Builder
	b.WriteString(promptPreamble)

	b.WriteString("\n## CURRENT WORKOUT LOG\n\n")
	fmt.Fprintf(&b, "Date: %s\n", record.Date)
	fmt.Fprintf(&b, "Type: %s\n", record.WorkoutType)

	if len(record.Exercises) > 0 {
		b.WriteString("\nExercises:\n")
		for _, ex := range record.Exercises {
			fmt.Fprintf(&b, "- %s", ex.Name)
			if ex.Sets != nil {
				fmt.Fprintf(&b, ": %d sets", *ex.Sets)
			}
			if ex.Reps != nil {
				fmt.Fprintf(&b, " x %d reps", *ex.Reps)
			}
			if ex.Load != "" {
				fmt.Fprintf(&b, " (%s)", ex.Load)
			}
			b.WriteString("\n")
			if ex.Notes != "" {
				fmt.Fprintf(&b, "  Notes: %s\n", ex.Notes)
			}
		}
	}

	if m := record.RunningMetrics; m != nil {
		b.WriteString("\nRunning data:\n")
		if m.DurationMinutes != nil {
			fmt.Fprintf(&b, "- Duration: %g minutes\n", *m.DurationMinutes)
		}
		if m.DistanceKm != nil {
			fmt.Fprintf(&b, "- Distance: %g km\n", *m.DistanceKm)
		}
		if m.PaceMinPerKm != nil {
			fmt.Fprintf(&b, "- Pace: %g min/km\n", *m.PaceMinPerKm)
		}
		if m.Route != "" {
			fmt.Fprintf(&b, "- Route: %s\n", m.Route)
		}
	}

	if record.PerceivedEffort != "" {
		fmt.Fprintf(&b, "\nPerceived effort: %s\n", record.PerceivedEffort)
	}
	if record.FatigueLevel != nil {
		fmt.Fprintf(&b, "Fatigue level: %d/10\n", *record.FatigueLevel)
	}

	if p := record.PainOrTightness; p != nil {
		if len(p.BodyAreas) > 0 {
			fmt.Fprintf(&b, "\nAffected areas: %s\n", strings.Join(p.BodyAreas, ", "))
		}
		if p.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", p.Description)
		}
		if p.Severity != "" {
			fmt.Fprintf(&b, "Severity: %s\n", p.Severity)
		}
	}

	if record.Reflection != "" {
		fmt.Fprintf(&b, "\nUser reflection:\n%s\n", record.Reflection)
	}

	if len(history) > 0 {
		b.WriteString("\n## RECENT WORKOUT HISTORY\n")
		start := 0
		if len(history) > historyWindow {
			start = len(history) - historyWindow
		}
		for _, entry := range history[start:] {
			fmt.Fprintf(&b, "\n%s - %s\n", entry.Date, entry.WorkoutType)
			if entry.FatigueLevel != nil {
				fmt.Fprintf(&b, "  Fatigue: %d/10\n", *entry.FatigueLevel)
			}
			if entry.PainOrTightness != nil && len(entry.PainOrTightness.BodyAreas) > 0 {
				fmt.Fprintf(&b, "  Pain/tightness: %s\n", strings.Join(entry.PainOrTightness.BodyAreas, ", "))
			}
		}
	}

	b.WriteString(promptOutputFormat)
	return b.String()
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/trainlog/internal/workout"
)

// NewMCPServer creates an MCP server exposing the record store and the
// analysis gateway as tools, so an assistant can log and review workouts
// directly.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"trainlog",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("trainlog — personal workout log with AI coaching analysis. One record per calendar date."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("log_workout",
			mcp.WithDescription("Create or replace the workout record for a date. The record is a JSON object with date, workout_type (strength|run|recovery), and optional exercises, running_metrics, perceived_effort, fatigue_level, pain_or_tightness, reflection."),
			mcp.WithString("record", mcp.Description("The workout record as a JSON object"), mcp.Required()),
		),
		mcpLogWorkout(deps),
	)

	s.AddTool(
		mcp.NewTool("get_workout",
			mcp.WithDescription("Fetch the workout record for a date."),
			mcp.WithString("date", mcp.Description("Date in YYYY-MM-DD form"), mcp.Required()),
		),
		mcpGetWorkout(deps),
	)

	s.AddTool(
		mcp.NewTool("list_workout_dates",
			mcp.WithDescription("List every date with a stored workout record, ascending."),
		),
		mcpListWorkoutDates(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_workout",
			mcp.WithDescription("Run the AI coaching analysis for a date's record and store the result on it."),
			mcp.WithString("date", mcp.Description("Date in YYYY-MM-DD form"), mcp.Required()),
			mcp.WithNumber("history_days", mcp.Description("Days of history to include, 1-30 (default 7)")),
		),
		mcpAnalyzeWorkout(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"workout://recent",
			"Recent Workouts",
			mcp.WithResourceDescription("Workout records for the trailing 7 days"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpLogWorkout(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("record")
		if err != nil {
			return mcpError("record is required"), nil
		}

		var record workout.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return mcpError(fmt.Sprintf("invalid record JSON: %v", err)), nil
		}
		record.Analysis = nil
		record.CreatedAt = time.Time{}
		record.UpdatedAt = time.Time{}
		if err := record.Validate(); err != nil {
			return mcpError(err.Error()), nil
		}

		// Replacing an existing day keeps its creation timestamp.
		if existing, err := deps.Store.Get(record.Date); err == nil {
			record.CreatedAt = existing.CreatedAt
		}

		if err := deps.Store.Put(&record); err != nil {
			return mcpError(fmt.Sprintf("failed to save record: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Logged %s workout for %s", record.WorkoutType, record.Date)), nil
	}
}

func mcpGetWorkout(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dateStr, err := req.RequireString("date")
		if err != nil {
			return mcpError("date is required"), nil
		}
		date, err := workout.ParseDate(dateStr)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		record, err := deps.Store.Get(date)
		if err != nil {
			return mcpError(fmt.Sprintf("no record for %s", date)), nil
		}

		b, err := json.Marshal(record)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal record: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListWorkoutDates(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dates, err := deps.Store.Dates()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list dates: %v", err)), nil
		}
		if len(dates) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(dates)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal dates: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAnalyzeWorkout(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dateStr, err := req.RequireString("date")
		if err != nil {
			return mcpError("date is required"), nil
		}
		date, err := workout.ParseDate(dateStr)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		historyDays := req.GetInt("history_days", defaultHistoryDays)
		if historyDays < 1 || historyDays > maxHistoryDays {
			return mcpError(fmt.Sprintf("history_days must be between 1 and %d", maxHistoryDays)), nil
		}

		record, err := runAnalysis(ctx, deps, date, historyDays)
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		b, err := json.Marshal(record)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal record: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Store.Recent(7)
		if err != nil {
			return nil, fmt.Errorf("loading recent records: %w", err)
		}
		if records == nil {
			records = []*workout.Record{}
		}
		b, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("marshaling recent records: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "workout://recent",
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

func mcpError(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

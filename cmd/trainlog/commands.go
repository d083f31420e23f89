package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/trainlog/internal/workout"
)

// --- log ---

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log a workout from a JSON record",
	Long: `Log a workout from a JSON record.

Examples:
  trainlog log --file ./2026-08-30.json
  cat session.json | trainlog log
  trainlog log --file ./2026-08-30.json --update`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		update, _ := cmd.Flags().GetBool("update")

		var data []byte
		var err error
		if file != "" {
			data, err = os.ReadFile(file)
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("reading record: %w", err)
		}

		var record workout.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("invalid record JSON: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var resp *http.Response
		if update {
			resp, err = client.put(cmd.Context(), "/records/"+record.Date.String(), record)
		} else {
			resp, err = client.post(cmd.Context(), "/records", record)
		}
		if err != nil {
			return err
		}
		if !update && resp.StatusCode == 409 {
			resp.Body.Close()
			return fmt.Errorf("a record for %s already exists (use --update to replace it)", record.Date)
		}

		var saved workout.Record
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}

		printSuccess("Logged workout for %s", saved.Date)
		return nil
	},
}

func init() {
	logCmd.Flags().String("file", "", "JSON file to read the record from (default: stdin)")
	logCmd.Flags().Bool("update", false, "replace an existing record for the same date")
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Show the workout record for a date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/records/"+args[0])
		if err != nil {
			return err
		}

		var record any
		if err := decodeJSON(resp, &record); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent workout records",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/records?days=%d", days)
		if start != "" || end != "" {
			path = fmt.Sprintf("/records?start=%s&end=%s", start, end)
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var records []workout.Record
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No workouts found.")
			return nil
		}

		for _, r := range records {
			extras := []string{}
			if r.PerceivedEffort != "" {
				extras = append(extras, r.PerceivedEffort)
			}
			if r.Analysis != nil {
				extras = append(extras, "analyzed")
			}
			suffix := ""
			if len(extras) > 0 {
				suffix = "  (" + strings.Join(extras, ", ") + ")"
			}
			fmt.Printf("%s  %s%s\n",
				dateLabel(r.Date.String()),
				r.WorkoutType,
				suffix,
			)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Int("days", 7, "number of days to look back")
	listCmd.Flags().String("start", "", "range start date (YYYY-MM-DD, requires --end)")
	listCmd.Flags().String("end", "", "range end date (YYYY-MM-DD, requires --start)")
}

// --- delete ---

var deleteCmd = &cobra.Command{
	Use:   "delete <date>",
	Short: "Delete the workout record for a date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/records/"+args[0])
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == 404 {
			printWarning("No record for %s", args[0])
			return nil
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Deleted record for %s", args[0])
		return nil
	},
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <date>",
	Short: "Generate coaching analysis for a logged workout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, _ := cmd.Flags().GetInt("history")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/records/%s/analysis?history_days=%d", args[0], history)
		resp, err := client.post(cmd.Context(), path, nil)
		if err != nil {
			return err
		}

		var record workout.Record
		if err := decodeJSON(resp, &record); err != nil {
			return err
		}
		if record.Analysis == nil {
			return fmt.Errorf("server returned no analysis")
		}

		fmt.Println(colorize(ansiBold, "Coaching insight"))
		fmt.Println(record.Analysis.HumanInsight)

		mc := record.Analysis.MachineContext
		fmt.Println()
		if mc.TrainingPhase != "" {
			printField("Training phase", "%s", mc.TrainingPhase)
		}
		if mc.OverallFatigue != "" {
			printField("Fatigue", "%s", mc.OverallFatigue)
		}
		if mc.InjuryRisk != "" {
			printField("Injury risk", "%s", mc.InjuryRisk)
		}
		if mc.LoadAdjustment != "" {
			printField("Load adjustment", "%s", mc.LoadAdjustment)
		}
		if len(mc.RecommendedFocus) > 0 {
			printField("Focus", "%s", strings.Join(mc.RecommendedFocus, ", "))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Int("history", 7, "days of history to include as context (1-30)")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary statistics for the whole log",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats/summary")
		if err != nil {
			return err
		}

		var summary struct {
			TotalRecords int            `json:"total_records"`
			FirstDate    string         `json:"first_date,omitempty"`
			LastDate     string         `json:"last_date,omitempty"`
			WorkoutTypes map[string]int `json:"workout_types"`
		}
		if err := decodeJSON(resp, &summary); err != nil {
			return err
		}

		printField("Total workouts", "%d", summary.TotalRecords)
		if summary.FirstDate != "" {
			printField("First", "%s", summary.FirstDate)
			printField("Last", "%s", summary.LastDate)
		}
		for wt, count := range summary.WorkoutTypes {
			printField(wt, "%d", count)
		}
		return nil
	},
}

// --- journal ---

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent analysis attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/analysis/journal?limit=%d", limit))
		if err != nil {
			return err
		}

		var entries []struct {
			Date       string `json:"date"`
			Model      string `json:"model"`
			DurationMs int64  `json:"duration_ms"`
			Outcome    string `json:"outcome"`
			Error      string `json:"error,omitempty"`
			CreatedAt  string `json:"created_at"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No analysis attempts recorded.")
			return nil
		}

		for _, e := range entries {
			outcome := e.Outcome
			if outcome == "ok" {
				outcome = colorize(ansiGreen, outcome)
			} else {
				outcome = colorize(ansiRed, outcome)
			}
			fmt.Printf("%s  %s  %s  %dms\n",
				dateLabel(e.Date),
				e.CreatedAt,
				outcome,
				e.DurationMs,
			)
		}
		return nil
	},
}

func init() {
	journalCmd.Flags().Int("limit", 20, "maximum number of entries to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		apiKey := "(not set)"
		if cfg.Anthropic.APIKey != "" {
			apiKey = "(set)"
		}

		fmt.Printf("  %s = %s\n", colorize(ansiBold, "server.address"), cfg.Server.Address)
		fmt.Printf("  %s = %s\n", colorize(ansiBold, "storage.data_dir"), cfg.Storage.DataDir)
		fmt.Printf("  %s = %s\n", colorize(ansiBold, "anthropic.api_key"), apiKey)
		fmt.Printf("  %s = %s\n", colorize(ansiBold, "anthropic.model"), cfg.Anthropic.Model)
		if cfg.Anthropic.BaseURL != "" {
			fmt.Printf("  %s = %s\n", colorize(ansiBold, "anthropic.base_url"), cfg.Anthropic.BaseURL)
		}
		fmt.Printf("  %s = %s\n", colorize(ansiBold, "log.level"), cfg.Log.Level)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

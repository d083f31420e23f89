package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/trainlog/internal/analysis"
	"github.com/kalambet/trainlog/internal/anthropic"
	"github.com/kalambet/trainlog/internal/api"
	"github.com/kalambet/trainlog/internal/journal"
	"github.com/kalambet/trainlog/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the trainlog server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running trainlog server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show trainlog system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "trainlog.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevelFromConfig(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "trainlog version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevelFromConfig(cfg.Log.Level),
	})))

	if cfg.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic API key is not configured (set TRAINLOG_ANTHROPIC_API_KEY)")
	}

	// Refuse to start if another instance already answers on the address.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := "http://" + cfg.Server.Address + "/health"
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("trainlog is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("trainlog is already running on %s", cfg.Server.Address)
		return fmt.Errorf("server already running on %s", cfg.Server.Address)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(filepath.Join(cfg.Storage.DataDir, "records"))
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}

	jrnl, err := journal.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening analysis journal: %w", err)
	}
	defer func() {
		if err := jrnl.Close(); err != nil {
			slog.Warn("closing analysis journal", "error", err)
		}
	}()

	var client *anthropic.Client
	if cfg.Anthropic.BaseURL != "" {
		client = anthropic.NewWithBaseURL(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL)
	} else {
		client = anthropic.New(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	}

	deps := api.Deps{
		Store:    st,
		Analyzer: analysis.NewAnalyzer(client),
		Journal:  jrnl,
		Model:    cfg.Anthropic.Model,
		Version:  version,
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.NewHandler(deps),
	}
	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("MCP server started (stdio transport)")
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func stopServer() error {
	cfg, err := loadConfig()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("trainlog is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop trainlog (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to trainlog (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := "http://" + cfg.Server.Address
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printField("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printField("Server", "running on %s", cfg.Server.Address)
		} else {
			printField("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printField("Model", "%s", cfg.Anthropic.Model)

	// Show record count if the server is running.
	if err == nil && resp.StatusCode == 200 {
		datesResp, derr := client.Get(serverURL + "/records/dates")
		if derr == nil {
			var dates []string
			if json.NewDecoder(datesResp.Body).Decode(&dates) == nil {
				printField("Records", "%d", len(dates))
			}
			datesResp.Body.Close()
		}
	}

	printField("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

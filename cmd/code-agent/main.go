package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Pelix05/Code-Agent-Project/internal/api"
	"github.com/Pelix05/Code-Agent-Project/internal/config"
	"github.com/Pelix05/Code-Agent-Project/internal/ingest"
	"github.com/Pelix05/Code-Agent-Project/internal/log"
	"github.com/Pelix05/Code-Agent-Project/internal/patch"
	"github.com/Pelix05/Code-Agent-Project/internal/pipeline"
	"github.com/Pelix05/Code-Agent-Project/internal/queue"
	"github.com/Pelix05/Code-Agent-Project/internal/status"
	"github.com/Pelix05/Code-Agent-Project/internal/storage"
	"github.com/Pelix05/Code-Agent-Project/internal/tui"
	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("code-agent starting", "version", version, "config", *configPath)

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	q := queue.New(db)
	registry := workspace.NewRegistry()
	statusStore := status.NewStore(cfg.Workspace.Root)
	applier := patch.NewApplier()

	ingestor, err := ingest.New(cfg.Workspace.Root, cfg.Ingest.MaxMembers, cfg.Ingest.MaxBytes)
	if err != nil {
		logger.Error("failed to initialize ingestor", "root", cfg.Workspace.Root, "error", err)
		return 1
	}

	toolsets := map[workspace.Language]pipeline.Toolset{
		workspace.LangPy:  pipeline.NewExecToolset(workspace.LangPy, cfg.Tools.Py, cfg.Tools.Timeout, cfg.Pipeline.MaxIterations),
		workspace.LangCpp: pipeline.NewExecToolset(workspace.LangCpp, cfg.Tools.Cpp, cfg.Tools.Timeout, cfg.Pipeline.MaxIterations),
	}

	runner := pipeline.NewRunner(q, registry, statusStore, toolsets, cfg.Pipeline.Workers, cfg.Pipeline.PollInterval)

	apiConfig := api.Config{
		Listen:         cfg.API.Listen,
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		PatchDirs: map[workspace.Language]string{
			workspace.LangPy:  cfg.Patches.PyDir,
			workspace.LangCpp: cfg.Patches.CppDir,
		},
	}
	apiServer := api.New(apiConfig, q, ingestor, registry, statusStore, applier, toolsets, log.WithComponent("api"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 3)

	go func() {
		if err := runner.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("pipeline: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()

	if cfg.Workspace.Retention > 0 {
		janitor := workspace.NewJanitor(cfg.Workspace.Root, cfg.Workspace.Retention, cfg.Workspace.SweepTick, log.Get())
		go func() {
			if err := janitor.Run(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("janitor: %w", err)
			}
		}()
	}

	logger.Info("code-agent started", "listen", cfg.API.Listen, "workers", cfg.Pipeline.Workers)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		time.Sleep(500 * time.Millisecond)
		return 0
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api", "http://localhost:5000", "Base URL of the code-agent API")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: code-agent watch [--api URL] <workspace-id>")
		return 1
	}

	model := tui.NewMonitor(strings.TrimRight(*apiURL, "/"), fs.Arg(0))
	if _, err := tea.NewProgram(model).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		return 1
	}
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("code-agent %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	builtAt := strings.TrimSpace(buildDate)
	if builtAt == "" || builtAt == "unknown" {
		builtAt = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, builtAt); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}

	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`code-agent - Code repair pipeline service

Usage:
  code-agent <command> [flags]

Commands:
  start     Start the service in foreground
  watch     Real-time monitor for one workspace's pipeline run
  version   Show version information
  help      Show this help message

Start flags:
  --config PATH   Configuration file or directory (default ./config.yaml)

Watch:
  code-agent watch [--api URL] <workspace-id>

The service exposes:
  POST /upload         multipart zip upload, returns the workspace id
  GET  /status?ws=ID   pipeline status / result for a workspace
  POST /process        free-text operator command
  POST /compare_patch  diff of snapshot vs patched working copy
  GET  /healthz        service health
`)
}

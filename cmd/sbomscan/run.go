package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"

	"github.com/daimoniac/sbomscan/internal/config"
	"github.com/daimoniac/sbomscan/internal/ghactions"
	"github.com/daimoniac/sbomscan/internal/httpclient"
	"github.com/daimoniac/sbomscan/internal/observability"
	"github.com/daimoniac/sbomscan/internal/orchestrator"
	"github.com/daimoniac/sbomscan/internal/policy"
	"github.com/daimoniac/sbomscan/internal/poller"
	"github.com/daimoniac/sbomscan/internal/report"
	"github.com/daimoniac/sbomscan/internal/sbom"
	"github.com/daimoniac/sbomscan/internal/scanapi"
)

// app holds the process-level dependencies of a run
type app struct {
	stdout     io.Writer
	runner     sbom.Runner // nil runs the real generator binary
	configPath string
	debug      bool
}

// run performs one scan and returns the process exit code. An error is
// returned only when the configuration is unusable.
func (a *app) run(ctx context.Context) (int, error) {
	_ = godotenv.Load()

	cfg, err := a.loadConfig()
	if err != nil {
		return 1, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return 1, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLoggerWithWriter(a.stdout, cfg.Observability.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting sbomscan",
		"version", version,
		"config", cfg.Redacted())

	engine, err := policy.NewEngine(cfg.Policy, logger)
	if err != nil {
		return 1, fmt.Errorf("invalid configuration: %w", err)
	}

	generator, err := sbom.New(cfg.Generator.Name, a.runner, sbom.WithLogger(logger))
	if err != nil {
		return 1, fmt.Errorf("invalid configuration: %w", err)
	}

	hc := httpclient.New(httpclient.Options{
		Timeout:    cfg.API.RequestTimeout,
		MaxRetries: cfg.API.MaxRetries,
	}, logger)
	gateway := scanapi.NewClient(cfg.API.BaseURL, cfg.API.Token, hc, logger)

	completion := poller.New(gateway, poller.Config{Interval: cfg.Scan.PollInterval}, logger)

	orch := orchestrator.New(generator, gateway, completion, orchestrator.Options{
		RepositoryURL:    cfg.Scan.RepositoryURL,
		Branch:           cfg.Scan.Branch,
		ScanPath:         cfg.Scan.ScanPath,
		Dir:              cfg.Scan.RepoScanPath(),
		ScanTimeout:      cfg.Scan.Timeout,
		GeneratorVersion: cfg.Generator.VersionConstraint,
	}, logger)

	result := orch.Run(ctx)

	return a.finish(cfg, engine, result, logger), nil
}

func (a *app) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFrom(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if a.debug {
		cfg.Observability.Debug = true
		cfg.Observability.LogLevel = "debug"
	}
	return cfg, nil
}

// finish publishes the outputs, the job summary and the metrics of a run.
// Publishing failures are logged and never change the exit code.
func (a *app) finish(cfg *config.Config, engine *policy.Engine, result orchestrator.RunResult, logger *slog.Logger) int {
	writer := ghactions.NewWriter(cfg.Outputs.OutputFile, cfg.Outputs.SummaryFile, a.stdout, logger)

	if err := writer.SetOutput("status", string(result.Status())); err != nil {
		logger.Error("failed to set output", "name", "status", "error", err)
	}
	if err := writer.SetOutput("scan_id", result.ScanID()); err != nil {
		logger.Error("failed to set output", "name", "scan_id", "error", err)
	}

	logger.Info(report.StatusSentence(result, cfg.Scan.Branch, cfg.Scan.ScanPath))
	logger.Info(report.Message(result))

	var summary strings.Builder
	if err := report.Render(&summary, result); err != nil {
		logger.Error("failed to render job summary", "error", err)
	} else if err := writer.WriteSummary(summary.String()); err != nil {
		logger.Error("failed to write job summary", "error", err)
	}

	code := engine.ExitCode(result)

	if err := observability.WriteTextfile(cfg.Outputs.MetricsFile); err != nil {
		logger.Error("failed to write metrics", "error", err)
	}

	logger.Info("sbomscan finished",
		"status", string(result.Status()),
		"scan_id", result.ScanID(),
		"exit_code", code)
	return code
}

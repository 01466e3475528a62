package sbom

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/daimoniac/sbomscan/internal/errors"
	"github.com/daimoniac/sbomscan/internal/observability"
)

// CLIGenerator implements Generator by invoking a command line tool
type CLIGenerator struct {
	name   string
	args   []string
	runner Runner
	logger *slog.Logger
}

// Option configures a CLIGenerator
type Option func(*CLIGenerator)

// WithLogger sets the logger used by the generator
func WithLogger(logger *slog.Logger) Option {
	return func(g *CLIGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewCLIGenerator creates a generator that runs name with args
func NewCLIGenerator(name string, args []string, runner Runner, opts ...Option) *CLIGenerator {
	if runner == nil {
		runner = OSRunner{}
	}
	g := &CLIGenerator{
		name:   name,
		args:   args,
		runner: runner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the generator command
func (g *CLIGenerator) Name() string {
	return g.name
}

// HealthCheck reports whether the generator command is on PATH
func (g *CLIGenerator) HealthCheck(_ context.Context) error {
	if _, err := g.runner.LookPath(g.name); err != nil {
		return errors.NewPermanentf("%s command not available: %w", g.name, err)
	}
	return nil
}

// Generate runs the generator in dir and loads the artifact it wrote
func (g *CLIGenerator) Generate(ctx context.Context, dir string) (*Artifact, error) {
	startTime := time.Now()
	g.logger.Info("generating SBOM",
		"generator", g.name,
		"command", g.name+" "+strings.Join(g.args, " "),
		"dir", dir)

	if err := g.runner.Run(ctx, dir, g.name, g.args...); err != nil {
		g.logger.Error("SBOM generation failed",
			"generator", g.name,
			"dir", dir,
			"duration", time.Since(startTime),
			"error", err)
		return nil, fmt.Errorf("%s failed: %w", g.name, err)
	}

	artifact, err := ReadArtifact(filepath.Join(dir, ArtifactFile))
	if err != nil {
		g.logger.Error("SBOM generation failed",
			"generator", g.name,
			"dir", dir,
			"duration", time.Since(startTime),
			"error", err)
		return nil, fmt.Errorf("%s did not generate %s: %w", g.name, ArtifactFile, err)
	}

	observability.GetMetrics().SBOMComponents.Set(float64(artifact.ComponentCount()))
	g.logger.Info("SBOM generated successfully",
		"generator", g.name,
		"duration", time.Since(startTime),
		"size_bytes", len(artifact.Bytes()),
		"components", artifact.ComponentCount())

	return artifact, nil
}

// Package orchestrator runs one scan end to end: generate the SBOM, register
// the scan, upload the SBOM, wait for the verdict and classify it. Every
// failure is folded into a RunResult; Run never returns an error.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"github.com/daimoniac/sbomscan/internal/errors"
	"github.com/daimoniac/sbomscan/internal/observability"
	"github.com/daimoniac/sbomscan/internal/poller"
	"github.com/daimoniac/sbomscan/internal/sbom"
	"github.com/daimoniac/sbomscan/internal/scanapi"
)

// Options identifies what one run scans
type Options struct {
	RepositoryURL    string
	Branch           string
	ScanPath         string // relative to the repository root
	Dir              string // local directory the generator runs in
	ScanTimeout      time.Duration
	GeneratorVersion string // optional semver constraint on the SBOM tool
}

// Orchestrator runs the scan workflow
type Orchestrator struct {
	generator sbom.Generator
	gateway   scanapi.Gateway
	poller    poller.Poller
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates an orchestrator
func New(generator sbom.Generator, gateway scanapi.Gateway, p poller.Poller, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		generator: generator,
		gateway:   gateway,
		poller:    p,
		opts:      opts,
		logger:    logger,
		metrics:   observability.GetMetrics(),
	}
}

// NormalizeScanPath turns a repository-relative path into the absolute,
// forward-slash form the scan service expects: "sub\dir" becomes "/sub/dir".
func NormalizeScanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// Run executes the workflow and returns its result
func (o *Orchestrator) Run(ctx context.Context) (result RunResult) {
	startTime := time.Now()
	var scanID string

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("scan workflow panicked",
				"scan_id", scanID,
				"panic", r,
				"stack", string(debug.Stack()))
			result = Error{ID: scanID, Message: fmt.Sprintf("An unknown error occurred: %v", r)}
		}
		o.recordResult(result, startTime)
	}()

	o.logger.Info("starting scan workflow",
		"repository_url", o.opts.RepositoryURL,
		"branch", o.opts.Branch,
		"scan_path", o.opts.ScanPath,
		"generator", o.generator.Name())

	// Phase 1: SBOM generation
	artifact, res := o.generateSBOM(ctx)
	if res != nil {
		return res
	}

	// Phase 2: Scan registration
	handle, res := o.startScan(ctx)
	if res != nil {
		return res
	}
	scanID = handle.ScanID

	// Phase 3: Upload
	if res := o.uploadSBOM(ctx, handle, artifact); res != nil {
		return res
	}

	// Phase 4: Wait for the verdict
	outcome, res := o.pollCompletion(ctx, scanID)
	if res != nil {
		return res
	}

	// Phase 5: Classification
	return Classify(scanID, outcome)
}

// generateSBOM checks the generator is installed and runs it
func (o *Orchestrator) generateSBOM(ctx context.Context) (*sbom.Artifact, RunResult) {
	name := o.generator.Name()

	if err := o.generator.HealthCheck(ctx); err != nil {
		o.logger.Error("SBOM generator not available", "generator", name, "error", err)
		return nil, Error{Message: fmt.Sprintf("%s is not installed or not on PATH", name)}
	}

	artifact, err := o.generator.Generate(ctx, o.opts.Dir)
	if err != nil {
		if stderrors.Is(err, errors.ErrArtifactMissing) {
			return nil, Error{Message: fmt.Sprintf("%s did not generate %s", name, sbom.ArtifactFile)}
		}
		return nil, Error{Message: err.Error()}
	}

	if tool, ok := artifact.Tool(); ok {
		o.logger.Info("SBOM tool", "tool", tool.String(), "name", tool.Name, "version", tool.Version)
		if err := sbom.CheckToolVersion(o.opts.GeneratorVersion, tool); err != nil {
			o.logger.Warn("SBOM tool version check failed", "constraint", o.opts.GeneratorVersion, "error", err)
		}
	} else {
		o.logger.Info("SBOM does not list the generating tool")
	}

	return artifact, nil
}

// startScan registers the scan with the scan service
func (o *Orchestrator) startScan(ctx context.Context) (*scanapi.ScanHandle, RunResult) {
	req := scanapi.ScanRequest{
		RepositoryURL: o.opts.RepositoryURL,
		Branch:        o.opts.Branch,
		Path:          NormalizeScanPath(o.opts.ScanPath),
	}

	o.logger.Info("starting scan", "repository_url", req.RepositoryURL, "branch", req.Branch, "path", req.Path)
	handle, err := o.gateway.StartScan(ctx, req)
	if err != nil {
		status, message := describe(err)
		o.logger.Error("failed to start scan", "status", status, "error", message)
		return nil, Error{Message: fmt.Sprintf("Failed to start scan with HTTP status code: %d, message: %s", status, message)}
	}

	o.logger.Info("scan started", "scan_id", handle.ScanID)
	return handle, nil
}

// uploadSBOM uploads the artifact to the scan's upload URL
func (o *Orchestrator) uploadSBOM(ctx context.Context, handle *scanapi.ScanHandle, artifact *sbom.Artifact) RunResult {
	o.logger.Info("uploading SBOM", "scan_id", handle.ScanID, "size_bytes", len(artifact.Bytes()))
	if err := o.gateway.UploadSBOM(ctx, handle.UploadURL, artifact); err != nil {
		status, message := describe(err)
		o.logger.Error("failed to upload SBOM", "scan_id", handle.ScanID, "status", status, "error", message)
		return Error{ID: handle.ScanID, Message: fmt.Sprintf("Failed to upload SBOM with HTTP status code: %d", status)}
	}

	o.logger.Info("SBOM uploaded successfully", "scan_id", handle.ScanID)
	return nil
}

// pollCompletion waits until the scan leaves Pending
func (o *Orchestrator) pollCompletion(ctx context.Context, scanID string) (scanapi.ScanOutcome, RunResult) {
	o.logger.Info("waiting for scan completion", "scan_id", scanID, "timeout", o.opts.ScanTimeout.String())
	outcome, err := o.poller.Poll(ctx, scanID, o.opts.ScanTimeout)
	if err != nil {
		if stderrors.Is(err, errors.ErrScanTimeout) {
			o.logger.Error("scan timed out", "scan_id", scanID, "timeout", o.opts.ScanTimeout.String())
			return nil, Error{ID: scanID, Message: "Scan did not complete within the timeout."}
		}
		_, message := describe(err)
		o.logger.Error("failed to get scan result", "scan_id", scanID, "error", message)
		return nil, Error{ID: scanID, Message: "Failed to get scan result: " + message}
	}
	return outcome, nil
}

// Classify maps a terminal scan outcome to the run result
func Classify(scanID string, outcome scanapi.ScanOutcome) RunResult {
	switch o := outcome.(type) {
	case scanapi.OutcomeSuccess:
		return Success{ID: scanID, Summary: o.Summary}
	case scanapi.OutcomeFailure:
		return Failure{ID: scanID, Summary: o.Summary}
	case scanapi.OutcomeSkipped:
		return Skipped{ID: scanID, Reason: o.Reason}
	case scanapi.OutcomeError:
		remote := &errors.RemoteScanError{ScanID: scanID, Errors: o.Errors}
		return Error{ID: scanID, Message: remote.Error()}
	case nil:
		return Error{ID: scanID, Message: "Scan returned an unexpected status: none"}
	default:
		return Error{ID: scanID, Message: fmt.Sprintf("Scan returned an unexpected status: %s", o.Status())}
	}
}

// describe extracts the HTTP status code and message of a gateway error
func describe(err error) (int, string) {
	if apiErr, ok := errors.AsAPIError(err); ok {
		return apiErr.StatusCode, apiErr.Message
	}
	return 0, err.Error()
}

// recordResult logs the run outcome and records run metrics
func (o *Orchestrator) recordResult(result RunResult, startTime time.Time) {
	duration := time.Since(startTime)
	o.metrics.RunsTotal.WithLabelValues(string(result.Status())).Inc()
	o.metrics.RunDuration.Observe(duration.Seconds())

	if summary, ok := SummaryOf(result); ok {
		for _, severity := range scanapi.Severities {
			o.metrics.FindingsReported.WithLabelValues(string(severity)).Add(float64(summary.Count(severity)))
		}
	}

	attrs := []any{
		"status", string(result.Status()),
		"scan_id", result.ScanID(),
		"duration", duration,
	}
	switch r := result.(type) {
	case Error:
		o.logger.Error("scan workflow finished", append(attrs, "message", r.Message)...)
	case Skipped:
		o.logger.Info("scan workflow finished", append(attrs, "message", r.Message())...)
	default:
		o.logger.Info("scan workflow finished", attrs...)
	}
}

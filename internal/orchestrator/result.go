package orchestrator

import (
	"github.com/daimoniac/sbomscan/internal/scanapi"
)

// RunStatus is the terminal status of a run, as written to the step outputs
type RunStatus string

const (
	RunSuccess RunStatus = "Success"
	RunFailure RunStatus = "Failure"
	RunSkipped RunStatus = "Skipped"
	RunError   RunStatus = "Error"
)

// RunResult is the outcome of a complete run. The set of implementations is
// closed: Success, Failure, Skipped and Error.
type RunResult interface {
	Status() RunStatus
	// ScanID is empty when the run failed before a scan was registered
	ScanID() string
	isRunResult()
}

// Success means the scan passed policy
type Success struct {
	ID      string
	Summary scanapi.FindingsSummary
}

// Failure means the scan found policy violations
type Failure struct {
	ID      string
	Summary scanapi.FindingsSummary
}

// Skipped means the scan service did not scan
type Skipped struct {
	ID     string
	Reason string
}

// Message is the human readable form of the skip
func (r Skipped) Message() string {
	return "Scan skipped, reason: " + r.Reason
}

// Error means the run could not complete
type Error struct {
	ID      string
	Message string
}

func (Success) Status() RunStatus { return RunSuccess }
func (Failure) Status() RunStatus { return RunFailure }
func (Skipped) Status() RunStatus { return RunSkipped }
func (Error) Status() RunStatus   { return RunError }

func (r Success) ScanID() string { return r.ID }
func (r Failure) ScanID() string { return r.ID }
func (r Skipped) ScanID() string { return r.ID }
func (r Error) ScanID() string   { return r.ID }

func (Success) isRunResult() {}
func (Failure) isRunResult() {}
func (Skipped) isRunResult() {}
func (Error) isRunResult()   {}

// SummaryOf returns the findings summary carried by result, if any
func SummaryOf(result RunResult) (scanapi.FindingsSummary, bool) {
	switch r := result.(type) {
	case Success:
		return r.Summary, true
	case Failure:
		return r.Summary, true
	default:
		return scanapi.FindingsSummary{}, false
	}
}

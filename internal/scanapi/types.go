package scanapi

// ScanRequest registers a scan with the scan service
type ScanRequest struct {
	RepositoryURL string `json:"repositoryUrl"`
	Branch        string `json:"branch"`
	Path          string `json:"path"` // absolute, forward-slash separated
}

// ScanHandle correlates the rest of the run with the registered scan
type ScanHandle struct {
	ScanID    string `json:"scanId"`
	UploadURL string `json:"uploadUrl"`
}

// ScanStatus is the status token reported by the scan service
type ScanStatus string

const (
	StatusPending ScanStatus = "Pending"
	StatusSuccess ScanStatus = "Success"
	StatusFailure ScanStatus = "Failure"
	StatusError   ScanStatus = "Error"
	StatusSkipped ScanStatus = "Skipped"
)

// Severity of a finding
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists finding severities from most to least severe
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// FindingType classifies what kind of check produced a finding
type FindingType string

const (
	FindingTypeSecret     FindingType = "SECRET"
	FindingTypeSAST       FindingType = "SAST"
	FindingTypeSCA        FindingType = "SCA"
	FindingTypeIaC        FindingType = "IAC"
	FindingTypeLicense    FindingType = "LICENSE"
	FindingTypeReputation FindingType = "REPUTATION"
	FindingTypeAggregate  FindingType = "AGGREGATE"
)

// Recommendation is the suggested fix for a finding
type Recommendation struct {
	Description string `json:"description"`
}

// Finding is a single issue reported by the scan service
type Finding struct {
	Severity       Severity        `json:"severity"`
	Title          string          `json:"title"`
	Type           FindingType     `json:"type"`
	Status         string          `json:"status"` // snake_case token, e.g. "requires_review"
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// FindingsSummary aggregates the findings of a resolved scan
type FindingsSummary struct {
	Findings []Finding `json:"findings"`
	Total    int       `json:"total"`
	Critical int       `json:"critical"`
	High     int       `json:"high"`
	Medium   int       `json:"medium"`
	Low      int       `json:"low"`
	Info     int       `json:"info"`
}

// Count returns the reported count for severity
func (s FindingsSummary) Count(severity Severity) int {
	switch severity {
	case SeverityCritical:
		return s.Critical
	case SeverityHigh:
		return s.High
	case SeverityMedium:
		return s.Medium
	case SeverityLow:
		return s.Low
	default:
		return 0
	}
}

// WithSeverity returns the findings of one severity, in reported order
func (s FindingsSummary) WithSeverity(severity Severity) []Finding {
	var out []Finding
	for _, f := range s.Findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}

// ScanOutcome is the state of a scan as reported by the status endpoint.
// The set of implementations is closed: OutcomePending, OutcomeSuccess,
// OutcomeFailure, OutcomeError, OutcomeSkipped and OutcomeUnrecognized.
type ScanOutcome interface {
	Status() ScanStatus
	Terminal() bool
	isScanOutcome()
}

// OutcomePending means the scan is still running
type OutcomePending struct{}

// OutcomeSuccess means the scan passed policy
type OutcomeSuccess struct {
	Summary FindingsSummary
}

// OutcomeFailure means the scan found policy violations
type OutcomeFailure struct {
	Summary FindingsSummary
}

// OutcomeError means the scan service failed to scan
type OutcomeError struct {
	Errors []string
}

// OutcomeSkipped means the scan service decided not to scan
type OutcomeSkipped struct {
	Reason string
}

// OutcomeUnrecognized carries a status this client does not know about
type OutcomeUnrecognized struct {
	Raw string
}

func (OutcomePending) Status() ScanStatus        { return StatusPending }
func (OutcomeSuccess) Status() ScanStatus        { return StatusSuccess }
func (OutcomeFailure) Status() ScanStatus        { return StatusFailure }
func (OutcomeError) Status() ScanStatus          { return StatusError }
func (OutcomeSkipped) Status() ScanStatus        { return StatusSkipped }
func (o OutcomeUnrecognized) Status() ScanStatus { return ScanStatus(o.Raw) }

func (OutcomePending) Terminal() bool      { return false }
func (OutcomeSuccess) Terminal() bool      { return true }
func (OutcomeFailure) Terminal() bool      { return true }
func (OutcomeError) Terminal() bool        { return true }
func (OutcomeSkipped) Terminal() bool      { return true }
func (OutcomeUnrecognized) Terminal() bool { return true }

func (OutcomePending) isScanOutcome()      {}
func (OutcomeSuccess) isScanOutcome()      {}
func (OutcomeFailure) isScanOutcome()      {}
func (OutcomeError) isScanOutcome()        {}
func (OutcomeSkipped) isScanOutcome()      {}
func (OutcomeUnrecognized) isScanOutcome() {}

// statusResponse is the wire shape of the status endpoint
type statusResponse struct {
	Status          string          `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	Errors          []string        `json:"errors"`
	FindingsSummary FindingsSummary `json:"findingsSummary"`
}

// outcome converts the wire response into its ScanOutcome variant
func (r statusResponse) outcome() ScanOutcome {
	switch ScanStatus(r.Status) {
	case StatusPending:
		return OutcomePending{}
	case StatusSuccess:
		return OutcomeSuccess{Summary: r.FindingsSummary}
	case StatusFailure:
		return OutcomeFailure{Summary: r.FindingsSummary}
	case StatusError:
		return OutcomeError{Errors: r.Errors}
	case StatusSkipped:
		return OutcomeSkipped{Reason: r.Reason}
	default:
		return OutcomeUnrecognized{Raw: r.Status}
	}
}

package config

import (
	"path/filepath"
	"time"
)

// On-findings policies
const (
	OnFindingsFail  = "fail"
	OnFindingsAlert = "alert"
	OnFindingsPass  = "pass"
)

// Supported SBOM generators
const (
	GeneratorCdxgen = "cdxgen"
	GeneratorTrivy  = "trivy"
)

// Fixed scan service client policy, independent of the overall scan timeout
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultScanTimeout    = 900 * time.Second
	DefaultPollInterval   = 10 * time.Second
)

// Config represents the complete application configuration. It is built
// once by Load and passed by value into the components that need it.
type Config struct {
	Scan          ScanConfig
	API           APIConfig
	Generator     GeneratorConfig
	Policy        PolicyConfig
	Outputs       OutputsConfig
	Observability ObservabilityConfig
}

// ScanConfig identifies what is being scanned
type ScanConfig struct {
	RepositoryURL string
	Branch        string
	ScanPath      string // relative to the repository root, e.g. "services/api"
	Workspace     string // checkout directory of the repository on the runner
	Timeout       time.Duration
	PollInterval  time.Duration
}

// RepoScanPath returns the local directory the generator runs in
func (s ScanConfig) RepoScanPath() string {
	return filepath.Clean(filepath.Join(s.Workspace, s.ScanPath))
}

// APIConfig configures the scan service client
type APIConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	MaxRetries     int
}

// GeneratorConfig configures the external SBOM generator
type GeneratorConfig struct {
	Name              string
	VersionConstraint string // semver constraint checked against the SBOM tool metadata
}

// PolicyConfig configures how findings affect the exit code
type PolicyConfig struct {
	OnFindings string
	Expression string // optional CEL condition the findings must satisfy to pass
}

// OutputsConfig configures where machine-readable results are written
type OutputsConfig struct {
	OutputFile  string // $GITHUB_OUTPUT
	SummaryFile string // $GITHUB_STEP_SUMMARY
	MetricsFile string
}

// ObservabilityConfig configures logging
type ObservabilityConfig struct {
	LogLevel string
	Debug    bool
}

// Defaults represents the optional .sbomscan.yml file. Environment
// variables always take precedence over values from this file.
type Defaults struct {
	APIBaseURL         string `yaml:"api_base_url,omitempty"`
	ScanTimeoutSeconds int    `yaml:"scan_timeout_seconds,omitempty"`
	OnFindings         string `yaml:"on_findings,omitempty"`
	Generator          string `yaml:"generator,omitempty"`
	GeneratorVersion   string `yaml:"generator_version,omitempty"`
	PolicyExpression   string `yaml:"policy_expression,omitempty"`
	MetricsFile        string `yaml:"metrics_file,omitempty"`
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/daimoniac/sbomscan/internal/errors"
)

// DefaultDefaultsPath is the defaults file looked up when SBOMSCAN_CONFIG is unset
const DefaultDefaultsPath = ".sbomscan.yml"

// Load loads configuration from environment variables and .sbomscan.yml defaults
func Load() (*Config, error) {
	return LoadFrom(getEnv("SBOMSCAN_CONFIG", DefaultDefaultsPath))
}

// LoadFrom loads configuration using the defaults file at path. A missing
// defaults file is not an error; a malformed one is.
func LoadFrom(path string) (*Config, error) {
	defaults := &Defaults{}
	if _, err := os.Stat(path); err == nil {
		parsed, err := ParseDefaults(path)
		if err != nil {
			return nil, err
		}
		defaults = parsed
	}

	// Use values from .sbomscan.yml, or fall back to hardcoded defaults
	scanTimeout := DefaultScanTimeout
	if defaults.ScanTimeoutSeconds > 0 {
		scanTimeout = time.Duration(defaults.ScanTimeoutSeconds) * time.Second
	}
	if value := os.Getenv("INPUT_SCAN_TIMEOUT_SECONDS"); value != "" {
		parsed, err := parseTimeout(value)
		if err != nil {
			return nil, errors.NewPermanentf("invalid INPUT_SCAN_TIMEOUT_SECONDS: %w", err)
		}
		scanTimeout = parsed
	}

	cfg := &Config{
		Scan: ScanConfig{
			RepositoryURL: getEnv("INPUT_REPOSITORY_URL", ""),
			Branch:        getEnv("INPUT_BRANCH", ""),
			ScanPath:      getEnv("INPUT_SCAN_PATH", ""),
			Workspace:     getEnv("GITHUB_WORKSPACE", ""),
			Timeout:       scanTimeout,
			PollInterval:  DefaultPollInterval,
		},
		API: APIConfig{
			BaseURL:        getEnv("INPUT_API_BASE_URL", defaults.APIBaseURL),
			Token:          getEnv("INPUT_API_TOKEN", getEnv("ARNICA_API_TOKEN", "")),
			RequestTimeout: DefaultRequestTimeout,
			MaxRetries:     DefaultMaxRetries,
		},
		Generator: GeneratorConfig{
			Name:              getEnv("INPUT_SBOM_GENERATOR", orDefault(defaults.Generator, GeneratorCdxgen)),
			VersionConstraint: getEnv("INPUT_GENERATOR_VERSION", defaults.GeneratorVersion),
		},
		Policy: PolicyConfig{
			OnFindings: getEnv("INPUT_ON_FINDINGS", orDefault(defaults.OnFindings, OnFindingsFail)),
			Expression: getEnv("INPUT_POLICY_EXPRESSION", defaults.PolicyExpression),
		},
		Outputs: OutputsConfig{
			OutputFile:  getEnv("GITHUB_OUTPUT", ""),
			SummaryFile: getEnv("GITHUB_STEP_SUMMARY", ""),
			MetricsFile: getEnv("INPUT_METRICS_FILE", defaults.MetricsFile),
		},
		Observability: ObservabilityConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
			Debug:    getEnvBool("INPUT_DEBUG", false),
		},
	}

	if cfg.Observability.Debug {
		cfg.Observability.LogLevel = "debug"
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Policy.OnFindings {
	case OnFindingsFail, OnFindingsAlert, OnFindingsPass:
	default:
		return errors.NewPermanentf("Invalid on-findings value: '%s'. Must be one of: %s, %s, %s",
			c.Policy.OnFindings, OnFindingsFail, OnFindingsAlert, OnFindingsPass)
	}

	if c.API.Token == "" {
		return errors.NewPermanentf("API token is missing. Pass env ARNICA_API_TOKEN from a secret.")
	}

	if c.API.BaseURL == "" {
		return errors.NewPermanentf("INPUT_API_BASE_URL environment variable is required (e.g., https://api.example.com)")
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewPermanentf("invalid API base URL: %s", c.API.BaseURL)
	}

	if c.Generator.Name != GeneratorCdxgen && c.Generator.Name != GeneratorTrivy {
		return errors.NewPermanentf("invalid SBOM generator: %s (must be %s or %s)",
			c.Generator.Name, GeneratorCdxgen, GeneratorTrivy)
	}

	if c.Scan.Timeout <= 0 {
		return errors.NewPermanentf("scan timeout must be positive, got %s", c.Scan.Timeout)
	}

	return nil
}

// Redacted returns a loggable view of the configuration without the API token
func (c *Config) Redacted() map[string]any {
	token := ""
	if c.API.Token != "" {
		token = "***"
	}
	return map[string]any{
		"repository_url":    c.Scan.RepositoryURL,
		"branch":            c.Scan.Branch,
		"scan_path":         c.Scan.ScanPath,
		"repo_scan_path":    c.Scan.RepoScanPath(),
		"api_base_url":      c.API.BaseURL,
		"api_token":         token,
		"scan_timeout":      c.Scan.Timeout.String(),
		"on_findings":       c.Policy.OnFindings,
		"policy_expression": c.Policy.Expression,
		"generator":         c.Generator.Name,
		"generator_semver":  c.Generator.VersionConstraint,
		"debug":             c.Observability.Debug,
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// String implements fmt.Stringer without leaking the token
func (c *Config) String() string {
	return fmt.Sprintf("%v", c.Redacted())
}

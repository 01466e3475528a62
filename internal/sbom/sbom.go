// Package sbom runs an external SBOM generator in the scan directory and
// loads the CycloneDX document it writes.
package sbom

import (
	"context"
	"fmt"

	"github.com/daimoniac/sbomscan/internal/config"
)

// ArtifactFile is the file name every supported generator writes
const ArtifactFile = "bom.json"

// Generator defines the interface for SBOM generation
type Generator interface {
	// Name returns the generator command, e.g. "cdxgen"
	Name() string

	// HealthCheck reports whether the generator is installed
	HealthCheck(ctx context.Context) error

	// Generate runs the generator in dir and loads dir/bom.json
	Generate(ctx context.Context, dir string) (*Artifact, error)
}

// New returns the generator selected by name
func New(name string, runner Runner, opts ...Option) (Generator, error) {
	switch name {
	case config.GeneratorCdxgen:
		return NewCLIGenerator(name, []string{"."}, runner, opts...), nil
	case config.GeneratorTrivy:
		return NewCLIGenerator(name, []string{"fs", "--format", "cyclonedx", "--output", ArtifactFile, "."}, runner, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported SBOM generator %q", name)
	}
}

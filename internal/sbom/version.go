package sbom

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckToolVersion verifies the tool recorded in the SBOM satisfies
// constraint (e.g. ">= 10.0.0"). An empty constraint always passes.
func CheckToolVersion(constraint string, tool ToolComponent) error {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid generator version constraint %q: %w", constraint, err)
	}

	if tool.Version == "" {
		return fmt.Errorf("SBOM tool %s does not report a version", tool)
	}

	v, err := semver.NewVersion(tool.Version)
	if err != nil {
		return fmt.Errorf("SBOM tool %s has unparsable version: %w", tool, err)
	}

	if ok, errs := c.Validate(v); !ok {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("SBOM tool %s does not satisfy %q: %s", tool, constraint, strings.Join(msgs, "; "))
	}
	return nil
}

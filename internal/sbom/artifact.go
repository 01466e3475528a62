package sbom

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/daimoniac/sbomscan/internal/errors"
)

// Artifact is a generated SBOM. The raw bytes are uploaded verbatim; only
// the fields needed for diagnostics are decoded.
type Artifact struct {
	raw  []byte
	tool *ToolComponent
	size int
}

// ToolComponent describes the tool that produced the SBOM
type ToolComponent struct {
	Group   string `json:"group,omitempty"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Vendor  string `json:"vendor,omitempty"`
}

func (t ToolComponent) String() string {
	name := t.Name
	if t.Group != "" {
		name = t.Group + "/" + name
	}
	if t.Version != "" {
		return name + "@" + t.Version
	}
	return name
}

// document is the subset of a CycloneDX BOM this package reads
type document struct {
	Metadata struct {
		Tools json.RawMessage `json:"tools"`
	} `json:"metadata"`
	Components []json.RawMessage `json:"components"`
}

// ReadArtifact loads the SBOM at path. A missing, unreadable or non-JSON
// file yields an error wrapping errors.ErrArtifactMissing.
func ReadArtifact(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrArtifactMissing, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", errors.ErrArtifactMissing, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrArtifactMissing, err)
	}

	return ParseArtifact(data)
}

// ParseArtifact decodes data as an SBOM document
func ParseArtifact(data []byte) (*Artifact, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", errors.ErrArtifactMissing, err)
	}

	return &Artifact{
		raw:  data,
		tool: firstTool(doc.Metadata.Tools),
		size: len(doc.Components),
	}, nil
}

// firstTool handles both CycloneDX shapes of metadata.tools: the object
// form {"components": [...]} (1.5+) and the legacy array of tools.
func firstTool(raw json.RawMessage) *ToolComponent {
	if len(raw) == 0 {
		return nil
	}

	var modern struct {
		Components []ToolComponent `json:"components"`
	}
	if err := json.Unmarshal(raw, &modern); err == nil {
		if len(modern.Components) > 0 {
			return &modern.Components[0]
		}
		return nil
	}

	var legacy []ToolComponent
	if err := json.Unmarshal(raw, &legacy); err == nil && len(legacy) > 0 {
		return &legacy[0]
	}
	return nil
}

// Bytes returns the document exactly as the generator wrote it
func (a *Artifact) Bytes() []byte {
	return a.raw
}

// Tool returns the first tool component, if the document lists one
func (a *Artifact) Tool() (ToolComponent, bool) {
	if a.tool == nil {
		return ToolComponent{}, false
	}
	return *a.tool, true
}

// ComponentCount returns the number of top-level components
func (a *Artifact) ComponentCount() int {
	return a.size
}

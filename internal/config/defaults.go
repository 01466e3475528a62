package config

import (
	"os"

	"github.com/daimoniac/sbomscan/internal/errors"
	"gopkg.in/yaml.v3"
)

// ParseDefaults reads and parses a .sbomscan.yml defaults file
func ParseDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTransientf("failed to read defaults file: %w", err)
	}

	var defaults Defaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, errors.NewPermanentf("failed to parse defaults YAML: %w", err)
	}

	return &defaults, nil
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseTimeout parses a scan timeout given either as whole seconds ("900")
// or as a Go duration ("15m").
func parseTimeout(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timeout")
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("timeout must be positive: %s", value)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %s", value)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("timeout must be positive: %s", value)
	}
	return duration, nil
}

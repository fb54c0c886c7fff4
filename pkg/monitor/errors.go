package monitor

import "strings"

// ConfigError reports why a configuration was rejected.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "monitor: invalid config: " + strings.Join(e.Problems, "; ")
}

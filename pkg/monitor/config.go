package monitor

import (
	"github.com/teslashibe/go-vigil/pkg/conditioner"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
)

// Config combines the estimator parameters with the EAR smoothing window.
type Config struct {
	Estimator    drowsiness.Config
	SmoothWindow int // raw EAR samples averaged before thresholding
}

// DefaultConfig returns the standard monitor configuration.
func DefaultConfig() Config {
	return Config{
		Estimator:    drowsiness.DefaultConfig(),
		SmoothWindow: conditioner.DefaultWindow,
	}
}

// Validate returns a list of problems, empty when the config is usable.
func (c Config) Validate() []string {
	errs := c.Estimator.Validate()
	if c.SmoothWindow < 1 {
		errs = append(errs, "smooth_window must be >= 1")
	}
	return errs
}

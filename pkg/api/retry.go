package api

import (
	"errors"

	"github.com/kode4food/cadence/pkg/util"
)

// RetryConfig controls the delay between retry attempts of a step
type RetryConfig struct {
	BackoffType string `json:"backoff_type,omitempty"`
	InitBackoff int64  `json:"init_backoff,omitempty"`
	MaxBackoff  int64  `json:"max_backoff,omitempty"`
}

const (
	BackoffTypeNone        = "none"
	BackoffTypeFixed       = "fixed"
	BackoffTypeLinear      = "linear"
	BackoffTypeExponential = "exponential"
)

var (
	ErrInvalidBackoffType = errors.New("invalid backoff type")
	ErrNegativeBackoff    = errors.New("backoff cannot be negative")
	ErrMaxBackoffTooSmall = errors.New("max backoff must be >= init backoff")
)

var validBackoffTypes = util.SetOf(
	BackoffTypeNone,
	BackoffTypeFixed,
	BackoffTypeLinear,
	BackoffTypeExponential,
)

// Validate checks the retry configuration. Backoff values are milliseconds
func (c *RetryConfig) Validate() error {
	if !validBackoffTypes.Contains(c.BackoffType) {
		return ErrInvalidBackoffType
	}
	if c.InitBackoff < 0 || c.MaxBackoff < 0 {
		return ErrNegativeBackoff
	}
	if c.MaxBackoff != 0 && c.MaxBackoff < c.InitBackoff {
		return ErrMaxBackoffTooSmall
	}
	return nil
}

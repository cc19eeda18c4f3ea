package engine

import (
	"math"
	"time"

	"github.com/kode4food/cadence/pkg/api"
)

type backoffCalculator func(baseDelay int64, retryCount int) int64

var backoffCalculators = map[string]backoffCalculator{
	api.BackoffTypeNone: func(int64, int) int64 {
		return 0
	},
	api.BackoffTypeFixed: func(base int64, _ int) int64 {
		return base
	},
	api.BackoffTypeLinear: func(base int64, count int) int64 {
		return base * int64(count+1)
	},
	api.BackoffTypeExponential: func(base int64, count int) int64 {
		multiplier := math.Pow(2, float64(count))
		return int64(float64(base) * multiplier)
	},
}

// RetryDelay calculates how long to wait before the retry following the
// given number of failed attempts, using the configured backoff strategy
func RetryDelay(cfg api.RetryConfig, retryCount int) time.Duration {
	calculator, ok := backoffCalculators[cfg.BackoffType]
	if !ok {
		calculator = backoffCalculators[api.BackoffTypeNone]
	}

	delay := calculator(cfg.InitBackoff, retryCount)
	if cfg.MaxBackoff > 0 {
		delay = min(delay, cfg.MaxBackoff)
	}
	return time.Duration(delay) * time.Millisecond
}

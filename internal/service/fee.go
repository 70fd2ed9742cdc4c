package service

import (
	"fmt"
	"math"

	"payloom/config"
)

// FeeCalculator computes the platform fee split for a gross amount:
// fee = max(gross * percent, minimum). Pure and deterministic; the
// configuration is validated once at construction, never per call.
type FeeCalculator struct {
	bps     int64 // fee percent in basis points, avoids float drift on money
	minimum int64
}

// NewFeeCalculator builds a calculator from validated escrow configuration.
// A configuration whose fee could exceed the gross amount of any accepted
// order is rejected here, at startup.
func NewFeeCalculator(cfg config.EscrowConfig) (*FeeCalculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bps := int64(math.Round(cfg.FeePercent * 100))
	// Worst accepted case is the smallest order at the percentage rate.
	if worst := cfg.MinOrderAmount * bps / 10_000; worst > cfg.MinOrderAmount {
		return nil, fmt.Errorf("fee configuration yields fee %d above gross %d", worst, cfg.MinOrderAmount)
	}
	return &FeeCalculator{bps: bps, minimum: cfg.FeeMinimum}, nil
}

// Fee returns max(gross * percent, minimum).
func (f *FeeCalculator) Fee(gross int64) int64 {
	fee := gross * f.bps / 10_000
	if fee < f.minimum {
		fee = f.minimum
	}
	return fee
}

// Net returns gross - Fee(gross). The escrow invariant net = gross - fee
// holds by construction.
func (f *FeeCalculator) Net(gross int64) int64 {
	return gross - f.Fee(gross)
}

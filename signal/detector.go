// Package signal flags liquidity events on a computed feature series.
package signal

import (
	"fmt"

	"micro-analyzer-go/features"
)

// Config holds the detection thresholds.
type Config struct {
	SpikeThreshold float64 `yaml:"spikeThreshold"` // spread_z above this flags a spread spike
	GapFraction    float64 `yaml:"gapFraction"`    // top depth below this fraction of its rolling median flags a gap
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{SpikeThreshold: 3.0, GapFraction: 0.3}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.SpikeThreshold <= 0 {
		return fmt.Errorf("spikeThreshold must be > 0, got %v", c.SpikeThreshold)
	}
	if c.GapFraction <= 0 || c.GapFraction > 1 {
		return fmt.Errorf("gapFraction must be in (0, 1], got %v", c.GapFraction)
	}
	return nil
}

// AlertRecord is a flagged feature record. Index points back into the full
// feature series so the evaluator can resolve forward returns.
type AlertRecord struct {
	Index  int
	Record features.Record

	IsSpreadSpike  bool
	IsLiquidityGap bool
	IsAlert        bool
}

// Detector applies the two event rules. It carries no rolling state of its
// own: each record is classified from the features it already holds.
type Detector struct {
	cfg Config
}

// NewDetector validates cfg and returns a detector.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("signal config: %w", err)
	}
	return &Detector{cfg: cfg}, nil
}

// Classify evaluates both rules independently for one record. Undefined
// inputs never fire a rule; they are absent data, not an error.
func (d *Detector) Classify(r features.Record) (spike, gap bool) {
	if r.SpreadZ.Defined && r.SpreadZ.V > d.cfg.SpikeThreshold {
		spike = true
	}
	if r.DepthMed.Defined && r.DepthMed.V > 0 && r.TopDepth < d.cfg.GapFraction*r.DepthMed.V {
		gap = true
	}
	return spike, gap
}

// Detect classifies every record and returns the ordered subsequence where
// at least one rule fired.
func (d *Detector) Detect(records []features.Record) []AlertRecord {
	alerts := make([]AlertRecord, 0)
	for i, r := range records {
		spike, gap := d.Classify(r)
		if !spike && !gap {
			continue
		}
		alerts = append(alerts, AlertRecord{
			Index:          i,
			Record:         r,
			IsSpreadSpike:  spike,
			IsLiquidityGap: gap,
			IsAlert:        true,
		})
	}
	return alerts
}

// Package backtest measures whether flagged liquidity events precede
// short-horizon mid-price moves.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"micro-analyzer-go/features"
	"micro-analyzer-go/signal"
)

// ErrNoFeatures is returned when the feature series is empty.
var ErrNoFeatures = errors.New("backtest: empty feature series")

// Config holds the evaluation horizon.
type Config struct {
	HorizonSeconds int `yaml:"horizonSeconds"`
}

// DefaultConfig returns the standard horizon.
func DefaultConfig() Config {
	return Config{HorizonSeconds: 5}
}

// Validate checks the horizon.
func (c Config) Validate() error {
	if c.HorizonSeconds <= 0 {
		return fmt.Errorf("horizonSeconds must be > 0, got %d", c.HorizonSeconds)
	}
	return nil
}

// Horizon returns the horizon as a duration.
func (c Config) Horizon() time.Duration {
	return time.Duration(c.HorizonSeconds) * time.Second
}

// Summary aggregates one evaluation run. Mean metrics are undefined when no
// alert resolved a forward sample; PctAlerts is the exact fraction
// NAlerts/TotalRows.
type Summary struct {
	TotalRows      int
	NAlerts        int
	PctAlerts      float64
	MeanReturnFrac features.Value
	MeanReturnBps  features.Value
	NSamples       int
}

// Evaluate computes the forward mid return for every alert and reduces the
// samples into a Summary.
//
// Horizon lookup is timestamp based: for an alert at index i the sample is
// taken at the first later record whose timestamp is at or past
// timestamp(i)+horizon. On a uniform 1s grid this is identical to a fixed
// positional offset; it stays correct when the interval drifts. Alerts too
// close to the end of the series, and alerts with a zero mid, are excluded
// from NSamples but still counted in NAlerts.
func Evaluate(records []features.Record, alerts []signal.AlertRecord, cfg Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	if len(records) == 0 {
		return Summary{}, ErrNoFeatures
	}

	horizon := cfg.Horizon()
	sum := Summary{
		TotalRows: len(records),
		NAlerts:   len(alerts),
	}
	sum.PctAlerts = float64(sum.NAlerts) / float64(sum.TotalRows)

	var total float64
	j := 0 // forward cursor; alerts are ordered so it never moves back
	for _, a := range alerts {
		i := a.Index
		if i < 0 || i >= len(records) {
			return Summary{}, fmt.Errorf("backtest: alert index %d outside feature series of %d", i, len(records))
		}
		midNow := records[i].Mid
		if midNow == 0 {
			continue
		}
		target := records[i].Tick.Timestamp.Add(horizon)
		if j <= i {
			j = i + 1
		}
		for j < len(records) && records[j].Tick.Timestamp.Before(target) {
			j++
		}
		if j == len(records) {
			// no forward sample for this alert nor for any later one
			continue
		}
		total += (records[j].Mid - midNow) / midNow
		sum.NSamples++
	}

	if sum.NSamples > 0 {
		mean := total / float64(sum.NSamples)
		sum.MeanReturnFrac = features.Defined(mean)
		sum.MeanReturnBps = features.Defined(mean * 10000)
	}
	return sum, nil
}

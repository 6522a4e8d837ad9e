package market

import (
	"fmt"
	"time"
)

// TickSnapshot is one top-of-book observation, sampled once per interval.
// TradePrice/TradeSize are only meaningful when HasTrade is true.
type TickSnapshot struct {
	Timestamp  time.Time
	Bid        float64
	Ask        float64
	BidVol     float64
	AskVol     float64
	TradePrice float64
	TradeSize  float64
	HasTrade   bool
}

// Mid returns the mid price (bid+ask)/2.
func (t TickSnapshot) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Spread returns ask minus bid. Non-negative for validated ticks.
func (t TickSnapshot) Spread() float64 {
	return t.Ask - t.Bid
}

// TopDepth returns total resting volume at the best level.
func (t TickSnapshot) TopDepth() float64 {
	return t.BidVol + t.AskVol
}

// MalformedInputError reports a tick that violates a structural invariant.
// Validation fails fast on the first bad row; rows are never repaired.
type MalformedInputError struct {
	Row    int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed tick at row %d: %s", e.Row, e.Reason)
}

// ValidateSeries checks every structural invariant over an ordered series:
// ask >= bid >= 0, volumes >= 0, trade fields >= 0 when present, and
// strictly increasing timestamps.
func ValidateSeries(ticks []TickSnapshot) error {
	for i, t := range ticks {
		if err := validateTick(i, t); err != nil {
			return err
		}
		if i > 0 && !ticks[i].Timestamp.After(ticks[i-1].Timestamp) {
			return &MalformedInputError{Row: i, Reason: fmt.Sprintf(
				"non-monotonic timestamp %s (previous %s)",
				t.Timestamp.Format(time.RFC3339Nano),
				ticks[i-1].Timestamp.Format(time.RFC3339Nano))}
		}
	}
	return nil
}

func validateTick(row int, t TickSnapshot) error {
	switch {
	case t.Bid < 0:
		return &MalformedInputError{Row: row, Reason: fmt.Sprintf("negative bid %v", t.Bid)}
	case t.Ask < t.Bid:
		return &MalformedInputError{Row: row, Reason: fmt.Sprintf("ask %v below bid %v", t.Ask, t.Bid)}
	case t.BidVol < 0:
		return &MalformedInputError{Row: row, Reason: fmt.Sprintf("negative bid_vol %v", t.BidVol)}
	case t.AskVol < 0:
		return &MalformedInputError{Row: row, Reason: fmt.Sprintf("negative ask_vol %v", t.AskVol)}
	}
	if t.HasTrade {
		if t.TradePrice < 0 {
			return &MalformedInputError{Row: row, Reason: fmt.Sprintf("negative trade_price %v", t.TradePrice)}
		}
		if t.TradeSize < 0 {
			return &MalformedInputError{Row: row, Reason: fmt.Sprintf("negative trade_size %v", t.TradeSize)}
		}
	}
	return nil
}

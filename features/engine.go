package features

import (
	"fmt"

	"micro-analyzer-go/market"
)

// VWAP windowing policies. Whichever is configured applies to the whole run.
const (
	VWAPCumulative = "cumulative"
	VWAPRolling    = "rolling"
)

// Config controls the rolling windows of the feature engine. Windows are
// counted in records; on the canonical 1s sampling grid that is seconds.
type Config struct {
	SpreadWindow int    `yaml:"spreadWindow"` // rolling mean/std window for spread
	DepthWindow  int    `yaml:"depthWindow"`  // rolling median window for top depth
	VWAPMode     string `yaml:"vwapMode"`     // cumulative or rolling
	VWAPWindow   int    `yaml:"vwapWindow"`   // trailing window when vwapMode=rolling
}

// DefaultConfig returns the standard windows.
func DefaultConfig() Config {
	return Config{
		SpreadWindow: 60,
		DepthWindow:  600,
		VWAPMode:     VWAPCumulative,
		VWAPWindow:   60,
	}
}

// Validate checks the window parameters.
func (c Config) Validate() error {
	if c.SpreadWindow < 2 {
		return fmt.Errorf("spreadWindow must be >= 2, got %d", c.SpreadWindow)
	}
	if c.DepthWindow < 1 {
		return fmt.Errorf("depthWindow must be >= 1, got %d", c.DepthWindow)
	}
	switch c.VWAPMode {
	case VWAPCumulative:
	case VWAPRolling:
		if c.VWAPWindow < 1 {
			return fmt.Errorf("vwapWindow must be >= 1, got %d", c.VWAPWindow)
		}
	default:
		return fmt.Errorf("vwapMode must be %q or %q, got %q", VWAPCumulative, VWAPRolling, c.VWAPMode)
	}
	return nil
}

// Record carries the derived features for one tick, aligned one-to-one with
// the input series. Rolling fields at index i depend only on ticks [0, i].
type Record struct {
	Tick market.TickSnapshot

	Spread   float64
	Mid      float64
	TopDepth float64

	Ret1s        Value
	VWAP         Value
	ImbalanceTop Value
	SpreadMean   Value
	SpreadStd    Value
	SpreadZ      Value
	DepthMed     Value
}

// Engine derives feature records from a tick series. It is a pure
// transformation: no state survives a Compute call.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("feature config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Compute validates ticks and produces one Record per tick, in order.
// Rolling statistics are strictly causal and undefined until their window
// fills: the first SpreadWindow-1 records have undefined spread stats and
// the first DepthWindow-1 records an undefined depth median.
func (e *Engine) Compute(ticks []market.TickSnapshot) ([]Record, error) {
	if err := market.ValidateSeries(ticks); err != nil {
		return nil, err
	}

	w := e.cfg.SpreadWindow
	dw := e.cfg.DepthWindow
	records := make([]Record, len(ticks))
	spreads := make([]float64, len(ticks))
	depths := make([]float64, len(ticks))
	scratch := make([]float64, dw)

	var cumValue, cumSize float64 // cumulative VWAP accumulators
	var lastVWAP Value

	for i, t := range ticks {
		rec := Record{
			Tick:     t,
			Spread:   t.Spread(),
			Mid:      t.Mid(),
			TopDepth: t.TopDepth(),
		}
		spreads[i] = rec.Spread
		depths[i] = rec.TopDepth

		if imb, ok := market.CalculateImbalance(t.BidVol, t.AskVol); ok {
			rec.ImbalanceTop = Defined(imb)
		}

		if i > 0 {
			prevMid := records[i-1].Mid
			if prevMid != 0 {
				rec.Ret1s = Defined((rec.Mid - prevMid) / prevMid)
			}
		}

		switch e.cfg.VWAPMode {
		case VWAPCumulative:
			if t.HasTrade {
				cumValue += t.TradePrice * t.TradeSize
				cumSize += t.TradeSize
			}
			if cumSize > 0 {
				lastVWAP = Defined(cumValue / cumSize)
			}
			rec.VWAP = lastVWAP
		case VWAPRolling:
			if i >= e.cfg.VWAPWindow-1 {
				rec.VWAP = windowVWAP(ticks[i-e.cfg.VWAPWindow+1 : i+1])
			}
		}

		if i >= w-1 {
			if m, sd, ok := meanStd(spreads[i-w+1 : i+1]); ok {
				rec.SpreadMean = Defined(m)
				rec.SpreadStd = Defined(sd)
				if sd != 0 {
					rec.SpreadZ = Defined((rec.Spread - m) / sd)
				}
			}
		}
		if i >= dw-1 {
			rec.DepthMed = Defined(median(depths[i-dw+1:i+1], scratch))
		}

		records[i] = rec
	}
	return records, nil
}

func windowVWAP(window []market.TickSnapshot) Value {
	var value, size float64
	for _, t := range window {
		if t.HasTrade {
			value += t.TradePrice * t.TradeSize
			size += t.TradeSize
		}
	}
	if size == 0 {
		return Undefined()
	}
	return Defined(value / size)
}

package backtest

import (
	"reflect"
	"testing"
	"time"

	"micro-analyzer-go/features"
	"micro-analyzer-go/market"
	"micro-analyzer-go/signal"
)

// End-to-end run over a synthetic depth collapse: constant book for 700
// ticks except a single depth drop at record 650. The gap rule fires there
// (250 < 0.3*1000), the constant spread never fires the spike rule, and the
// evaluator resolves a flat 5s forward return.
func TestPipelineDepthCollapse(t *testing.T) {
	ticks := make([]market.TickSnapshot, 700)
	for i := range ticks {
		ticks[i] = market.TickSnapshot{
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			Bid:       99.9,
			Ask:       100.1,
			BidVol:    500,
			AskVol:    500,
		}
	}
	ticks[650].BidVol = 125
	ticks[650].AskVol = 125

	engine, err := features.NewEngine(features.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	recs, err := engine.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	detector, err := signal.NewDetector(signal.DefaultConfig())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	alerts := detector.Detect(recs)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want exactly the depth collapse", len(alerts))
	}
	a := alerts[0]
	if a.Index != 650 || !a.IsLiquidityGap || a.IsSpreadSpike {
		t.Fatalf("alert = %+v, want liquidity gap at 650", a)
	}

	sum, err := Evaluate(recs, alerts, DefaultConfig())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sum.TotalRows != 700 || sum.NAlerts != 1 || sum.NSamples != 1 {
		t.Fatalf("counts = %d/%d/%d, want 700/1/1", sum.TotalRows, sum.NAlerts, sum.NSamples)
	}
	if !sum.MeanReturnFrac.Defined || sum.MeanReturnFrac.V != 0 {
		t.Errorf("flat mid must give a defined zero return, got %+v", sum.MeanReturnFrac)
	}

	// the whole pipeline is deterministic: a second run is identical
	recs2, _ := engine.Compute(ticks)
	sum2, _ := Evaluate(recs2, detector.Detect(recs2), DefaultConfig())
	if !reflect.DeepEqual(sum, sum2) {
		t.Fatal("re-running the pipeline changed the summary")
	}
}

package features

import (
	"math"
	"reflect"
	"testing"
	"time"

	"micro-analyzer-go/market"
)

var t0 = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func constantTicks(n int, bid, ask float64) []market.TickSnapshot {
	ticks := make([]market.TickSnapshot, n)
	for i := range ticks {
		ticks[i] = market.TickSnapshot{
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			Bid:       bid,
			Ask:       ask,
			BidVol:    100,
			AskVol:    100,
		}
	}
	return ticks
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []Config{
		{SpreadWindow: 1, DepthWindow: 600, VWAPMode: VWAPCumulative},
		{SpreadWindow: 60, DepthWindow: 0, VWAPMode: VWAPCumulative},
		{SpreadWindow: 60, DepthWindow: 600, VWAPMode: "windowed"},
		{SpreadWindow: 60, DepthWindow: 600, VWAPMode: VWAPRolling, VWAPWindow: 0},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", cfg)
		}
	}
}

func TestComputeAlignmentAndBasics(t *testing.T) {
	ticks := constantTicks(5, 99.9, 100.1)
	ticks[2].BidVol = 150
	ticks[2].AskVol = 100

	e := mustEngine(t, Config{SpreadWindow: 3, DepthWindow: 3, VWAPMode: VWAPCumulative})
	recs, err := e.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(recs) != len(ticks) {
		t.Fatalf("got %d records for %d ticks", len(recs), len(ticks))
	}
	for i, r := range recs {
		if !r.Tick.Timestamp.Equal(ticks[i].Timestamp) {
			t.Fatalf("record %d misaligned", i)
		}
		if r.Mid != 100.0 {
			t.Errorf("record %d mid = %v, want 100.0", i, r.Mid)
		}
	}
	if recs[0].Ret1s.Defined {
		t.Error("ret_1s must be undefined for the first record")
	}
	if !recs[1].Ret1s.Defined || recs[1].Ret1s.V != 0 {
		t.Errorf("ret_1s[1] = %+v, want defined 0", recs[1].Ret1s)
	}
	if got := recs[2].ImbalanceTop; !got.Defined || math.Abs(got.V-0.2) > 1e-12 {
		t.Errorf("imbalance[2] = %+v, want 0.2", got)
	}
}

func TestComputeRejectsMalformedInput(t *testing.T) {
	ticks := constantTicks(3, 99.9, 100.1)
	ticks[1].Ask = 99.0 // below bid

	e := mustEngine(t, DefaultConfig())
	if _, err := e.Compute(ticks); err == nil {
		t.Fatal("expected malformed input to fail the run")
	}
}

func TestWarmupRule(t *testing.T) {
	w, dw := 4, 6
	ticks := constantTicks(10, 99.9, 100.1)
	// vary the spread so the std is nonzero once the window fills
	for i := range ticks {
		ticks[i].Ask = 100.1 + 0.01*float64(i%3)
	}
	e := mustEngine(t, Config{SpreadWindow: w, DepthWindow: dw, VWAPMode: VWAPCumulative})
	recs, err := e.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i, r := range recs {
		wantSpread := i >= w-1
		if r.SpreadMean.Defined != wantSpread || r.SpreadStd.Defined != wantSpread {
			t.Errorf("record %d spread stats defined = %v/%v, want %v",
				i, r.SpreadMean.Defined, r.SpreadStd.Defined, wantSpread)
		}
		if r.SpreadZ.Defined != wantSpread {
			t.Errorf("record %d spread_z defined = %v, want %v", i, r.SpreadZ.Defined, wantSpread)
		}
		wantDepth := i >= dw-1
		if r.DepthMed.Defined != wantDepth {
			t.Errorf("record %d depth_med defined = %v, want %v", i, r.DepthMed.Defined, wantDepth)
		}
	}
}

// Constant spread: rolling std is exactly zero, so spread_z stays undefined
// for the whole run instead of exploding.
func TestConstantSpreadHasUndefinedZ(t *testing.T) {
	ticks := constantTicks(700, 99.9, 100.1)
	e := mustEngine(t, DefaultConfig())
	recs, err := e.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i, r := range recs {
		if r.SpreadZ.Defined {
			t.Fatalf("record %d: spread_z defined (%v) on constant spread", i, r.SpreadZ.V)
		}
		if i >= 59 && (!r.SpreadStd.Defined || r.SpreadStd.V != 0) {
			t.Fatalf("record %d: spread_std = %+v, want defined 0", i, r.SpreadStd)
		}
	}
}

// Perturbing a future tick must not change any earlier record.
func TestCausality(t *testing.T) {
	ticks := constantTicks(120, 99.9, 100.1)
	for i := range ticks {
		ticks[i].Ask = 100.1 + 0.005*float64(i%7)
		ticks[i].BidVol = 80 + float64(i%11)
	}
	cfg := Config{SpreadWindow: 10, DepthWindow: 20, VWAPMode: VWAPRolling, VWAPWindow: 5}
	e := mustEngine(t, cfg)

	base, err := e.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	j := 60
	perturbed := make([]market.TickSnapshot, len(ticks))
	copy(perturbed, ticks)
	perturbed[j].Ask += 5
	perturbed[j].BidVol = 1
	perturbed[j].HasTrade = true
	perturbed[j].TradePrice = 200
	perturbed[j].TradeSize = 10

	again, err := e.Compute(perturbed)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := 0; i < j; i++ {
		if !reflect.DeepEqual(base[i], again[i]) {
			t.Fatalf("record %d changed after perturbing index %d", i, j)
		}
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	ticks := constantTicks(50, 99.9, 100.1)
	for i := range ticks {
		ticks[i].Ask = 100.1 + 0.01*float64(i%5)
		ticks[i].HasTrade = i%3 == 0
		ticks[i].TradePrice = 100
		ticks[i].TradeSize = float64(i + 1)
	}
	e := mustEngine(t, Config{SpreadWindow: 5, DepthWindow: 7, VWAPMode: VWAPCumulative})
	first, err := e.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	second, err := e.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two runs over the same input differ")
	}
}

func TestCumulativeVWAP(t *testing.T) {
	ticks := constantTicks(4, 99.9, 100.1)
	ticks[1].HasTrade = true
	ticks[1].TradePrice = 100
	ticks[1].TradeSize = 10
	ticks[3].HasTrade = true
	ticks[3].TradePrice = 102
	ticks[3].TradeSize = 10

	e := mustEngine(t, Config{SpreadWindow: 2, DepthWindow: 2, VWAPMode: VWAPCumulative})
	recs, err := e.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if recs[0].VWAP.Defined {
		t.Error("vwap defined before the first trade")
	}
	if !recs[1].VWAP.Defined || recs[1].VWAP.V != 100 {
		t.Errorf("vwap[1] = %+v, want 100", recs[1].VWAP)
	}
	// carries forward through the tradeless tick
	if !recs[2].VWAP.Defined || recs[2].VWAP.V != 100 {
		t.Errorf("vwap[2] = %+v, want 100", recs[2].VWAP)
	}
	if !recs[3].VWAP.Defined || recs[3].VWAP.V != 101 {
		t.Errorf("vwap[3] = %+v, want 101", recs[3].VWAP)
	}
}

func TestRollingVWAP(t *testing.T) {
	ticks := constantTicks(5, 99.9, 100.1)
	ticks[0].HasTrade = true
	ticks[0].TradePrice = 90
	ticks[0].TradeSize = 5
	ticks[3].HasTrade = true
	ticks[3].TradePrice = 100
	ticks[3].TradeSize = 5

	e := mustEngine(t, Config{SpreadWindow: 2, DepthWindow: 2, VWAPMode: VWAPRolling, VWAPWindow: 2})
	recs, err := e.Compute(ticks)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if recs[0].VWAP.Defined {
		t.Error("rolling vwap defined before the window fills")
	}
	if !recs[1].VWAP.Defined || recs[1].VWAP.V != 90 {
		t.Errorf("vwap[1] = %+v, want 90 (trade at index 0 in window)", recs[1].VWAP)
	}
	// window [1,2] holds no trades: undefined, not forward-filled
	if recs[2].VWAP.Defined {
		t.Errorf("vwap[2] = %+v, want undefined", recs[2].VWAP)
	}
	if !recs[3].VWAP.Defined || recs[3].VWAP.V != 100 {
		t.Errorf("vwap[3] = %+v, want 100", recs[3].VWAP)
	}
}

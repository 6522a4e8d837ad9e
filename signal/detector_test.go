package signal

import (
	"testing"
	"time"

	"micro-analyzer-go/features"
	"micro-analyzer-go/market"
)

func record(spreadZ features.Value, topDepth float64, depthMed features.Value) features.Record {
	return features.Record{
		Tick:     market.TickSnapshot{Timestamp: time.Unix(1748856600, 0)},
		TopDepth: topDepth,
		SpreadZ:  spreadZ,
		DepthMed: depthMed,
	}
}

func mustDetector(t *testing.T, cfg Config) *Detector {
	t.Helper()
	d, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []Config{
		{SpikeThreshold: 0, GapFraction: 0.3},
		{SpikeThreshold: 3, GapFraction: 0},
		{SpikeThreshold: 3, GapFraction: 1.5},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", cfg)
		}
	}
}

func TestClassify(t *testing.T) {
	d := mustDetector(t, DefaultConfig())

	tests := []struct {
		name      string
		rec       features.Record
		wantSpike bool
		wantGap   bool
	}{
		{
			name:      "z above threshold fires spike",
			rec:       record(features.Defined(3.5), 1000, features.Defined(1000)),
			wantSpike: true,
		},
		{
			name: "z exactly at threshold does not fire",
			rec:  record(features.Defined(3.0), 1000, features.Defined(1000)),
		},
		{
			name: "undefined z never fires even with huge spread",
			rec:  record(features.Undefined(), 1000, features.Defined(1000)),
		},
		{
			name:    "depth collapse fires gap",
			rec:     record(features.Defined(0), 250, features.Defined(1000)),
			wantGap: true,
		},
		{
			name: "depth at the gap boundary does not fire",
			rec:  record(features.Defined(0), 300, features.Defined(1000)),
		},
		{
			name: "undefined depth median never fires",
			rec:  record(features.Defined(0), 1, features.Undefined()),
		},
		{
			name: "zero depth median never fires",
			rec:  record(features.Defined(0), 0, features.Defined(0)),
		},
		{
			name:      "both rules fire independently",
			rec:       record(features.Defined(4), 100, features.Defined(1000)),
			wantSpike: true,
			wantGap:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spike, gap := d.Classify(tt.rec)
			if spike != tt.wantSpike || gap != tt.wantGap {
				t.Errorf("Classify = (%v, %v), want (%v, %v)", spike, gap, tt.wantSpike, tt.wantGap)
			}
		})
	}
}

func TestDetectKeepsOrderAndOnlyAlerts(t *testing.T) {
	d := mustDetector(t, DefaultConfig())
	recs := []features.Record{
		record(features.Defined(1), 1000, features.Defined(1000)),
		record(features.Defined(5), 1000, features.Defined(1000)),
		record(features.Defined(0), 250, features.Defined(1000)),
		record(features.Defined(0.5), 900, features.Defined(1000)),
		record(features.Defined(4), 100, features.Defined(1000)),
	}
	alerts := d.Detect(recs)
	wantIdx := []int{1, 2, 4}
	if len(alerts) != len(wantIdx) {
		t.Fatalf("got %d alerts, want %d", len(alerts), len(wantIdx))
	}
	for i, a := range alerts {
		if a.Index != wantIdx[i] {
			t.Errorf("alert %d index = %d, want %d", i, a.Index, wantIdx[i])
		}
		if !a.IsAlert {
			t.Errorf("alert %d has IsAlert=false", i)
		}
	}
	if alerts[2].IsSpreadSpike != true || alerts[2].IsLiquidityGap != true {
		t.Error("record 4 should fire both rules")
	}
}

// Raising the spike threshold can only remove alerts; tightening the gap
// fraction downward likewise.
func TestThresholdMonotonicity(t *testing.T) {
	recs := make([]features.Record, 0, 40)
	for i := 0; i < 40; i++ {
		recs = append(recs,
			record(features.Defined(float64(i)*0.2), 1000-float64(i)*20, features.Defined(1000)))
	}

	alertSet := func(cfg Config) map[int]bool {
		d := mustDetector(t, cfg)
		set := make(map[int]bool)
		for _, a := range d.Detect(recs) {
			set[a.Index] = true
		}
		return set
	}

	loose := alertSet(Config{SpikeThreshold: 2, GapFraction: 0.5})
	tight := alertSet(Config{SpikeThreshold: 4, GapFraction: 0.2})
	for idx := range tight {
		if !loose[idx] {
			t.Errorf("index %d alerts under tight thresholds but not loose ones", idx)
		}
	}
	if len(tight) >= len(loose) {
		t.Errorf("tightening thresholds did not shrink the alert set: %d -> %d", len(loose), len(tight))
	}
}

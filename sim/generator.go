package sim

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"micro-analyzer-go/market"
)

// Segment marks a half-open index range [Start, End) of the generated day
// where an anomaly is injected.
type Segment struct {
	Start int
	End   int
}

func (s Segment) contains(i int) bool {
	return i >= s.Start && i < s.End
}

// Config controls the synthetic day generator.
type Config struct {
	Seconds    int     // number of one-second ticks to generate
	StartPrice float64 // initial mid price
	Seed       int64   // PRNG seed; same seed, same day

	// Optional injected anomalies.
	GapSegment    *Segment // top-of-book depth collapses inside this range
	GapDepthScale float64  // depth multiplier inside GapSegment, e.g. 0.05
	SpikeSegment  *Segment // spread widens inside this range
	SpikeScale    float64  // spread multiplier inside SpikeSegment, e.g. 8
}

// DefaultConfig mirrors the stock synthetic day: two hours of one-second
// ticks starting at 100.0.
func DefaultConfig() Config {
	return Config{
		Seconds:    7200,
		StartPrice: 100.0,
		Seed:       1,
	}
}

// Validate checks generator parameters.
func (c Config) Validate() error {
	if c.Seconds <= 0 {
		return errors.New("sim: seconds must be positive")
	}
	if c.StartPrice <= 0 {
		return errors.New("sim: startPrice must be positive")
	}
	if c.GapSegment != nil {
		if c.GapSegment.Start < 0 || c.GapSegment.End > c.Seconds || c.GapSegment.Start >= c.GapSegment.End {
			return errors.New("sim: gap segment out of range")
		}
		if c.GapDepthScale <= 0 || c.GapDepthScale >= 1 {
			return errors.New("sim: gapDepthScale must be in (0, 1)")
		}
	}
	if c.SpikeSegment != nil {
		if c.SpikeSegment.Start < 0 || c.SpikeSegment.End > c.Seconds || c.SpikeSegment.Start >= c.SpikeSegment.End {
			return errors.New("sim: spike segment out of range")
		}
		if c.SpikeScale <= 1 {
			return errors.New("sim: spikeScale must be > 1")
		}
	}
	return nil
}

// MakeSyntheticDay generates one random-walk day of top-of-book ticks,
// one per second starting at start. The mid follows a gaussian walk, the
// spread is gaussian with a 0.01 floor, top volumes are poisson around
// 100 and trade sizes exponential with mean 50. Each tick trades at the
// bid or the ask with equal probability.
func MakeSyntheticDay(cfg Config, start time.Time) ([]market.TickSnapshot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	price := cfg.StartPrice
	ticks := make([]market.TickSnapshot, 0, cfg.Seconds)

	for s := 0; s < cfg.Seconds; s++ {
		ts := start.Add(time.Duration(s) * time.Second)

		price += rng.NormFloat64() * 0.02

		spread := math.Abs(rng.NormFloat64()*0.02 + 0.05)
		if spread < 0.01 {
			spread = 0.01
		}
		if cfg.SpikeSegment != nil && cfg.SpikeSegment.contains(s) {
			spread *= cfg.SpikeScale
		}

		bid := round4(price - spread/2)
		ask := round4(price + spread/2)

		bidVol := float64(poisson(rng, 100))
		askVol := float64(poisson(rng, 100))
		if bidVol < 1 {
			bidVol = 1
		}
		if askVol < 1 {
			askVol = 1
		}
		if cfg.GapSegment != nil && cfg.GapSegment.contains(s) {
			bidVol = math.Max(1, math.Floor(bidVol*cfg.GapDepthScale))
			askVol = math.Max(1, math.Floor(askVol*cfg.GapDepthScale))
		}

		tradeSize := round2(rng.ExpFloat64() * 50)
		tradePrice := bid
		if rng.Float64() >= 0.5 {
			tradePrice = ask
		}

		ticks = append(ticks, market.TickSnapshot{
			Timestamp:  ts,
			Bid:        bid,
			Ask:        ask,
			BidVol:     bidVol,
			AskVol:     askVol,
			TradePrice: tradePrice,
			TradeSize:  tradeSize,
			HasTrade:   true,
		})
	}

	return ticks, nil
}

// poisson draws from Poisson(lambda) via Knuth's method. Fine for the
// small lambdas used here.
func poisson(rng *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= l {
			return k - 1
		}
	}
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
func round2(v float64) float64 { return math.Round(v*1e2) / 1e2 }

// Package store reads and writes the pipeline's CSV tables: ticks in,
// features, alerts and the run summary out. One row per time step, ordered
// by timestamp ascending; undefined values serialize as empty fields so
// they can never be mistaken for zero on the way back in.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"micro-analyzer-go/backtest"
	"micro-analyzer-go/features"
	"micro-analyzer-go/market"
	"micro-analyzer-go/signal"
)

var (
	tickHeader = []string{"timestamp", "bid", "ask", "bid_vol", "ask_vol", "trade_price", "trade_size"}

	featureHeader = append(append([]string{}, tickHeader...),
		"spread", "mid", "ret_1s", "vwap", "imbalance_top", "top_depth",
		"spread_mean_w", "spread_std_w", "spread_z", "depth_med_W")

	alertHeader = append(append([]string{}, featureHeader...),
		"is_spread_spike", "is_liquidity_gap", "is_alert")

	summaryHeader = []string{"total_rows", "n_alerts", "pct_alerts",
		"mean_return_frac", "mean_return_bps", "n_samples"}
)

const timeLayout = time.RFC3339Nano

// parse also accepts the space-separated layout the original generator used
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05"}

// ReadTicks loads and validates the input tick table. A structurally
// invalid row fails the whole run with its row index; nothing is skipped
// or repaired.
func ReadTicks(path string) ([]market.TickSnapshot, error) {
	rows, err := readTable(path, tickHeader)
	if err != nil {
		return nil, err
	}
	ticks := make([]market.TickSnapshot, 0, len(rows))
	for i, row := range rows {
		tick, err := parseTick(row)
		if err != nil {
			return nil, &market.MalformedInputError{Row: i, Reason: err.Error()}
		}
		ticks = append(ticks, tick)
	}
	if err := market.ValidateSeries(ticks); err != nil {
		return nil, err
	}
	return ticks, nil
}

// WriteTicks writes the input table, creating parent directories.
func WriteTicks(path string, ticks []market.TickSnapshot) error {
	return writeTable(path, tickHeader, len(ticks), func(i int) []string {
		return tickFields(ticks[i])
	})
}

// WriteFeatures writes the feature table: input columns plus the derived
// ones, aligned one row per tick.
func WriteFeatures(path string, recs []features.Record) error {
	return writeTable(path, featureHeader, len(recs), func(i int) []string {
		return featureFields(recs[i])
	})
}

// ReadFeatures loads a feature table written by WriteFeatures.
func ReadFeatures(path string) ([]features.Record, error) {
	rows, err := readTable(path, featureHeader)
	if err != nil {
		return nil, err
	}
	recs := make([]features.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := parseFeature(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// WriteAlerts writes the retained alert subsequence: feature columns plus
// the three flags.
func WriteAlerts(path string, alerts []signal.AlertRecord) error {
	return writeTable(path, alertHeader, len(alerts), func(i int) []string {
		a := alerts[i]
		return append(featureFields(a.Record),
			strconv.FormatBool(a.IsSpreadSpike),
			strconv.FormatBool(a.IsLiquidityGap),
			strconv.FormatBool(a.IsAlert))
	})
}

// ReadAlerts loads an alert table and re-anchors each row in the full
// feature series by timestamp, restoring the indices the evaluator needs.
func ReadAlerts(path string, recs []features.Record) ([]signal.AlertRecord, error) {
	rows, err := readTable(path, alertHeader)
	if err != nil {
		return nil, err
	}
	alerts := make([]signal.AlertRecord, 0, len(rows))
	j := 0
	for i, row := range rows {
		rec, err := parseFeature(row[:len(featureHeader)])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i, err)
		}
		spike, err1 := strconv.ParseBool(row[len(featureHeader)])
		gap, err2 := strconv.ParseBool(row[len(featureHeader)+1])
		isAlert, err3 := strconv.ParseBool(row[len(featureHeader)+2])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%s row %d: bad flag", path, i)
		}
		for j < len(recs) && recs[j].Tick.Timestamp.Before(rec.Tick.Timestamp) {
			j++
		}
		if j == len(recs) || !recs[j].Tick.Timestamp.Equal(rec.Tick.Timestamp) {
			return nil, fmt.Errorf("%s row %d: alert timestamp %s not found in feature series",
				path, i, rec.Tick.Timestamp.Format(timeLayout))
		}
		alerts = append(alerts, signal.AlertRecord{
			Index:          j,
			Record:         recs[j],
			IsSpreadSpike:  spike,
			IsLiquidityGap: gap,
			IsAlert:        isAlert,
		})
	}
	return alerts, nil
}

// WriteSummary writes the single-row summary table.
func WriteSummary(path string, s backtest.Summary) error {
	return writeTable(path, summaryHeader, 1, func(int) []string {
		return []string{
			strconv.Itoa(s.TotalRows),
			strconv.Itoa(s.NAlerts),
			formatFloat(s.PctAlerts),
			formatValue(s.MeanReturnFrac),
			formatValue(s.MeanReturnBps),
			strconv.Itoa(s.NSamples),
		}
	})
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (backtest.Summary, error) {
	var s backtest.Summary
	rows, err := readTable(path, summaryHeader)
	if err != nil {
		return s, err
	}
	if len(rows) != 1 {
		return s, fmt.Errorf("%s: expected a single summary row, got %d", path, len(rows))
	}
	row := rows[0]
	if s.TotalRows, err = strconv.Atoi(row[0]); err != nil {
		return s, fmt.Errorf("%s: total_rows: %w", path, err)
	}
	if s.NAlerts, err = strconv.Atoi(row[1]); err != nil {
		return s, fmt.Errorf("%s: n_alerts: %w", path, err)
	}
	if s.PctAlerts, err = strconv.ParseFloat(row[2], 64); err != nil {
		return s, fmt.Errorf("%s: pct_alerts: %w", path, err)
	}
	if s.MeanReturnFrac, err = parseValue(row[3]); err != nil {
		return s, fmt.Errorf("%s: mean_return_frac: %w", path, err)
	}
	if s.MeanReturnBps, err = parseValue(row[4]); err != nil {
		return s, fmt.Errorf("%s: mean_return_bps: %w", path, err)
	}
	if s.NSamples, err = strconv.Atoi(row[5]); err != nil {
		return s, fmt.Errorf("%s: n_samples: %w", path, err)
	}
	return s, nil
}

func readTable(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: empty table", path)
	}
	for i, name := range header {
		if all[0][i] != name {
			return nil, fmt.Errorf("%s: header column %d is %q, want %q", path, i, all[0][i], name)
		}
	}
	return all[1:], nil
}

func writeTable(path string, header []string, n int, row func(int) []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func tickFields(t market.TickSnapshot) []string {
	tradePrice, tradeSize := "", ""
	if t.HasTrade {
		tradePrice = formatFloat(t.TradePrice)
		tradeSize = formatFloat(t.TradeSize)
	}
	return []string{
		t.Timestamp.UTC().Format(timeLayout),
		formatFloat(t.Bid),
		formatFloat(t.Ask),
		formatFloat(t.BidVol),
		formatFloat(t.AskVol),
		tradePrice,
		tradeSize,
	}
}

func featureFields(r features.Record) []string {
	return append(tickFields(r.Tick),
		formatFloat(r.Spread),
		formatFloat(r.Mid),
		formatValue(r.Ret1s),
		formatValue(r.VWAP),
		formatValue(r.ImbalanceTop),
		formatFloat(r.TopDepth),
		formatValue(r.SpreadMean),
		formatValue(r.SpreadStd),
		formatValue(r.SpreadZ),
		formatValue(r.DepthMed),
	)
}

func parseTick(row []string) (market.TickSnapshot, error) {
	var t market.TickSnapshot
	ts, err := parseTime(row[0])
	if err != nil {
		return t, fmt.Errorf("timestamp %q: %w", row[0], err)
	}
	t.Timestamp = ts
	fields := []struct {
		name string
		dst  *float64
	}{
		{"bid", &t.Bid}, {"ask", &t.Ask}, {"bid_vol", &t.BidVol}, {"ask_vol", &t.AskVol},
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return t, fmt.Errorf("%s %q: %w", f.name, row[i+1], err)
		}
		*f.dst = v
	}
	switch {
	case row[5] == "" && row[6] == "":
		// no trade this interval
	case row[5] == "" || row[6] == "":
		return t, fmt.Errorf("trade_price/trade_size must be both present or both absent")
	default:
		price, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return t, fmt.Errorf("trade_price %q: %w", row[5], err)
		}
		size, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return t, fmt.Errorf("trade_size %q: %w", row[6], err)
		}
		t.TradePrice, t.TradeSize, t.HasTrade = price, size, true
	}
	return t, nil
}

func parseFeature(row []string) (features.Record, error) {
	var rec features.Record
	tick, err := parseTick(row[:len(tickHeader)])
	if err != nil {
		return rec, err
	}
	rec.Tick = tick

	base := len(tickHeader)
	if rec.Spread, err = strconv.ParseFloat(row[base], 64); err != nil {
		return rec, fmt.Errorf("spread %q: %w", row[base], err)
	}
	if rec.Mid, err = strconv.ParseFloat(row[base+1], 64); err != nil {
		return rec, fmt.Errorf("mid %q: %w", row[base+1], err)
	}
	values := []struct {
		name string
		dst  *features.Value
		col  int
	}{
		{"ret_1s", &rec.Ret1s, base + 2},
		{"vwap", &rec.VWAP, base + 3},
		{"imbalance_top", &rec.ImbalanceTop, base + 4},
		{"spread_mean_w", &rec.SpreadMean, base + 6},
		{"spread_std_w", &rec.SpreadStd, base + 7},
		{"spread_z", &rec.SpreadZ, base + 8},
		{"depth_med_W", &rec.DepthMed, base + 9},
	}
	if rec.TopDepth, err = strconv.ParseFloat(row[base+5], 64); err != nil {
		return rec, fmt.Errorf("top_depth %q: %w", row[base+5], err)
	}
	for _, v := range values {
		if *v.dst, err = parseValue(row[v.col]); err != nil {
			return rec, fmt.Errorf("%s %q: %w", v.name, row[v.col], err)
		}
	}
	return rec, nil
}

func parseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatValue(v features.Value) string {
	if !v.Defined {
		return ""
	}
	return formatFloat(v.V)
}

func parseValue(s string) (features.Value, error) {
	if s == "" {
		return features.Undefined(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return features.Undefined(), err
	}
	return features.Defined(v), nil
}

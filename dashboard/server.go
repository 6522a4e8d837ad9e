package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"micro-analyzer-go/backtest"
	"micro-analyzer-go/features"
	"micro-analyzer-go/infrastructure/logger"
	"micro-analyzer-go/infrastructure/monitor"
	"micro-analyzer-go/signal"
)

// maxAlertsReplayed caps how many retained alerts are replayed to a
// freshly connected websocket client.
const maxAlertsReplayed = 200

// Server serves the analysis results of one feature series over HTTP. The
// detector and evaluator stages are re-run in place whenever thresholds
// change, so clients always see alerts for the current configuration.
type Server struct {
	log *logger.Logger
	mon *monitor.Monitor
	hub *hub

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	records []features.Record
	sigCfg  signal.Config
	btCfg   backtest.Config
	alerts  []signal.AlertRecord
	summary backtest.Summary
}

// New builds a server over records and runs the initial detect/evaluate
// pass with the given thresholds.
func New(records []features.Record, sigCfg signal.Config, btCfg backtest.Config,
	log *logger.Logger, mon *monitor.Monitor) (*Server, error) {

	s := &Server{
		log: log,
		mon: mon,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		records: records,
	}
	s.hub = newHub(mon.WSClientConnected, mon.WSClientDisconnected)

	if err := s.Recompute(sigCfg, btCfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Recompute re-runs the detector and evaluator over the cached feature
// series with new thresholds, then pushes alerts that were not flagged
// under the previous thresholds to connected websocket clients.
func (s *Server) Recompute(sigCfg signal.Config, btCfg backtest.Config) error {
	detector, err := signal.NewDetector(sigCfg)
	if err != nil {
		return err
	}
	if err := btCfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	start := time.Now()
	alerts := detector.Detect(s.records)
	summary, err := backtest.Evaluate(s.records, alerts, btCfg)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	previous := make(map[int]struct{}, len(s.alerts))
	for _, a := range s.alerts {
		previous[a.Index] = struct{}{}
	}

	s.sigCfg = sigCfg
	s.btCfg = btCfg
	s.alerts = alerts
	s.summary = summary
	s.mu.Unlock()

	if s.mon != nil {
		s.mon.RecordStage("dashboard_recompute", time.Since(start).Seconds())
		bps := 0.0
		if summary.MeanReturnBps.Defined {
			bps = summary.MeanReturnBps.V
		}
		s.mon.UpdateSummary(bps, summary.PctAlerts, summary.NSamples)
	}
	if s.log != nil {
		s.log.LogStage("dashboard_recompute", len(s.records), time.Since(start), map[string]interface{}{
			"n_alerts":        summary.NAlerts,
			"spike_threshold": sigCfg.SpikeThreshold,
			"gap_fraction":    sigCfg.GapFraction,
		})
	}

	for _, a := range alerts {
		if _, seen := previous[a.Index]; seen {
			continue
		}
		if msg, err := json.Marshal(alertDTO(a)); err == nil {
			s.hub.broadcast(msg)
		}
	}
	return nil
}

// Routes returns the HTTP mux with all dashboard endpoints mounted.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/ws/alerts", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.mon != nil {
		mux.Handle("/metrics", s.mon.Handler())
	}
	return mux
}

// Close drops all websocket clients.
func (s *Server) Close() {
	s.hub.closeAll()
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.mon != nil {
		s.mon.RecordAPIRequest("summary")
	}
	s.mu.RLock()
	dto := summaryDTO(s.summary)
	s.mu.RUnlock()
	writeJSON(w, dto)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.mon != nil {
		s.mon.RecordAPIRequest("alerts")
	}
	s.mu.RLock()
	out := make([]alertJSON, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, alertDTO(a))
	}
	s.mu.RUnlock()
	writeJSON(w, out)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.mon != nil {
		s.mon.RecordAPIRequest("ws_alerts")
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.mon != nil {
			s.mon.RecordAPIError("ws_alerts")
		}
		return
	}

	s.mu.RLock()
	alerts := s.alerts
	if len(alerts) > maxAlertsReplayed {
		alerts = alerts[len(alerts)-maxAlertsReplayed:]
	}
	snapshot := make([][]byte, 0, len(alerts))
	for _, a := range alerts {
		if msg, err := json.Marshal(alertDTO(a)); err == nil {
			snapshot = append(snapshot, msg)
		}
	}
	s.mu.RUnlock()

	s.hub.add(conn, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	rows := len(s.records)
	s.mu.RUnlock()
	writeJSON(w, map[string]interface{}{"status": "ok", "rows": rows})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
	}
}

// summaryJSON is the wire shape of a Summary. Undefined means are null.
type summaryJSON struct {
	TotalRows      int      `json:"total_rows"`
	NAlerts        int      `json:"n_alerts"`
	PctAlerts      float64  `json:"pct_alerts"`
	MeanReturnFrac *float64 `json:"mean_return_frac"`
	MeanReturnBps  *float64 `json:"mean_return_bps"`
	NSamples       int      `json:"n_samples"`
}

type alertJSON struct {
	Timestamp      time.Time `json:"timestamp"`
	Bid            float64   `json:"bid"`
	Ask            float64   `json:"ask"`
	Mid            float64   `json:"mid"`
	Spread         float64   `json:"spread"`
	SpreadZ        *float64  `json:"spread_z"`
	ImbalanceTop   *float64  `json:"imbalance_top"`
	TopDepth       float64   `json:"top_depth"`
	IsSpreadSpike  bool      `json:"is_spread_spike"`
	IsLiquidityGap bool      `json:"is_liquidity_gap"`
}

func summaryDTO(s backtest.Summary) summaryJSON {
	return summaryJSON{
		TotalRows:      s.TotalRows,
		NAlerts:        s.NAlerts,
		PctAlerts:      s.PctAlerts,
		MeanReturnFrac: valuePtr(s.MeanReturnFrac),
		MeanReturnBps:  valuePtr(s.MeanReturnBps),
		NSamples:       s.NSamples,
	}
}

func alertDTO(a signal.AlertRecord) alertJSON {
	r := a.Record
	return alertJSON{
		Timestamp:      r.Tick.Timestamp,
		Bid:            r.Tick.Bid,
		Ask:            r.Tick.Ask,
		Mid:            r.Mid,
		Spread:         r.Spread,
		SpreadZ:        valuePtr(r.SpreadZ),
		ImbalanceTop:   valuePtr(r.ImbalanceTop),
		TopDepth:       r.TopDepth,
		IsSpreadSpike:  a.IsSpreadSpike,
		IsLiquidityGap: a.IsLiquidityGap,
	}
}

func valuePtr(v features.Value) *float64 {
	if !v.Defined {
		return nil
	}
	f := v.V
	return &f
}

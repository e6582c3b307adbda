// Command oracled runs a heuristic decision oracle over HTTP.
//
// It answers POST /decide with a JSON decision for the posted telemetry and
// perception readings: rescue the nearest visible victim, extinguish the
// nearest visible fire, head home when the battery runs low, and explore
// otherwise. Flags can inject throttle and failure responses to exercise the
// caller's retry path.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/openrescue/gridrescue/observability"
	"github.com/openrescue/gridrescue/sim/decision"
	"github.com/openrescue/gridrescue/sim/engine"
)

var (
	port         = flag.Int("port", 9090, "HTTP listen port")
	host         = flag.String("host", "localhost", "HTTP listen host")
	throttleRate = flag.Float64("throttle-rate", 0, "Fraction of requests answered with 429 (0..1)")
	failRate     = flag.Float64("fail-rate", 0, "Fraction of requests answered with 500 (0..1)")
	latency      = flag.Duration("latency", 0, "Artificial delay before answering")
	rechargeAt   = flag.Float64("recharge-at", 35, "Battery percentage below which the oracle orders a recharge")
	debug        = flag.Bool("debug", false, "Enable debug logging")
)

// wireDecision matches the JSON contract the mission server expects.
type wireDecision struct {
	Reasoning string        `json:"reasoning"`
	Action    string        `json:"action"`
	Target    *engine.Coord `json:"target,omitempty"`
	Priority  string        `json:"priority"`
}

type oracleHandler struct {
	logger     *zap.Logger
	rng        *rand.Rand
	rechargeAt float64
}

func (h *oracleHandler) handleDecide(w http.ResponseWriter, r *http.Request) {
	if *latency > 0 {
		time.Sleep(*latency)
	}

	// Simulated faults come first so they hit regardless of request shape.
	roll := h.rng.Float64()
	if roll < *throttleRate {
		h.logger.Debug("simulating throttle")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
		return
	}
	if roll < *throttleRate+*failRate {
		h.logger.Debug("simulating failure")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}

	var req decision.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "malformed request"})
		return
	}

	d := h.decide(req)

	h.logger.Debug("decision",
		zap.String("action", d.Action),
		zap.String("priority", d.Priority),
		zap.Float64("battery", req.Telemetry.Battery))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d)
}

// decide picks the next objective from what the robot can currently see.
// Victims outrank fires, fires outrank exploration, and a low battery
// overrides everything.
func (h *oracleHandler) decide(req decision.Request) wireDecision {
	if req.Telemetry.Battery < h.rechargeAt {
		return wireDecision{
			Reasoning: fmt.Sprintf("battery at %.0f%%, returning to base", req.Telemetry.Battery),
			Action:    string(engine.ActionRecharge),
			Target:    &engine.Coord{X: 0, Y: 0},
			Priority:  string(engine.PriorityHigh),
		}
	}

	if victim := nearestOfType(req.Perception, engine.Victim); victim != nil {
		return wireDecision{
			Reasoning: fmt.Sprintf("victim spotted %d cells away", victim.Distance),
			Action:    string(engine.ActionRescue),
			Target:    &engine.Coord{X: victim.X, Y: victim.Y},
			Priority:  string(engine.PriorityHigh),
		}
	}

	if fire := nearestOfType(req.Perception, engine.Fire); fire != nil {
		return wireDecision{
			Reasoning: fmt.Sprintf("fire spotted %d cells away", fire.Distance),
			Action:    string(engine.ActionExtinguish),
			Target:    &engine.Coord{X: fire.X, Y: fire.Y},
			Priority:  string(engine.PriorityMedium),
		}
	}

	return wireDecision{
		Reasoning: "nothing visible worth acting on, expanding coverage",
		Action:    string(engine.ActionExplore),
		Priority:  string(engine.PriorityLow),
	}
}

// nearestOfType returns the closest reading of the given cell type, scan
// order breaking ties.
func nearestOfType(readings []engine.SensorReading, ct engine.CellType) *engine.SensorReading {
	var best *engine.SensorReading
	for i := range readings {
		r := &readings[i]
		if r.Type != ct {
			continue
		}
		if best == nil || r.Distance < best.Distance {
			best = r
		}
	}
	return best
}

func (h *oracleHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "oracled"})
}

func main() {
	flag.Parse()

	logCfg := observability.DefaultConfig()
	logCfg.ServiceName = "oracled"
	if *debug {
		logCfg.Level = "debug"
	}
	observability.InitializeLogger(logCfg)
	defer observability.Sync()

	logger := observability.GetLogger()

	handler := &oracleHandler{
		logger:     logger.Named("oracle"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		rechargeAt: *rechargeAt,
	}

	router := mux.NewRouter()
	router.HandleFunc("/decide", handler.handleDecide).Methods("POST")
	router.HandleFunc("/health", handler.handleHealth).Methods("GET")

	addr := fmt.Sprintf("%s:%d", *host, *port)
	logger.Info("oracle listening",
		zap.String("addr", addr),
		zap.Float64("throttle_rate", *throttleRate),
		zap.Float64("fail_rate", *failRate))

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("oracle server failed", zap.Error(err))
		os.Exit(1)
	}
}

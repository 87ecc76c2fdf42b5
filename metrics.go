package main

import (
	"net/http"
	"strconv"

	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/bemasher/rtlmodes/decode"
	"github.com/bemasher/rtlmodes/parse"
)

// Metrics mirrors detector statistics and message counts as prometheus
// counters.
type Metrics struct {
	detector *prometheus.CounterVec // Detector outcomes by event
	messages *prometheus.CounterVec // Messages output by downlink format
	blocks   prometheus.Counter     // Sample blocks decoded

	last decode.Stats
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		detector: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtlmodes_detector_events_total",
				Help: "Message detector outcomes",
			},
			[]string{"event"},
		),
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtlmodes_messages_total",
				Help: "Messages output after filtering",
			},
			[]string{"df"},
		),
		blocks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rtlmodes_blocks_total",
				Help: "Sample blocks decoded",
			},
		),
	}
}

// Update adds the detector statistics accumulated since the last call.
func (m *Metrics) Update(stats decode.Stats) {
	delta := stats.Sub(m.last)
	m.last = stats

	m.blocks.Inc()

	for event, count := range map[string]uint64{
		"preamble":        delta.Preambles,
		"demodulated":     delta.Demodulated,
		"good_crc":        delta.GoodCRC,
		"bad_crc":         delta.BadCRC,
		"fixed":           delta.Fixed,
		"single_bit_fix":  delta.SingleBitFix,
		"two_bit_fix":     delta.TwoBitFix,
		"out_of_phase":    delta.OutOfPhase,
		"phase_corrected": delta.PhaseCorrected,
		"noise":           delta.Noise,
		"parse_error":     delta.ParseErrors,
		"delivered":       delta.Delivered,
	} {
		m.detector.WithLabelValues(event).Add(float64(count))
	}
}

func (m *Metrics) Message(msg parse.Message) {
	m.messages.WithLabelValues(strconv.Itoa(int(msg.DF()))).Inc()
}

// ServeMetrics serves the default registry and pprof handlers on addr.
func ServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	// pprof registers itself on the default mux.
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	go func() {
		logrus.WithField("addr", addr).Info("serving metrics")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.WithError(err).Error("metrics server")
		}
	}()
}

package main

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bemasher/rtlmodes/decode"
)

func TestMetricsUpdate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Update(decode.Stats{Preambles: 10, GoodCRC: 2, Delivered: 2})
	m.Update(decode.Stats{Preambles: 25, GoodCRC: 3, BadCRC: 1, Delivered: 3})

	for event, want := range map[string]float64{
		"preamble":  25,
		"good_crc":  3,
		"bad_crc":   1,
		"delivered": 3,
		"noise":     0,
	} {
		if got := testutil.ToFloat64(m.detector.WithLabelValues(event)); got != want {
			t.Errorf("%s: got %v, want %v", event, got, want)
		}
	}

	if got := testutil.ToFloat64(m.blocks); got != 2 {
		t.Errorf("blocks: got %v, want 2", got)
	}
}

func TestMetricsMessage(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Message(parseMsg(t, identMsg))
	m.Message(parseMsg(t, positionMsg))

	if got := testutil.ToFloat64(m.messages.WithLabelValues("17")); got != 2 {
		t.Fatalf("df 17: got %v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.messages); n != 1 {
		t.Fatalf("got %d series, want 1", n)
	}
}

package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"strings"
	"testing"

	"github.com/bemasher/rtlmodes/parse"
)

const (
	identMsg    = "8D4840D6202CC371C32CE0576098"
	positionMsg = "8D40621D58C382D690C8AC2863A7"
)

func parseMsg(t *testing.T, s string) parse.Message {
	t.Helper()

	data, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}

	p, err := parse.NewParser("modes", parse.Options{FixErrors: true})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := p.Parse(data, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestUintMap(t *testing.T) {
	m := make(UintMap)
	if err := m.Set("17, 11,4"); err != nil {
		t.Fatal(err)
	}
	if got := m.String(); got != "11,17,4" {
		t.Fatalf("got %q", got)
	}
	if err := m.Set("x"); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestAddrMap(t *testing.T) {
	m := make(AddrMap)
	if err := m.Set("4840d6,40621D"); err != nil {
		t.Fatal(err)
	}
	if !m[0x4840D6] || !m[0x40621D] {
		t.Fatalf("missing addresses: %v", m)
	}
	if got := m.String(); got != "40621D,4840D6" {
		t.Fatalf("got %q", got)
	}
	if err := m.Set("1000000"); err == nil {
		t.Fatal("expected error for address wider than 24 bits")
	}
}

func TestFilters(t *testing.T) {
	ident := parseMsg(t, identMsg)
	position := parseMsg(t, positionMsg)

	af := AddrFilter{make(AddrMap)}
	af.Set("4840D6")

	df := DFFilter{make(UintMap)}
	df.Set("17")

	var fc parse.FilterChain
	fc.Add(af)
	fc.Add(df)

	if !fc.Match(ident) {
		t.Error("expected ident message to match")
	}
	if fc.Match(position) {
		t.Error("expected position message to be filtered by address")
	}

	df = DFFilter{make(UintMap)}
	df.Set("11")
	if df.Filter(ident) {
		t.Error("expected DF17 message to be filtered by downlink format")
	}
}

func TestUniqueFilter(t *testing.T) {
	uf := NewUniqueFilter()

	ident := parseMsg(t, identMsg)
	position := parseMsg(t, positionMsg)

	for idx, tc := range []struct {
		msg  parse.Message
		want bool
	}{
		{ident, true},
		{ident, false},
		{position, true},
		{ident, false},
		{position, false},
	} {
		if got := uf.Filter(tc.msg); got != tc.want {
			t.Errorf("%d: got %t, want %t", idx, got, tc.want)
		}
	}
}

func newTestFlagSet() (*flag.FlagSet, *string, *bool, AddrMap) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	format := fs.String("format", "plain", "")
	unique := fs.Bool("unique", false, "")
	addrs := make(AddrMap)
	fs.Var(addrs, "filterid", "")
	return fs, format, unique, addrs
}

func TestEnvOverride(t *testing.T) {
	fs, format, unique, _ := newTestFlagSet()

	t.Setenv("RTLMODES_FORMAT", "json")
	t.Setenv("RTLMODES_UNIQUE", "notabool")

	EnvOverride(fs)

	if *format != "json" {
		t.Errorf("format: got %q", *format)
	}
	if *unique {
		t.Error("unique: invalid value should be ignored")
	}
}

func TestConfigOverride(t *testing.T) {
	fs, format, unique, addrs := newTestFlagSet()

	if err := fs.Parse([]string{"-format=csv"}); err != nil {
		t.Fatal(err)
	}

	cfg := "format: json\nunique: true\nfilterid: [4840D6, 40621D]\n"
	if err := ConfigOverride(fs, strings.NewReader(cfg)); err != nil {
		t.Fatal(err)
	}

	if *format != "csv" {
		t.Errorf("format: command line should win, got %q", *format)
	}
	if !*unique {
		t.Error("unique: expected true from config")
	}
	if got := addrs.String(); got != "40621D,4840D6" {
		t.Errorf("filterid: got %q", got)
	}
}

func TestConfigOverrideEmpty(t *testing.T) {
	fs, format, _, _ := newTestFlagSet()

	if err := ConfigOverride(fs, strings.NewReader("")); err != nil {
		t.Fatal(err)
	}
	if *format != "plain" {
		t.Errorf("format: got %q", *format)
	}
}

func TestConfigOverrideUnknown(t *testing.T) {
	fs, _, _, _ := newTestFlagSet()

	err := ConfigOverride(fs, strings.NewReader("centerfreq: 1090000000\n"))
	if err == nil || !strings.Contains(err.Error(), "centerfreq") {
		t.Fatalf("expected unknown flag error, got %v", err)
	}
}

func TestConfigOverrideBadValue(t *testing.T) {
	fs, _, _, _ := newTestFlagSet()

	if err := ConfigOverride(fs, strings.NewReader("unique: maybe\n")); err == nil {
		t.Fatal("expected error for invalid bool")
	}
}

func TestAVREncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := AVREncoder{&buf}

	msg := parseMsg(t, identMsg)
	if err := enc.Encode(parse.LogMessage{Message: msg}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(msg); err != nil {
		t.Fatal(err)
	}

	want := "*" + identMsg + ";\n*" + identMsg + ";\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if err := enc.Encode(42); err == nil {
		t.Fatal("expected error for message without avr representation")
	}
}

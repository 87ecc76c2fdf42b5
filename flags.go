// RTLMODES - An rtl-sdr receiver for Mode S and ADS-B transmissions on 1090MHz.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/bemasher/rtlmodes/csv"
	"github.com/bemasher/rtlmodes/decode"
	"github.com/bemasher/rtlmodes/parse"
	"github.com/bemasher/rtlmodes/stream"
)

const envPrefix = "RTLMODES_"

var configFilename = flag.String("config", "", "yaml file of flag values, overridden by environment and command line")

var sampleFilename = flag.String("samplefile", os.DevNull, "raw signal dump file, zstd compressed if name ends in .zst")
var sampleFile io.WriteCloser

var inputFilename = flag.String("ifile", "", "read samples from file instead of rtl_tcp, - for stdin, zstd compressed if name ends in .zst")

var encoding = decode.Unsigned

var aggressive = flag.Bool("aggressive", true, "accept messages with up to two undecidable bits and repair two bit errors")
var checkCRC = flag.Bool("checkcrc", true, "only output messages with valid parity")
var crcOnly = flag.Bool("crconly", false, "only decode fields needed to check parity")
var fixErrors = flag.Bool("fixerrors", true, "repair single bit errors in messages carrying their own parity")

var blockSize = flag.Int("blocksize", decode.DefaultBlockSize, "samples per block")

var timeLimit = flag.Duration("duration", 0, "time to run for, 0 for infinite, ex. 1h5m10s")
var addrFilter AddrFilter
var dfFilter DFFilter

var unique = flag.Bool("unique", false, "suppress duplicate messages from each address")

var encoder Encoder
var format = flag.String("format", "plain", "decoded message output format: plain, csv, json, xml or avr")

var single = flag.Bool("single", false, "one shot execution, if used with -filterid, will wait for exactly one message from each address")

var metricsAddr = flag.String("metrics", "", "serve prometheus metrics and pprof on address, ex. :9090")
var streamAddr = flag.String("stream", "", "serve messages as json over websocket at /ws on address, ex. :8080")
var streamAVRAddr = flag.String("streamavr", "", "serve messages as raw avr lines over tcp on address, ex. :30002")

var logLevel = flag.String("loglevel", "info", "log level: debug, info, warn or error")

var version = flag.Bool("version", false, "display build date and commit hash")

func RegisterFlags() {
	addrFilter = AddrFilter{make(AddrMap)}
	dfFilter = DFFilter{make(UintMap)}

	flag.Var(&encoding, "encoding", "sample encoding: unsigned or signed")
	flag.Var(addrFilter, "filterid", "display only messages matching an address in a comma-separated list of hex addresses.")
	flag.Var(dfFilter, "filterdf", "display only messages matching a downlink format in a comma-separated list.")

	rtlmodesFlags := map[string]bool{
		"config":     true,
		"samplefile": true,
		"ifile":      true,
		"encoding":   true,
		"aggressive": true,
		"checkcrc":   true,
		"crconly":    true,
		"fixerrors":  true,
		"blocksize":  true,
		"duration":   true,
		"filterid":   true,
		"filterdf":   true,
		"format":     true,
		"unique":     true,
		"single":     true,
		"metrics":    true,
		"stream":     true,
		"streamavr":  true,
		"loglevel":   true,
		"version":    true,
	}

	printDefaults := func(validFlags map[string]bool, inclusion bool) {
		flag.CommandLine.VisitAll(func(f *flag.Flag) {
			if validFlags[f.Name] != inclusion {
				return
			}

			format := "  -%s=%s: %s\n"
			fmt.Fprintf(os.Stderr, format, f.Name, f.Value, f.Usage)
		})
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		printDefaults(rtlmodesFlags, true)

		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "rtltcp specific:")
		printDefaults(rtlmodesFlags, false)
	}
}

// EnvOverride sets each flag in fs from an environment variable named by
// the flag's upper case name prefixed with RTLMODES_.
func EnvOverride(fs *flag.FlagSet) {
	fs.VisitAll(func(f *flag.Flag) {
		envName := envPrefix + strings.ToUpper(f.Name)
		flagValue := os.Getenv(envName)
		if flagValue != "" {
			if err := fs.Set(f.Name, flagValue); err != nil {
				logrus.WithError(err).Warnf(
					"environment variable %q failed to override flag %q with value %q",
					envName, f.Name, flagValue,
				)
			} else {
				logrus.Infof("environment variable %q overrides flag %q with %q", envName, f.Name, flagValue)
			}
		}
	})
}

// ConfigOverride reads a yaml map of flag names to values from r and sets
// each flag not already set by the environment or command line. Lists are
// joined with commas.
func ConfigOverride(fs *flag.FlagSet, r io.Reader) error {
	var cfg map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return errors.Wrap(err, "decode config")
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if fs.Lookup(name) == nil {
			return errors.Errorf("config: unknown flag %q", name)
		}
		if set[name] {
			continue
		}

		value := configValue(cfg[name])
		if err := fs.Set(name, value); err != nil {
			return errors.Wrapf(err, "config: flag %q value %q", name, value)
		}
		logrus.Debugf("config overrides flag %q with %q", name, value)
	}

	return nil
}

func configValue(v interface{}) string {
	if list, ok := v.([]interface{}); ok {
		values := make([]string, len(list))
		for idx, item := range list {
			values[idx] = fmt.Sprint(item)
		}
		return strings.Join(values, ",")
	}
	return fmt.Sprint(v)
}

func HandleFlags() {
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	sampleFile, err = CreateSampleFile(*sampleFilename)
	if err != nil {
		logrus.Fatal("Error creating sample file: ", err)
	}

	*format = strings.ToLower(*format)
	switch *format {
	case "plain":
		encoder = PlainEncoder{*sampleFilename}
	case "csv":
		encoder = csv.NewEncoder(os.Stdout, true)
	case "json":
		encoder = json.NewEncoder(os.Stdout)
	case "xml":
		encoder = xml.NewEncoder(os.Stdout)
	case "avr":
		encoder = AVREncoder{os.Stdout}
	default:
		logrus.Fatalf("Invalid format: %q", *format)
	}
}

// JSON, XML and CSV all implement this interface so we can simplify log
// output formatting.
type Encoder interface {
	Encode(interface{}) error
}

type UintMap map[uint]bool

func (m UintMap) String() (s string) {
	var values []string
	for k := range m {
		values = append(values, strconv.FormatUint(uint64(k), 10))
	}
	sort.Strings(values)
	return strings.Join(values, ",")
}

func (m UintMap) Set(value string) error {
	values := strings.Split(value, ",")

	for _, v := range values {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return err
		}

		m[uint(n)] = true
	}

	return nil
}

// AddrMap is a set of 24-bit addresses given in hex.
type AddrMap map[uint32]bool

func (m AddrMap) String() (s string) {
	var values []string
	for k := range m {
		values = append(values, fmt.Sprintf("%06X", k))
	}
	sort.Strings(values)
	return strings.Join(values, ",")
}

func (m AddrMap) Set(value string) error {
	values := strings.Split(value, ",")

	for _, v := range values {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 16, 24)
		if err != nil {
			return err
		}

		m[uint32(n)] = true
	}

	return nil
}

type AddrFilter struct {
	AddrMap
}

func (m AddrFilter) Filter(msg parse.Message) bool {
	return m.AddrMap[msg.Addr()]
}

type DFFilter struct {
	UintMap
}

func (m DFFilter) Filter(msg parse.Message) bool {
	return m.UintMap[uint(msg.DF())]
}

// UniqueFilter drops messages identical to the last one from the same
// address.
type UniqueFilter map[uint32][]byte

func NewUniqueFilter() UniqueFilter {
	return make(UniqueFilter)
}

func (uf UniqueFilter) Filter(msg parse.Message) bool {
	data := msg.Bytes()
	addr := msg.Addr()

	if val, ok := uf[addr]; ok && bytes.Equal(val, data) {
		return false
	}

	uf[addr] = make([]byte, len(data))
	copy(uf[addr], data)
	return true
}

type PlainEncoder struct {
	sampleFilename string
}

func (pe PlainEncoder) Encode(msg interface{}) (err error) {
	if m, ok := msg.(parse.LogMessage); ok && pe.sampleFilename == os.DevNull {
		_, err = fmt.Println(m.StringNoOffset())
	} else {
		_, err = fmt.Println(msg)
	}
	return
}

// AVREncoder writes messages in raw AVR format, one per line.
type AVREncoder struct {
	w io.Writer
}

func (ae AVREncoder) Encode(msg interface{}) error {
	if m, ok := msg.(parse.LogMessage); ok {
		msg = m.Message
	}

	avr, ok := msg.(stream.AVRer)
	if !ok {
		return errors.Errorf("%T has no avr representation", msg)
	}

	_, err := fmt.Fprintln(ae.w, avr.AVR())
	return err
}

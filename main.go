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
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/bemasher/rtltcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bemasher/rtlmodes/decode"
	"github.com/bemasher/rtlmodes/parse"
	"github.com/bemasher/rtlmodes/stream"

	_ "github.com/bemasher/rtlmodes/modes"
)

var rcvr Receiver

type Receiver struct {
	rtltcp.SDR
	src io.ReadCloser

	d  decode.Decoder
	fc parse.FilterChain

	metrics *Metrics
	hub     *stream.Hub
	avr     *stream.AVRServer

	stop chan struct{}
}

func (rcvr *Receiver) NewReceiver() {
	p, err := parse.NewParser("modes", parse.Options{
		FixErrors:  *fixErrors,
		Aggressive: *aggressive,
	})
	if err != nil {
		logrus.Fatal(err)
	}

	cfg := decode.NewPacketConfig(*blockSize)
	cfg.Encoding = encoding

	rcvr.stop = make(chan struct{}, 1)

	gainFlagSet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "centerfreq":
			cfg.CenterFreq = uint32(rcvr.Flags.CenterFreq)
		case "samplerate":
			if int(rcvr.Flags.SampleRate) != decode.SampleRate {
				logrus.Fatalf("Sample rate must be %d, got %d", decode.SampleRate, int(rcvr.Flags.SampleRate))
			}
		case "gainbyindex", "tunergainmode", "tunergain", "agcmode":
			gainFlagSet = true
		case "unique":
			rcvr.fc.Add(NewUniqueFilter())
		case "filterid":
			rcvr.fc.Add(addrFilter)
		case "filterdf":
			rcvr.fc.Add(dfFilter)
		}
	})

	rcvr.d = decode.NewDecoder(cfg, p, decode.Options{
		Aggressive: *aggressive,
		CheckCRC:   *checkCRC,
		CRCOnly:    *crcOnly,
	})

	if *inputFilename != "" {
		rcvr.src, err = OpenSampleFile(*inputFilename)
		if err != nil {
			logrus.Fatal(err)
		}
		logrus.WithField("file", *inputFilename).Info("reading samples from file")
	} else {
		rcvr.connect(cfg, gainFlagSet)
		rcvr.src = rcvr.SDR.TCPConn
	}

	if *metricsAddr != "" {
		rcvr.metrics = NewMetrics(prometheus.DefaultRegisterer)
		ServeMetrics(*metricsAddr)
	}

	if *streamAddr != "" {
		rcvr.hub = stream.NewHub()

		mux := http.NewServeMux()
		mux.Handle("/ws", rcvr.hub)

		go func() {
			logrus.WithField("addr", *streamAddr).Info("serving websocket stream")
			if err := http.ListenAndServe(*streamAddr, mux); err != nil {
				logrus.WithError(err).Error("websocket server")
			}
		}()
	}

	if *streamAVRAddr != "" {
		rcvr.avr, err = stream.ListenAVR(*streamAVRAddr)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	rcvr.d.Log()

	return
}

// connect tunes the rtl_tcp server for Mode S.
func (rcvr *Receiver) connect(cfg decode.PacketConfig, gainFlagSet bool) {
	if err := rcvr.Connect(nil); err != nil {
		logrus.Fatal(err)
	}

	if err := rcvr.SetCenterFreq(cfg.CenterFreq); err != nil {
		logrus.Fatal(err)
	}
	if err := rcvr.SetSampleRate(uint32(cfg.SampleRate)); err != nil {
		logrus.Fatal(err)
	}

	if !gainFlagSet {
		if err := rcvr.SetGainMode(true); err != nil {
			logrus.Fatal(err)
		}
	}

	if err := rcvr.SDR.HandleFlags(); err != nil {
		logrus.Fatal(err)
	}

	// Tell the user how many gain settings were reported by rtl_tcp.
	logrus.WithFields(logrus.Fields{
		"tuner":     rcvr.SDR.Info.Tuner,
		"gainCount": rcvr.SDR.Info.GainCount,
	}).Info("connected")
}

func (rcvr *Receiver) Close() {
	rcvr.stop <- struct{}{}

	if rcvr.src != nil {
		rcvr.src.Close()
	}
	if rcvr.hub != nil {
		rcvr.hub.Close()
	}
	if rcvr.avr != nil {
		rcvr.avr.Close()
	}
}

// publish sends a message to metrics and network clients.
func (rcvr *Receiver) publish(msg parse.LogMessage) {
	if rcvr.metrics != nil {
		rcvr.metrics.Message(msg.Message)
	}

	if rcvr.hub != nil {
		if err := rcvr.hub.Broadcast(msg); err != nil {
			logrus.WithError(err).Warn("broadcast")
		}
	}

	if rcvr.avr != nil {
		if avr, ok := msg.Message.(stream.AVRer); ok {
			rcvr.avr.Send(avr)
		}
	}
}

// readBlocks reads sample blocks from src and sends them on blockCh until
// told to stop or the source is exhausted. A short final block is sent
// truncated to whole I/Q pairs.
func (rcvr *Receiver) readBlocks(blockCh chan<- []byte) {
	// Make two sample blocks, one for reading, and one for the receiver to
	// decode, these are exchanged each time we read a new block.
	blockA := make([]byte, rcvr.d.Cfg.BlockSize2)
	blockB := make([]byte, rcvr.d.Cfg.BlockSize2)

	// When exiting this goroutine, close the block channel.
	defer close(blockCh)

	for {
		select {
		// Exit if we've been told to stop.
		case <-rcvr.stop:
			return
		default:
			// Read new sample block.
			n, err := io.ReadFull(rcvr.src, blockA)

			// If we get an EOF, decode what we have and exit.
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				logrus.WithError(err).Info("encountered eof")
				if n >= 2 {
					blockCh <- blockA[:n&^1]
				}
				return
			}

			// If we get a network operation error.
			if opErr, ok := err.(*net.OpError); ok {
				// If temporary, keep reading.
				if opErr.Temporary() {
					logrus.WithError(opErr).Warn("temporary network error")
					continue
				}

				// If it's not temporary, exit.
				logrus.WithError(opErr).Error("network error")
				return
			}

			if err != nil {
				logrus.WithError(err).Error("error reading samples")
				return
			}

			// Send the sample block.
			blockCh <- blockA

			// Exchange blocks for next read.
			blockA, blockB = blockB, blockA
		}
	}
}

func (rcvr *Receiver) Run() {
	// Setup signal channel for interruption.
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)

	// Setup time limit channel
	tLimit := make(<-chan time.Time, 1)
	if *timeLimit != 0 {
		tLimit = time.After(*timeLimit)
	}

	sampleBuf := new(bytes.Buffer)
	start := time.Now()

	defer func() {
		rcvr.d.Stats().Log()
	}()

	// Allocate a channel of blocks.
	blockCh := make(chan []byte)
	go rcvr.readBlocks(blockCh)

	for {
		// Exit on interrupt or time limit, otherwise receive.
		select {
		case <-sigint:
			return
		case <-tLimit:
			logrus.Info("Time Limit Reached: ", time.Since(start))
			return
		case block, ok := <-blockCh:
			// If blockCh is closed, exit.
			if !ok {
				return
			}

			// If dumping samples, discard the oldest block from the buffer if
			// it's full and write the new block to it.
			if *sampleFilename != os.DevNull {
				if sampleBuf.Len() > rcvr.d.Cfg.BlockSize2 {
					sampleBuf.Next(sampleBuf.Len() - rcvr.d.Cfg.BlockSize2)
				}
				sampleBuf.Write(block)
			}

			pktFound := false
			done := false

			err := rcvr.d.Decode(block, func(idx int64, msg parse.Message) {
				// If the filterchain rejects the message, skip it.
				if done || !rcvr.fc.Match(msg) {
					return
				}

				logMsg := parse.LogMessage{
					Time:    time.Now(),
					Offset:  idx,
					Type:    msg.MsgType(),
					Message: msg,
				}

				if err := encoder.Encode(logMsg); err != nil {
					logrus.Fatal("Error encoding message: ", err)
				}
				rcvr.publish(logMsg)

				pktFound = true
				if *single {
					if len(addrFilter.AddrMap) == 0 {
						done = true
					} else {
						delete(addrFilter.AddrMap, msg.Addr())
					}
				}
			})
			if err != nil {
				logrus.Fatal("Error decoding block: ", err)
			}

			if rcvr.metrics != nil {
				rcvr.metrics.Update(rcvr.d.Stats())
			}

			if pktFound {
				if *sampleFilename != os.DevNull {
					_, err := sampleFile.Write(sampleBuf.Bytes())
					if err != nil {
						logrus.Fatal("Error writing raw samples to file: ", err)
					}
				}
				if *single && len(addrFilter.AddrMap) == 0 {
					return
				}
			}
		}
	}
}

func init() {
	logrus.SetReportCaller(true)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
}

var (
	buildTag   = "dev"     // v#.#.#
	buildDate  = "unknown" // date -u '+%Y-%m-%d'
	commitHash = "unknown" // git rev-parse HEAD
)

func main() {
	rcvr.RegisterFlags()
	RegisterFlags()
	EnvOverride(flag.CommandLine)
	flag.Parse()

	if *version {
		fmt.Println("Build Tag: ", buildTag)
		fmt.Println("Build Date:", buildDate)
		fmt.Println("Commit:    ", commitHash)
		os.Exit(0)
	}

	if *configFilename != "" {
		f, err := os.Open(*configFilename)
		if err != nil {
			logrus.Fatal(err)
		}
		err = ConfigOverride(flag.CommandLine, f)
		f.Close()
		if err != nil {
			logrus.Fatal(err)
		}
	}

	HandleFlags()

	rcvr.NewReceiver()

	defer sampleFile.Close()
	defer rcvr.Close()

	rcvr.Run()
}

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

/*
RTLMODES is an rtl-sdr receiver for Mode S and ADS-B transmissions on 1090MHz.

Samples are read from an rtl_tcp server tuned to 1090MHz at 2MHz, or from a
file. Each block is converted to magnitudes, scanned for Mode S preambles and
the bits following each preamble are sliced, checked and decoded.

Command-line Flags:

	-aggressive=true

Accepts messages with up to two undecidable bits in the first 56 bits and
repairs two bit errors in extended squitters.

	-blocksize=131072

Sets the number of I/Q samples read per block.

	-checkcrc=true

Only outputs messages with valid parity. When disabled every demodulated
candidate is output, most of them noise.

	-config=""

Sets a yaml file of flag values. Keys are flag names:

	format: json
	filterid: [4840D6, 40621D]
	unique: true

Environment variables override the config file and the command line
overrides both.

	-crconly=false

Only decodes the fields needed to check parity: downlink format, parity and
address.

	-duration=0

Sets time to receive for, 0 for infinite. If the time limit expires during
processing of a block (which is quite likely) it will exit on the next pass
through the receive loop. Exiting after an expired duration will log the
total runtime. Defaults to infinite.

	-encoding="unsigned"

Sets the sample encoding, unsigned for rtl-sdr dongles and signed for
two's complement I/Q samples.

	-filterdf=

Sets a comma-separated list of downlink formats to filter by. Any received
messages not matching a given format will be silently ignored.

	-filterid=

Sets a comma-separated list of hex addresses to filter by. Any received
messages not matching a given address will be silently ignored.

	-fixerrors=true

Repairs single bit errors in messages carrying their own parity.

	-format="plain"

Sets the log output format: plain, csv, json, xml or avr.

Plain text is formatted using the following format string:

	{Time:%s Offset:%d modes:{Raw:%02X Addr:%06X CRC:%06X CRCOk:%t ...}}

The offset is omitted unless dumping samples to file.

For json and xml output each line is an element, there is no root node. The
avr format is the raw format understood by most Mode S tools:

	*8D4840D6202CC371C32CE0576098;

	-ifile=""

Reads samples from a file instead of rtl_tcp, - reads from stdin. Files
ending in .zst are decompressed.

	-loglevel="info"

Sets the log level: debug, info, warn or error. Candidates the decoder
failed to parse are logged at debug.

	-metrics=""

Serves prometheus metrics at /metrics and pprof at /debug/pprof/ on the
given address.

	-samplefile="/dev/null"

Sets file to dump samples for decoded packets to. Output file format are
interleaved in-phase and quadrature samples each are unsigned bytes. These are
unmodified output from the dongle. Files ending in .zst are compressed. This
flag enables offset fields in plain text log messages.

	-server="127.0.0.1:1234"

Sets rtl_tcp server address or hostname and port to connect to.

	-single=false

Provides one shot execution. Receiver listens until exactly one message is
received before exiting. With -filterid, waits for one message from each
address.

	-stream=""

Serves messages as json over websocket at /ws on the given address.

	-streamavr=""

Serves messages as avr lines over tcp on the given address.

	-unique=false

Suppresses messages identical to the previous one from the same address.

	-version=false

Displays the build tag, date and commit hash.
*/
package main

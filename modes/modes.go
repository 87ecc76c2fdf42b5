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

// Package modes decodes Mode S downlink messages.
package modes

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/bemasher/rtlmodes/crc"
	"github.com/bemasher/rtlmodes/parse"
)

const (
	LongMsgBits   = 112
	ShortMsgBits  = 56
	LongMsgBytes  = LongMsgBits / 8
	ShortMsgBytes = ShortMsgBits / 8

	DefaultAddrTTL = 60 * time.Second
)

var ErrShortMessage = errors.New("message shorter than its downlink format")

func init() {
	parse.Register("modes", NewParser)
}

// MessageBits returns the message length of the given downlink format.
// DF16 through DF22 and the DF24 (Comm-D) family are long messages.
func MessageBits(df byte) int {
	if df >= 24 || (df >= 16 && df <= 22) {
		return LongMsgBits
	}
	return ShortMsgBits
}

type Parser struct {
	crc.CRC

	opts parse.Options

	// Addresses recovered from messages carrying their own parity.
	addrs *cache.Cache
}

func NewParser(opts parse.Options) parse.Parser {
	if opts.AddrTTL == 0 {
		opts.AddrTTL = DefaultAddrTTL
	}

	return &Parser{
		CRC:   crc.NewCRC("ModeS", 0, crc.ModeSPoly),
		opts:  opts,
		addrs: cache.New(opts.AddrTTL, opts.AddrTTL*2),
	}
}

func (p *Parser) MessageBits(df byte) int {
	return MessageBits(df)
}

// Parse decodes a Mode S message. Only the first bits/8 bytes of data are
// read, if bits is zero the length is inferred from the downlink format.
func (p *Parser) Parse(data []byte, bits int, crcOnly bool) (parse.Message, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrShortMessage, "empty buffer")
	}

	df := data[0] >> 3
	if bits == 0 {
		bits = MessageBits(df)
	}

	n := bits >> 3
	if len(data) < n {
		return nil, errors.Wrapf(ErrShortMessage, "DF%d: have %d bytes, need %d", df, len(data), n)
	}

	msg := &Message{
		Raw:      make([]byte, n),
		Type:     df,
		Bits:     bits,
		ErrorBit: -1,
	}
	copy(msg.Raw, data[:n])

	p.validate(msg)

	// Errors may have been fixed, take the downlink format from the result.
	msg.Type = msg.Raw[0] >> 3

	if !crcOnly {
		decodeFields(msg)
	}

	return msg, nil
}

// Parity returns the parity field carried in the last 24 bits of msg.
func Parity(msg []byte) uint32 {
	n := len(msg)
	return uint32(msg[n-3])<<16 | uint32(msg[n-2])<<8 | uint32(msg[n-1])
}

// validate checks the message parity, repairs bit errors if allowed and
// recovers the address of address/parity messages.
func (p *Parser) validate(msg *Message) {
	msg.CRC = Parity(msg.Raw)
	computed := p.Checksum(msg.Raw[:len(msg.Raw)-3])

	switch msg.Type {
	case 11, 17, 18:
		msg.CRCValid = msg.CRC == computed

		if !msg.CRCValid && p.opts.FixErrors && (msg.Type == 11 || msg.Type == 17) {
			msg.ErrorBit = p.fixSingleBitErrors(msg.Raw)
			if msg.ErrorBit == -1 && p.opts.Aggressive && msg.Type == 17 {
				msg.ErrorBit = p.fixTwoBitErrors(msg.Raw)
			}
			if msg.ErrorBit != -1 {
				msg.CRC = Parity(msg.Raw)
				msg.CRCValid = true
			}
		}

		msg.Address = uint32(msg.Raw[1])<<16 | uint32(msg.Raw[2])<<8 | uint32(msg.Raw[3])

		if msg.CRCValid {
			p.addrs.SetDefault(addrKey(msg.Address), struct{}{})
		}
	case 0, 4, 5, 16, 20, 21, 24:
		// Parity is overlaid with the address of the transmitter. Trust it
		// only if we've recently heard that address in the clear.
		addr := msg.CRC ^ computed
		if _, seen := p.addrs.Get(addrKey(addr)); seen {
			msg.Address = addr
			msg.CRCValid = true
		}
	}
}

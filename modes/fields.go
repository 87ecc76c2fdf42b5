package modes

import (
	"math"
	"strings"
)

const aisCharset = "?ABCDEFGHIJKLMNOPQRSTUVWXYZ????? ???????????????0123456789??????"

func decodeFields(msg *Message) {
	raw := msg.Raw

	switch msg.Type {
	case 4, 5, 20, 21:
		msg.FlightStatus = raw[0] & 7
		msg.DR = raw[1] >> 3 & 31
		msg.UM = (raw[1]&7)<<3 | raw[2]>>5
	case 11, 17:
		msg.Capability = raw[0] & 7
	}

	switch msg.Type {
	case 0, 4, 16, 20:
		msg.Altitude, msg.Unit = decodeAC13(raw)
	case 5, 21:
		msg.Squawk = decodeIdentity(raw)
	case 17:
		decodeExtendedSquitter(msg)
	}
}

// decodeIdentity decodes the 13 bit Mode A identity (squawk) of DF5 and DF21.
// Bits are interleaved C1 A1 C2 A2 C4 A4 X B1 D1 B2 D2 B4 D4.
func decodeIdentity(msg []byte) int {
	a := int(msg[3]&0x80)>>5 | int(msg[2]&0x02) | int(msg[2]&0x08)>>3
	b := int(msg[3]&0x02)<<1 | int(msg[3]&0x08)>>2 | int(msg[3]&0x20)>>5
	c := int(msg[2]&0x01)<<2 | int(msg[2]&0x04)>>1 | int(msg[2]&0x10)>>4
	d := int(msg[3]&0x01)<<2 | int(msg[3]&0x04)>>1 | int(msg[3]&0x10)>>4

	return a*1000 + b*100 + c*10 + d
}

// decodeAC13 decodes the 13 bit altitude code of DF0, DF4, DF16 and DF20.
// Only the 25 foot increment encoding (Q=1) is supported, other encodings
// report zero.
func decodeAC13(msg []byte) (int, Unit) {
	mBit := msg[3] & (1 << 6)
	qBit := msg[3] & (1 << 4)

	if mBit != 0 {
		return 0, Meters
	}

	if qBit == 0 {
		return 0, Feet
	}

	n := int(msg[2]&31)<<6 | int(msg[3]&0x80)>>2 | int(msg[3]&0x20)>>1 | int(msg[3]&15)
	return n*25 - 1000, Feet
}

// decodeAC12 decodes the 12 bit altitude code of airborne position messages.
func decodeAC12(msg []byte) (int, Unit) {
	if msg[5]&1 == 0 {
		return 0, Feet
	}

	n := int(msg[5]>>1)<<4 | int(msg[6]&0xF0)>>4
	return n*25 - 1000, Feet
}

func decodeFlight(msg []byte) string {
	chars := [8]byte{
		aisCharset[msg[5]>>2],
		aisCharset[(msg[5]&3)<<4|msg[6]>>4],
		aisCharset[(msg[6]&15)<<2|msg[7]>>6],
		aisCharset[msg[7]&63],
		aisCharset[msg[8]>>2],
		aisCharset[(msg[8]&3)<<4|msg[9]>>4],
		aisCharset[(msg[9]&15)<<2|msg[10]>>6],
		aisCharset[msg[10]&63],
	}

	return strings.TrimRight(string(chars[:]), " ")
}

func decodeExtendedSquitter(msg *Message) {
	raw := msg.Raw

	msg.METype = raw[4] >> 3
	msg.MESub = raw[4] & 7

	switch {
	case msg.METype >= 1 && msg.METype <= 4:
		msg.Ident = &Ident{
			Category: msg.METype - 1,
			Flight:   decodeFlight(raw),
		}
	case msg.METype >= 9 && msg.METype <= 18:
		msg.Altitude, msg.Unit = decodeAC12(raw)
		msg.Position = &Position{
			Odd:    raw[6]&(1<<2) != 0,
			UTC:    raw[6]&(1<<3) != 0,
			RawLat: int(raw[6]&3)<<15 | int(raw[7])<<7 | int(raw[8])>>1,
			RawLon: int(raw[8]&1)<<16 | int(raw[9])<<8 | int(raw[10]),
		}
	case msg.METype == 19 && msg.MESub >= 1 && msg.MESub <= 4:
		msg.Velocity = decodeVelocity(raw, msg.MESub)
	}
}

// decodeVelocity decodes airborne velocity subtypes 1 through 4. Ground speed
// subtypes (1, 2) yield speed and track, airspeed subtypes (3, 4) yield
// magnetic heading. A zero field value means no information is available.
func decodeVelocity(msg []byte, sub byte) *Velocity {
	v := &Velocity{
		VertSource: (msg[8] & 0x10) >> 4,
	}

	rate := int(msg[8]&7)<<6 | int(msg[9]&0xFC)>>2
	if rate != 0 {
		v.VertRate = (rate - 1) * 64
		if msg[8]&0x08 != 0 {
			v.VertRate = -v.VertRate
		}
	}

	if sub == 1 || sub == 2 {
		v.EWDir = (msg[5] & 4) >> 2
		v.EWVelocity = int(msg[5]&3)<<8 | int(msg[6])
		v.NSDir = (msg[7] & 0x80) >> 7
		v.NSVelocity = int(msg[7]&0x7F)<<3 | int(msg[8]&0xE0)>>5

		if v.EWVelocity == 0 || v.NSVelocity == 0 {
			return v
		}

		ewv := float64(v.EWVelocity - 1)
		nsv := float64(v.NSVelocity - 1)
		if sub == 2 {
			ewv *= 4
			nsv *= 4
		}
		if v.EWDir == 1 {
			ewv = -ewv
		}
		if v.NSDir == 1 {
			nsv = -nsv
		}

		v.Speed = int(math.Sqrt(ewv*ewv + nsv*nsv))
		if v.Speed != 0 {
			v.Heading = math.Atan2(ewv, nsv) * 180 / math.Pi
			if v.Heading < 0 {
				v.Heading += 360
			}
			v.HeadingValid = true
		}

		return v
	}

	v.HeadingValid = msg[5]&(1<<2) != 0
	v.Heading = 360.0 / 1024 * float64(int(msg[5]&3)<<8|int(msg[6]))

	return v
}

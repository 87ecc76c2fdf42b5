package modes

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

type Unit uint8

const (
	Feet Unit = iota
	Meters
)

func (u Unit) String() string {
	if u == Meters {
		return "m"
	}
	return "ft"
}

// HexBytes marshals to upper case hexadecimal.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(strings.ToUpper(hex.EncodeToString(h))), nil
}

// Message is a decoded Mode S downlink message.
type Message struct {
	Raw      HexBytes `xml:",attr"`
	Type     byte     `xml:",attr"`
	Bits     int      `xml:",attr"`
	CRC      uint32   `xml:",attr"`
	CRCValid bool     `xml:",attr"`
	ErrorBit int      `xml:",attr"`
	Address  uint32   `xml:",attr"`

	Corrected bool `json:"PhaseCorrected" xml:"PhaseCorrected,attr"`

	// DF11, DF17
	Capability byte `json:",omitempty" xml:",attr,omitempty"`

	// DF4, DF5, DF20, DF21
	FlightStatus byte `json:",omitempty" xml:",attr,omitempty"`
	DR           byte `json:",omitempty" xml:",attr,omitempty"`
	UM           byte `json:",omitempty" xml:",attr,omitempty"`
	Squawk       int  `json:",omitempty" xml:",attr,omitempty"`

	// DF0, DF4, DF16, DF20 and DF17 airborne position.
	Altitude int  `json:",omitempty" xml:",attr,omitempty"`
	Unit     Unit `json:"-" xml:"-"`

	// DF17 extended squitter.
	METype   byte      `json:",omitempty" xml:",attr,omitempty"`
	MESub    byte      `json:",omitempty" xml:",attr,omitempty"`
	Ident    *Ident    `json:",omitempty"`
	Position *Position `json:",omitempty"`
	Velocity *Velocity `json:",omitempty"`
}

// Aircraft identification, ME types 1 to 4.
type Ident struct {
	Category byte   `xml:",attr"`
	Flight   string `xml:",attr"`
}

// Airborne position, ME types 9 to 18. Latitude and longitude are raw CPR
// encoded values.
type Position struct {
	Odd    bool `xml:",attr"`
	UTC    bool `xml:",attr"`
	RawLat int  `xml:",attr"`
	RawLon int  `xml:",attr"`
}

// Airborne velocity, ME type 19. Velocities are in knots, vertical rate in
// feet per minute.
type Velocity struct {
	EWDir        byte    `xml:",attr"`
	EWVelocity   int     `xml:",attr"`
	NSDir        byte    `xml:",attr"`
	NSVelocity   int     `xml:",attr"`
	VertSource   byte    `xml:",attr"`
	VertRate     int     `xml:",attr"`
	Speed        int     `xml:",attr"`
	Heading      float64 `xml:",attr"`
	HeadingValid bool    `xml:",attr"`
}

func (msg *Message) MsgType() string {
	return "DF" + strconv.Itoa(int(msg.Type))
}

func (msg *Message) DF() byte {
	return msg.Type
}

func (msg *Message) Addr() uint32 {
	return msg.Address
}

func (msg *Message) CRCOk() bool {
	return msg.CRCValid
}

func (msg *Message) Bytes() []byte {
	return msg.Raw
}

func (msg *Message) PhaseCorrected() bool {
	return msg.Corrected
}

func (msg *Message) SetPhaseCorrected(v bool) {
	msg.Corrected = v
}

// FixedBits returns the number of bit errors repaired while validating.
func (msg *Message) FixedBits() int {
	switch {
	case msg.ErrorBit < 0:
		return 0
	case msg.ErrorBit < LongMsgBits:
		return 1
	}
	return 2
}

// AVR formats the message in the raw format understood by most Mode S
// tools: *8D4840D6202CC371C32CE0576098;
func (msg *Message) AVR() string {
	text, _ := msg.Raw.MarshalText()
	return "*" + string(text) + ";"
}

func (msg *Message) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "{Raw:%02X Addr:%06X CRC:%06X CRCOk:%t", msg.Raw, msg.Address, msg.CRC, msg.CRCValid)
	if msg.ErrorBit != -1 {
		fmt.Fprintf(&b, " ErrorBit:%d", msg.ErrorBit)
	}
	if msg.Corrected {
		b.WriteString(" PhaseCorrected")
	}

	switch msg.Type {
	case 0, 16:
		fmt.Fprintf(&b, " Altitude:%d%s", msg.Altitude, msg.Unit)
	case 4, 20:
		fmt.Fprintf(&b, " FS:%d DR:%d UM:%d Altitude:%d%s", msg.FlightStatus, msg.DR, msg.UM, msg.Altitude, msg.Unit)
	case 5, 21:
		fmt.Fprintf(&b, " FS:%d DR:%d UM:%d Squawk:%04d", msg.FlightStatus, msg.DR, msg.UM, msg.Squawk)
	case 11:
		fmt.Fprintf(&b, " CA:%d", msg.Capability)
	case 17:
		fmt.Fprintf(&b, " CA:%d ME:%d/%d", msg.Capability, msg.METype, msg.MESub)
	}

	if msg.Ident != nil {
		fmt.Fprintf(&b, " Category:%d Flight:%q", msg.Ident.Category, msg.Ident.Flight)
	}
	if msg.Position != nil {
		fmt.Fprintf(&b, " Altitude:%d%s Odd:%t UTC:%t RawLat:%d RawLon:%d",
			msg.Altitude, msg.Unit, msg.Position.Odd, msg.Position.UTC, msg.Position.RawLat, msg.Position.RawLon,
		)
	}
	if v := msg.Velocity; v != nil {
		if msg.MESub == 1 || msg.MESub == 2 {
			fmt.Fprintf(&b, " Speed:%d Heading:%0.2f VertRate:%d", v.Speed, v.Heading, v.VertRate)
		} else {
			fmt.Fprintf(&b, " Heading:%0.2f HeadingValid:%t VertRate:%d", v.Heading, v.HeadingValid, v.VertRate)
		}
	}

	b.WriteString("}")

	return b.String()
}

func (msg *Message) Header() []string {
	return []string{"DF", "Addr", "CRC", "CRCOk", "ErrorBit", "PhaseCorrected", "Raw"}
}

func (msg *Message) Record() (r []string) {
	r = append(r, strconv.Itoa(int(msg.Type)))
	r = append(r, fmt.Sprintf("%06X", msg.Address))
	r = append(r, fmt.Sprintf("%06X", msg.CRC))
	r = append(r, strconv.FormatBool(msg.CRCValid))
	r = append(r, strconv.Itoa(msg.ErrorBit))
	r = append(r, strconv.FormatBool(msg.Corrected))
	r = append(r, fmt.Sprintf("%02X", []byte(msg.Raw)))

	return
}

package modes

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/bemasher/rtlmodes/parse"
)

const (
	identMsg    = "8D4840D6202CC371C32CE0576098"
	positionMsg = "8D40621D58C382D690C8AC2863A7"
	velocityMsg = "8D485020994409940838175B284F"
)

func mustDecode(t *testing.T, s string) []byte {
	t.Helper()

	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newParser(fix, aggressive bool) *Parser {
	return NewParser(parse.Options{FixErrors: fix, Aggressive: aggressive}).(*Parser)
}

func parseMsg(t *testing.T, p *Parser, data []byte, crcOnly bool) *Message {
	t.Helper()

	msg, err := p.Parse(data, 0, crcOnly)
	if err != nil {
		t.Fatalf("%+v\n", err)
	}
	return msg.(*Message)
}

func TestMessageBits(t *testing.T) {
	for df := byte(0); df < 32; df++ {
		expt := ShortMsgBits
		if (df >= 16 && df <= 22) || df >= 24 {
			expt = LongMsgBits
		}
		if recv := MessageBits(df); recv != expt {
			t.Fatalf("DF%d: expected %d got %d\n", df, expt, recv)
		}
	}
}

func TestRegistered(t *testing.T) {
	p, err := parse.NewParser("modes", parse.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*Parser); !ok {
		t.Fatalf("Expected *Parser got %T\n", p)
	}
}

func TestIdentification(t *testing.T) {
	msg := parseMsg(t, newParser(true, true), mustDecode(t, identMsg), false)

	if !msg.CRCOk() || msg.ErrorBit != -1 {
		t.Fatalf("Expected valid message: %s\n", msg)
	}
	if msg.DF() != 17 || msg.Addr() != 0x4840D6 {
		t.Fatalf("Expected DF17 from 4840D6: %s\n", msg)
	}
	if msg.Ident == nil || msg.Ident.Flight != "KLM1023" || msg.Ident.Category != 3 {
		t.Fatalf("Expected identification KLM1023: %+v\n", msg.Ident)
	}
	if msg.AVR() != "*"+identMsg+";" {
		t.Fatalf("Expected %q got %q\n", "*"+identMsg+";", msg.AVR())
	}
}

func TestPosition(t *testing.T) {
	msg := parseMsg(t, newParser(true, true), mustDecode(t, positionMsg), false)

	if !msg.CRCOk() || msg.METype != 11 {
		t.Fatalf("Expected valid position message: %s\n", msg)
	}
	if msg.Altitude != 38000 || msg.Unit != Feet {
		t.Fatalf("Expected 38000ft got %d%s\n", msg.Altitude, msg.Unit)
	}

	expt := Position{Odd: false, UTC: false, RawLat: 93000, RawLon: 51372}
	if msg.Position == nil || *msg.Position != expt {
		t.Fatalf("Expected %+v got %+v\n", expt, msg.Position)
	}
}

func TestVelocity(t *testing.T) {
	msg := parseMsg(t, newParser(true, true), mustDecode(t, velocityMsg), false)

	v := msg.Velocity
	if v == nil {
		t.Fatalf("Expected velocity: %s\n", msg)
	}
	if v.Speed != 159 {
		t.Fatalf("Expected speed 159 got %d\n", v.Speed)
	}
	if math.Abs(v.Heading-182.88) > 0.01 {
		t.Fatalf("Expected heading 182.88 got %0.2f\n", v.Heading)
	}
	if v.VertRate != -832 {
		t.Fatalf("Expected vertical rate -832 got %d\n", v.VertRate)
	}
}

func TestSquawkAndAltitude(t *testing.T) {
	p := newParser(true, true)

	msg := parseMsg(t, p, mustDecode(t, "2A00516D492B80"), false)
	if msg.Squawk != 356 {
		t.Fatalf("Expected squawk 0356 got %04d\n", msg.Squawk)
	}

	msg = parseMsg(t, p, mustDecode(t, "A02014B400000000000000F9D514"), false)
	if msg.Altitude != 32300 {
		t.Fatalf("Expected 32300ft got %d\n", msg.Altitude)
	}
}

func TestCRCOnly(t *testing.T) {
	msg := parseMsg(t, newParser(true, true), mustDecode(t, identMsg), true)

	if !msg.CRCOk() || msg.Addr() != 0x4840D6 {
		t.Fatalf("Expected valid message from 4840D6: %s\n", msg)
	}
	if msg.Ident != nil {
		t.Fatalf("Expected no field extraction: %+v\n", msg.Ident)
	}
}

func TestFixSingleBit(t *testing.T) {
	orig := mustDecode(t, identMsg)

	// Start past the downlink format, flipping it changes the message length.
	for bit := 5; bit < LongMsgBits; bit += 7 {
		data := append([]byte(nil), orig...)
		data[bit>>3] ^= 0x80 >> uint(bit&7)
		damaged := append([]byte(nil), data...)

		if msg := parseMsg(t, newParser(false, false), data, true); msg.CRCOk() {
			t.Fatalf("bit %d: expected invalid message without error fixing\n", bit)
		}

		msg := parseMsg(t, newParser(true, false), data, true)
		if !msg.CRCOk() || msg.ErrorBit != bit {
			t.Fatalf("bit %d: expected fixed message: %s\n", bit, msg)
		}
		if !bytes.Equal(msg.Bytes(), orig) {
			t.Fatalf("bit %d: expected %02X got %02X\n", bit, orig, msg.Bytes())
		}
		if !bytes.Equal(data, damaged) {
			t.Fatalf("bit %d: input buffer modified\n", bit)
		}
	}
}

func TestFixTwoBits(t *testing.T) {
	orig := mustDecode(t, identMsg)

	data := append([]byte(nil), orig...)
	data[2] ^= 0x10
	data[9] ^= 0x01

	if msg := parseMsg(t, newParser(true, false), data, true); msg.CRCOk() {
		t.Fatalf("Expected two bit errors to need aggressive mode: %s\n", msg)
	}

	msg := parseMsg(t, newParser(true, true), data, true)
	if !msg.CRCOk() || msg.ErrorBit < LongMsgBits {
		t.Fatalf("Expected two bit fix: %s\n", msg)
	}
	if !bytes.Equal(msg.Bytes(), orig) {
		t.Fatalf("Expected %02X got %02X\n", orig, msg.Bytes())
	}
}

// Address/parity messages are only trusted once the address was heard in a
// message carrying its own parity.
func TestAddressParity(t *testing.T) {
	p := newParser(true, true)

	df5 := []byte{0x28, 0x00, 0x1C, 0x35, 0, 0, 0}
	parity := p.Checksum(df5[:4]) ^ 0x4840D6
	df5[4], df5[5], df5[6] = byte(parity>>16), byte(parity>>8), byte(parity)

	if msg := parseMsg(t, p, df5, false); msg.CRCOk() {
		t.Fatalf("Expected unknown address to be rejected: %s\n", msg)
	}

	parseMsg(t, p, mustDecode(t, identMsg), true)

	msg := parseMsg(t, p, df5, false)
	if !msg.CRCOk() || msg.Addr() != 0x4840D6 {
		t.Fatalf("Expected address 4840D6 to be recovered: %s\n", msg)
	}
}

func TestShortBuffer(t *testing.T) {
	p := newParser(true, true)

	_, err := p.Parse(mustDecode(t, identMsg)[:7], 0, false)
	if errors.Cause(err) != ErrShortMessage {
		t.Fatalf("Expected ErrShortMessage got %+v\n", err)
	}

	if _, err := p.Parse(nil, 0, false); errors.Cause(err) != ErrShortMessage {
		t.Fatalf("Expected ErrShortMessage got %+v\n", err)
	}
}

func TestTrailingBytesIgnored(t *testing.T) {
	data := append(mustDecode(t, "2A00516D492B80"), 0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0)

	msg := parseMsg(t, newParser(true, true), data, false)
	if msg.Bits != ShortMsgBits || len(msg.Bytes()) != ShortMsgBytes {
		t.Fatalf("Expected short message got %d bits\n", msg.Bits)
	}
}

func TestJSON(t *testing.T) {
	msg := parseMsg(t, newParser(true, true), mustDecode(t, identMsg), false)

	buf, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var v map[string]interface{}
	if err := json.Unmarshal(buf, &v); err != nil {
		t.Fatal(err)
	}
	if v["Raw"] != identMsg {
		t.Fatalf("Expected Raw %q got %v\n", identMsg, v["Raw"])
	}
	if _, ok := v["Velocity"]; ok {
		t.Fatalf("Expected empty velocity to be omitted: %s\n", buf)
	}
}

func BenchmarkParse(b *testing.B) {
	p := newParser(true, true)
	data, _ := hex.DecodeString(identMsg)

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		p.Parse(data, 0, false)
	}
}

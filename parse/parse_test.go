package parse

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bemasher/rtlmodes/csv"
)

type testMessage struct {
	df   byte
	addr uint32
}

func (msg testMessage) Record() []string       { return []string{"rec"} }
func (msg testMessage) MsgType() string        { return "test" }
func (msg testMessage) DF() byte               { return msg.df }
func (msg testMessage) Addr() uint32           { return msg.addr }
func (msg testMessage) CRCOk() bool            { return true }
func (msg testMessage) Bytes() []byte          { return nil }
func (msg testMessage) PhaseCorrected() bool   { return false }
func (msg testMessage) SetPhaseCorrected(bool) {}
func (msg testMessage) String() string         { return "msg" }

type headerMessage struct {
	testMessage
}

func (msg headerMessage) Header() []string { return []string{"Field"} }

type testParser struct{}

func (testParser) Parse([]byte, int, bool) (Message, error) { return testMessage{}, nil }
func (testParser) MessageBits(byte) int                     { return 56 }

func TestRegistry(t *testing.T) {
	Register("test", func(Options) Parser { return testParser{} })

	p, err := NewParser("test", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(testParser); !ok {
		t.Fatalf("Expected testParser got %T\n", p)
	}

	if _, err := NewParser("missing", Options{}); err == nil {
		t.Fatal("Expected error for unregistered parser")
	}

	found := false
	for _, name := range Parsers() {
		found = found || name == "test"
	}
	if !found {
		t.Fatalf("Expected test in %v\n", Parsers())
	}

	defer func() {
		if recover() == nil {
			t.Fatal("Expected duplicate registration to panic")
		}
	}()
	Register("test", func(Options) Parser { return testParser{} })
}

func TestLogMessage(t *testing.T) {
	ts := time.Date(2015, 1, 2, 3, 4, 5, 6000000, time.UTC)

	msg := LogMessage{Time: ts, Offset: 42, Type: "test", Message: testMessage{}}
	if s := msg.String(); s != "{Time:2015-01-02T03:04:05.006 Offset:42 test:msg}" {
		t.Fatalf("Unexpected string: %q\n", s)
	}
	if s := msg.StringNoOffset(); s != "{Time:2015-01-02T03:04:05.006 test:msg}" {
		t.Fatalf("Unexpected string: %q\n", s)
	}
	if h := msg.Header(); h != nil {
		t.Fatalf("Expected no header got %v\n", h)
	}

	msg.Message = headerMessage{}
	if h := strings.Join(msg.Header(), ","); h != "Time,Offset,Field" {
		t.Fatalf("Unexpected header: %q\n", h)
	}

	var buf bytes.Buffer
	if err := csv.NewEncoder(&buf, true).Encode(msg); err != nil {
		t.Fatal(err)
	}

	expt := "Time,Offset,Field\n2015-01-02T03:04:05.006Z,42,rec\n"
	if buf.String() != expt {
		t.Fatalf("Expected %q got %q\n", expt, buf.String())
	}
}

type dfFilter byte

func (f dfFilter) Filter(msg Message) bool { return msg.DF() == byte(f) }

type addrFilter uint32

func (f addrFilter) Filter(msg Message) bool { return msg.Addr() == uint32(f) }

func TestFilterChain(t *testing.T) {
	var fc FilterChain

	if !fc.Match(testMessage{}) {
		t.Fatal("Expected empty chain to match")
	}

	fc.Add(dfFilter(17))
	fc.Add(addrFilter(0x4840D6))

	if !fc.Match(testMessage{df: 17, addr: 0x4840D6}) {
		t.Fatal("Expected message to match")
	}
	if fc.Match(testMessage{df: 11, addr: 0x4840D6}) {
		t.Fatal("Expected DF11 to be filtered")
	}
	if fc.Match(testMessage{df: 17, addr: 0x40621D}) {
		t.Fatal("Expected address to be filtered")
	}
}

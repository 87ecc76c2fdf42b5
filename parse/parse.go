package parse

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bemasher/rtlmodes/csv"
)

const (
	TimeFormat = "2006-01-02T15:04:05.000"
)

var (
	parserMutex sync.Mutex
	parsers     = make(map[string]NewParserFunc)
)

// Options shared by all parsers.
type Options struct {
	// Attempt to repair single bit errors in messages carrying their own parity.
	FixErrors bool
	// Enables more expensive repairs, such as two bit errors.
	Aggressive bool
	// How long a recently seen address is trusted for address/parity recovery.
	AddrTTL time.Duration
}

type NewParserFunc func(opts Options) Parser

// Given a name and a parser, register a parser for use. Later used by
// underscore importing each parser package:
//
//	import _ "github.com/bemasher/rtlmodes/modes"
func Register(name string, parserFn NewParserFunc) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	if parserFn == nil {
		panic("parser: new parser func is nil")
	}
	if _, dup := parsers[name]; dup {
		panic(fmt.Sprintf("parser: parser already registered (%s)", name))
	}
	parsers[name] = parserFn
}

func NewParser(name string, opts Options) (Parser, error) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	if parserFn, exists := parsers[name]; exists {
		return parserFn(opts), nil
	}
	return nil, fmt.Errorf("invalid message type: %q", name)
}

// Parsers returns the names of all registered parsers.
func Parsers() (names []string) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)

	return
}

// A Parser turns demodulated bytes into messages.
type Parser interface {
	// Parse decodes the first bits of data. When crcOnly is set only the
	// fields required to validate the message are extracted. Implementations
	// must not modify data.
	Parse(data []byte, bits int, crcOnly bool) (Message, error)

	// MessageBits returns the length in bits of messages of the given
	// downlink format.
	MessageBits(df byte) int
}

type Message interface {
	csv.Recorder
	MsgType() string
	DF() byte
	Addr() uint32
	CRCOk() bool
	Bytes() []byte

	PhaseCorrected() bool
	SetPhaseCorrected(bool)
}

// A LogMessage associates a message with a point in time and a sample index
// into the received stream.
type LogMessage struct {
	Time   time.Time `xml:",attr"`
	Offset int64     `xml:",attr"`
	Type   string    `xml:",attr"`
	Message
}

func (msg LogMessage) String() string {
	return fmt.Sprintf("{Time:%s Offset:%d %s:%s}",
		msg.Time.Format(TimeFormat), msg.Offset, msg.MsgType(), msg.Message,
	)
}

func (msg LogMessage) StringNoOffset() string {
	return fmt.Sprintf("{Time:%s %s:%s}", msg.Time.Format(TimeFormat), msg.MsgType(), msg.Message)
}

// Header names the fields of Record if the underlying message names its own.
func (msg LogMessage) Header() []string {
	h, ok := msg.Message.(csv.Headerer)
	if !ok {
		return nil
	}
	return append([]string{"Time", "Offset"}, h.Header()...)
}

func (msg LogMessage) Record() (r []string) {
	r = append(r, msg.Time.Format(time.RFC3339Nano))
	r = append(r, strconv.FormatInt(msg.Offset, 10))
	r = append(r, msg.Message.Record()...)
	return r
}

// A FilterChain takes a list of filters and applies them iteratively to
// messages sent through the chain.
type FilterChain []MessageFilter

func (fc *FilterChain) Add(filter MessageFilter) {
	*fc = append(*fc, filter)
}

func (fc FilterChain) Match(msg Message) bool {
	if len(fc) == 0 {
		return true
	}

	for _, filter := range fc {
		if !filter.Filter(msg) {
			return false
		}
	}

	return true
}

// A Fixer is a message which may have had bit errors repaired by its parser.
type Fixer interface {
	FixedBits() int
}

type MessageFilter interface {
	Filter(Message) bool
}

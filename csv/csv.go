package csv

import (
	"encoding/csv"
	"io"

	"golang.org/x/xerrors"
)

// Produces a list of fields making up a record.
type Recorder interface {
	Record() []string
}

// A Headerer names the fields produced by Record.
type Headerer interface {
	Header() []string
}

// An Encoder writes CSV records to an output stream.
type Encoder struct {
	w *csv.Writer

	header bool
}

// NewEncoder returns a new encoder that writes to w. If header is true the
// first record encoded is preceded by its Header, when it provides one.
func NewEncoder(w io.Writer, header bool) *Encoder {
	return &Encoder{w: csv.NewWriter(w), header: header}
}

// Encode writes a CSV record representing v to the stream followed by a
// newline character. Value given must implement the Recorder interface.
func (enc *Encoder) Encode(v interface{}) (err error) {
	defer func() {
		if r, ok := recover().(error); ok {
			err = xerrors.Errorf("recovered: %w", r)
		}
	}()

	r := v.(Recorder)

	if enc.header {
		enc.header = false
		if h, ok := v.(Headerer); ok && len(h.Header()) > 0 {
			if err = enc.w.Write(h.Header()); err != nil {
				return xerrors.Errorf("header: %w", err)
			}
		}
	}

	if err = enc.w.Write(r.Record()); err != nil {
		return xerrors.Errorf("record: %w", err)
	}
	enc.w.Flush()

	return enc.w.Error()
}

package main

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const zstdExt = ".zst"

// zstdReadCloser closes both the decoder and the underlying file.
type zstdReadCloser struct {
	*zstd.Decoder
	f io.Closer
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}

// zstdWriteCloser flushes the encoder before closing the underlying file.
type zstdWriteCloser struct {
	*zstd.Encoder
	f io.Closer
}

func (z zstdWriteCloser) Close() error {
	if err := z.Encoder.Close(); err != nil {
		z.f.Close()
		return errors.Wrap(err, "close zstd encoder")
	}
	return z.f.Close()
}

// OpenSampleFile opens a file of raw I/Q samples for reading. A name of "-"
// reads from stdin, names ending in .zst are decompressed.
func OpenSampleFile(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open sample file")
	}

	if !strings.HasSuffix(name, zstdExt) {
		return f, nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "create zstd decoder")
	}

	return zstdReadCloser{dec, f}, nil
}

// CreateSampleFile creates a file to dump raw I/Q samples to. Names ending
// in .zst are compressed.
func CreateSampleFile(name string) (io.WriteCloser, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrap(err, "create sample file")
	}

	if !strings.HasSuffix(name, zstdExt) {
		return f, nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "create zstd encoder")
	}

	return zstdWriteCloser{enc, f}, nil
}

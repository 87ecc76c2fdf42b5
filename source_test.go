package main

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestSampleFileRoundTrip(t *testing.T) {
	samples := make([]byte, 1<<16)
	rand.New(rand.NewSource(1)).Read(samples)

	for _, name := range []string{"samples.bin", "samples.bin.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			w, err := CreateSampleFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := w.Write(samples); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}

			r, err := OpenSampleFile(path)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, samples) {
				t.Fatalf("read %d bytes, want %d identical bytes", len(got), len(samples))
			}
		})
	}
}

func TestSampleFileCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeros.zst")

	w, err := CreateSampleFile(path)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(make([]byte, 1<<16))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() >= 1<<16 {
		t.Fatalf("compressed file is %d bytes", fi.Size())
	}
}

func TestOpenSampleFileMissing(t *testing.T) {
	if _, err := OpenSampleFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error opening missing file")
	}
}

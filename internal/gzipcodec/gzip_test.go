package gzipcodec

import (
	"bytes"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	input := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 500))
	compressed, err := Compress(input, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) == 0 {
		t.Fatal("empty compressed output")
	}
	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, input) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(decompressed), len(input))
	}
}

func TestRoundTripLargerThanScratch(t *testing.T) {
	input := bytes.Repeat([]byte{'a', 'b', 'c', 'd'}, scratchSize) // > 16KiB
	compressed, err := Compress(input, 9)
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, input) {
		t.Error("round trip mismatch on multi-chunk input")
	}
}

func TestDecompressInvalidData(t *testing.T) {
	_, err := Decompress([]byte("not a gzip stream"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCompressEmptyInput(t *testing.T) {
	compressed, err := Compress(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if len(decompressed) != 0 {
		t.Errorf("got %d bytes, want 0", len(decompressed))
	}
}

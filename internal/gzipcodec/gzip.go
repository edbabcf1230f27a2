// Package gzipcodec implements a streamed gzip deflate/inflate codec
// built on klauspost/compress/gzip.
package gzipcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// ErrDecode wraps data, dictionary, or memory errors surfaced while
// inflating a stream.
var ErrDecode = errors.New("gzipcodec: decode error")

// scratchSize is the fixed-size output buffer used while draining the
// compress/decompress streams.
const scratchSize = 16 * 1024

// Compress deflates input at the given level. A level of zero selects the
// library default (gzip.DefaultCompression). Compression is assumed to
// operate on trusted input and never surfaces a data error.
func Compress(input []byte, level int) ([]byte, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var out bytes.Buffer
	w, err := gzip.NewWriterLevel(&out, level)
	if err != nil {
		return nil, fmt.Errorf("gzipcodec: invalid level %d: %w", level, err)
	}

	scratch := make([]byte, scratchSize)
	reader := bytes.NewReader(input)
	for {
		n, rerr := reader.Read(scratch)
		if n > 0 {
			if _, werr := w.Write(scratch[:n]); werr != nil {
				return nil, fmt.Errorf("gzipcodec: compress: %w", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("gzipcodec: compress: %w", rerr)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzipcodec: compress: %w", err)
	}
	return out.Bytes(), nil
}

// Decompress inflates a gzip-wrapped stream (window bits include the
// gzip wrapper; raw deflate is not accepted). Data, dictionary, and
// memory errors surface as ErrDecode.
func Decompress(input []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer r.Close()

	var out bytes.Buffer
	scratch := make([]byte, scratchSize)
	for {
		n, rerr := r.Read(scratch)
		if n > 0 {
			out.Write(scratch[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, rerr)
		}
	}
	return out.Bytes(), nil
}

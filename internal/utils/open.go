// Package utils holds small helpers shared by source plugins.
package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// OpenInput opens path for reading, "-" meaning stdin. Files ending in .gz,
// .zst or .lz4 are decompressed on the fly.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("input path is empty")
	}

	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, err
		}
	}

	r, err := Decompress(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Decompress wraps rc according to the extension of name. Closing the result
// closes rc.
func Decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(bufio.NewReader(rc))
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zstdCloser{zr}, rc}}, nil
	case strings.HasSuffix(lower, ".lz4"):
		return &stackedCloser{Reader: lz4.NewReader(rc), closers: []io.Closer{rc}}, nil
	default:
		return rc, nil
	}
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

package storage

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// compressPayload gzips a JSON document before it is stored. Compression is
// mandatory for every cache row; the typical ratio on LLM JSON output is
// 4x-5x.
func compressPayload(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to gzip payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize gzip payload: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressPayload reverses compressPayload, returning the original JSON
// bytes.
func decompressPayload(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip reader: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return out, nil
}

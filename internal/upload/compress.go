package upload

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// compress gzips the payload. The caller decides whether the result is
// actually worth storing (see flush).
func compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to compress chunk: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress chunk: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates a gzip-compressed chunk payload. Used when serving
// content that was stored compressed.
func Decompress(payload []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chunk: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chunk: %w", err)
	}

	return raw, nil
}

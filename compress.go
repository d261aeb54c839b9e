package stylus

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliCompressionLevel is the fixed, maximum-effort compression level used
// for all Stylus contracts. The on-chain decompressor accepts any valid
// brotli stream, but byte-exact verification of a historical deployment
// requires rebuilding with the same codec version and level.
const BrotliCompressionLevel = brotli.BestCompression

// CompressWasm compresses a normalized module for on-chain storage.
func CompressWasm(wasm []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, BrotliCompressionLevel)
	if _, err := w.Write(wasm); err != nil {
		return nil, &CompressionError{Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &CompressionError{Err: err}
	}
	return buf.Bytes(), nil
}

// DecompressWasm reverses CompressWasm. Used when inspecting deployed code.
func DecompressWasm(data []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, &CompressionError{Err: err}
	}
	return out, nil
}

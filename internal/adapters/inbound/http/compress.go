package http

import (
	"io"

	"github.com/andybalholm/brotli"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// newCompressor encodes JSON responses with brotli when the client accepts
// it and falls back to chi's gzip and deflate encoders.
func newCompressor(level int) *chimiddleware.Compressor {
	compressor := chimiddleware.NewCompressor(level, "application/json")
	compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})

	return compressor
}

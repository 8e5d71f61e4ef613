// Package decode holds the two decode strategies behind one capability:
// direct raster decoding for JPEG/PNG byte streams, and an optional
// transcoding decoder for compressed-texture containers. Which strategy a
// request uses is decided by its MimeTag, not by sniffing bytes.
package decode

import (
	"context"

	"github.com/texloader/texloader/pkg/texture"
)

// Options carries per-decode knobs shared by both strategies.
type Options struct {
	// LinearColorSpace asks the decoder for linear rather than sRGB output.
	// The raster decoder ignores it (8-bit sRGB passthrough); transcoders
	// honor it when the target format distinguishes the two.
	LinearColorSpace bool
}

// BytesDecoder decodes an in-memory payload, typically read back from the
// cache store.
type BytesDecoder interface {
	DecodeBytes(ctx context.Context, data []byte, opts Options) (*texture.Image, error)
}

// URLDecoder fuses fetch and decode for implementations whose underlying
// library streams and decodes together. The raw container bytes are returned
// alongside the image so the caller can persist them for future cache hits.
type URLDecoder interface {
	DecodeURL(ctx context.Context, url string, opts Options) (*texture.Image, []byte, error)
}

// Transcoder is the optional compressed-texture capability. Whether an
// implementation is registered is a deployment decision; the orchestrator
// treats a nil Transcoder as the capability being absent and fails those
// requests fast.
type Transcoder interface {
	BytesDecoder
	URLDecoder
}

package decode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"

	// Register the raster codecs with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	"github.com/texloader/texloader/pkg/texture"
)

// Raster decodes JPEG and PNG byte streams into tightly packed RGBA pixels.
// Raster output is never flipped; orientation flags only matter for
// transcoded container formats.
type Raster struct{}

// NewRaster returns the raster decoder.
func NewRaster() *Raster {
	return &Raster{}
}

// DecodeBytes decodes a JPEG or PNG payload. Well-formed bytes always
// succeed; anything else returns the codec's error.
func (r *Raster) DecodeBytes(_ context.Context, data []byte, _ Options) (*texture.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding raster image: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewNRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	return &texture.Image{
		Pixels: rgba.Pix,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

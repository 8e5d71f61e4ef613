package texture

// Orientation indicates whether decoded pixel data is flipped along X/Y
// relative to a top-left origin. Raster decoders always produce the zero
// value; transcoders read it from the container metadata.
type Orientation struct {
	XFlipped bool
	YFlipped bool
}

// Image is the result of a successful decode: a pixel buffer plus its
// dimensions and orientation. The caller owns the final lifetime.
type Image struct {
	// Pixels holds the texel data. Raster decodes produce tightly packed
	// RGBA, 4 bytes per pixel; transcoded formats produce whatever layout
	// the transcoder emits.
	Pixels []byte

	Width  int
	Height int

	Orientation Orientation
}

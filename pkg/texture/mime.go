package texture

import "path"

// MimeTag classifies a resource identifier by its file extension and drives
// both the decode strategy and the persistence path.
type MimeTag string

const (
	MimeRasterJPEG      MimeTag = "raster-jpeg"
	MimeRasterPNG       MimeTag = "raster-png"
	MimeCompressedKTX   MimeTag = "compressed-ktx"
	MimeCompressedBasis MimeTag = "compressed-basis"
	MimeUnsupported     MimeTag = "unsupported"
)

// Classify derives the MimeTag from the identifier's extension. The match is
// case-sensitive on purpose: ".PNG" is not ".png" here, mirroring how the
// routing table is specified. Unknown or missing extensions classify as
// unsupported.
func Classify(identifier string) MimeTag {
	switch path.Ext(identifier) {
	case ".jpg", ".jpeg":
		return MimeRasterJPEG
	case ".png":
		return MimeRasterPNG
	case ".ktx", ".ktx2":
		return MimeCompressedKTX
	case ".basis":
		return MimeCompressedBasis
	default:
		return MimeUnsupported
	}
}

// IsRaster reports whether the tag routes to the raster decoder.
func (t MimeTag) IsRaster() bool {
	return t == MimeRasterJPEG || t == MimeRasterPNG
}

// IsCompressed reports whether the tag routes to the transcoding decoder.
func (t MimeTag) IsCompressed() bool {
	return t == MimeCompressedKTX || t == MimeCompressedBasis
}

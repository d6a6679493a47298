// Package imagecheck validates uploaded target images.
package imagecheck

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/vbonduro/interop/internal/domain"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels bounds width*height of an accepted image. Decoding allocates a
// buffer proportional to the pixel count, whatever the payload size.
const MaxPixels = 50_000_000

// Format is an accepted image encoding.
type Format string

const (
	JPEG Format = "JPEG"
	PNG  Format = "PNG"
)

// Ext is the suffix used when naming stored blobs, e.g. "12.JPEG".
func (f Format) Ext() string { return string(f) }

func (f Format) MIME() string {
	switch f {
	case PNG:
		return "image/png"
	default:
		return "image/jpeg"
	}
}

// Detect decodes data and returns its format. Bytes that do not decode, and
// images in any format other than JPEG or PNG, yield domain.ErrInvalidValue.
// Decoders for other common formats are registered so they can be reported
// by name.
func Detect(data []byte) (Format, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", domain.Invalid("image", "cannot identify image file: %v", err)
	}

	format := Format(strings.ToUpper(name))
	if format != JPEG && format != PNG {
		return "", domain.Invalid("image", "Invalid image format %s, only JPEG and PNG allowed", format)
	}

	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return "", domain.Invalid("image", "Image dimensions %dx%d too large, at most %d pixels allowed", cfg.Width, cfg.Height, MaxPixels)
	}

	// DecodeConfig only reads the header; a full decode catches truncated data.
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", domain.Invalid("image", "image file is truncated or corrupt: %v", err)
	}
	return format, nil
}

package content

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
)

// PixelData is the raw image structure carried by the image-data and
// icon_data hints: width, height, rowstride, has-alpha, bits per sample,
// channels and the pixel bytes.
type PixelData struct {
	Width         int32
	Height        int32
	Rowstride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// MaxPixelDimension bounds the width and height of a pixel hint.
const MaxPixelDimension = 4096

// ErrInvalidPixelData is wrapped by every validation failure.
var ErrInvalidPixelData = errors.New("invalid pixel data")

// Validate checks the structure against the constraints of the hint.
func (p PixelData) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: non-positive size %dx%d", ErrInvalidPixelData, p.Width, p.Height)
	case p.Width > MaxPixelDimension || p.Height > MaxPixelDimension:
		return fmt.Errorf("%w: size %dx%d exceeds %d", ErrInvalidPixelData, p.Width, p.Height, MaxPixelDimension)
	case p.HasAlpha && p.Channels != 4:
		return fmt.Errorf("%w: has_alpha with %d channels", ErrInvalidPixelData, p.Channels)
	case !p.HasAlpha && p.Channels != 3:
		return fmt.Errorf("%w: no alpha with %d channels", ErrInvalidPixelData, p.Channels)
	case p.BitsPerSample != 8:
		return fmt.Errorf("%w: %d bits per sample", ErrInvalidPixelData, p.BitsPerSample)
	case int64(p.Rowstride) != int64(p.Width)*int64(p.Channels):
		return fmt.Errorf("%w: rowstride %d for width %d", ErrInvalidPixelData, p.Rowstride, p.Width)
	case int64(len(p.Data)) != int64(p.Rowstride)*int64(p.Height):
		return fmt.Errorf("%w: %d bytes for %d rows of %d", ErrInvalidPixelData, len(p.Data), p.Height, p.Rowstride)
	}
	return nil
}

// PNG validates the pixels and encodes them as PNG.
func (p PixelData) PNG() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, int(p.Width), int(p.Height)))
	ch := int(p.Channels)
	for y := 0; y < int(p.Height); y++ {
		row := p.Data[y*int(p.Rowstride):]
		for x := 0; x < int(p.Width); x++ {
			src := row[x*ch:]
			dst := img.Pix[y*img.Stride+x*4:]
			dst[0], dst[1], dst[2] = src[0], src[1], src[2]
			if p.HasAlpha {
				dst[3] = src[3]
			} else {
				dst[3] = 0xff
			}
		}
	}
	return encodePNG(img)
}

// pixelDataFromHint accepts the decoded form of a (iiibiiay) struct as
// delivered by the bus, or a PixelData value.
func pixelDataFromHint(v any) (PixelData, bool) {
	switch t := v.(type) {
	case PixelData:
		return t, true
	case *PixelData:
		if t == nil {
			return PixelData{}, false
		}
		return *t, true
	case []any:
		if len(t) != 7 {
			return PixelData{}, false
		}
		var p PixelData
		var ok [7]bool
		p.Width, ok[0] = t[0].(int32)
		p.Height, ok[1] = t[1].(int32)
		p.Rowstride, ok[2] = t[2].(int32)
		p.HasAlpha, ok[3] = t[3].(bool)
		p.BitsPerSample, ok[4] = t[4].(int32)
		p.Channels, ok[5] = t[5].(int32)
		p.Data, ok[6] = t[6].([]byte)
		for _, o := range ok {
			if !o {
				return PixelData{}, false
			}
		}
		return p, true
	}
	return PixelData{}, false
}

// NormalizePNG decodes an image in any registered format and re-encodes it
// as PNG so that every attachment has one encoding.
func NormalizePNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode     = errors.New("decode image")
	ErrEmptyImage = errors.New("image has no pixels")
	ErrEncode     = errors.New("encode jpeg")
)

// Preview describes a decoded original, enough for a front end to render
// its dimensions next to the compressed result.
type Preview struct {
	Format string
	Width  int
	Height int
}

// Result is the outcome of one Compress call. Exactly one of Bytes and Err
// is set.
type Result struct {
	Bytes   []byte
	SizeKB  float64
	Quality int
	Err     error
}

// Encoder re-encodes raster images as JPEG. It holds no mutable state and
// is safe for concurrent use.
type Encoder struct {
	// Background replaces transparent pixels, since JPEG has no alpha.
	Background color.Color
}

func NewEncoder() *Encoder {
	return &Encoder{Background: color.White}
}

// Decode decodes src once and reports its format and dimensions.
func (e *Encoder) Decode(ctx context.Context, src []byte) (Preview, error) {
	if err := ctx.Err(); err != nil {
		return Preview{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return Preview{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Preview{}, fmt.Errorf("%w: %dx%d", ErrEmptyImage, cfg.Width, cfg.Height)
	}
	return Preview{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Compress decodes src and re-encodes it as JPEG at qualityPercent (1-100),
// keeping the original pixel dimensions. Failures are reported in
// Result.Err rather than returned.
func (e *Encoder) Compress(ctx context.Context, src []byte, qualityPercent int) Result {
	res := Result{Quality: qualityPercent}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrDecode, err)
		return res
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		res.Err = fmt.Errorf("%w: %dx%d", ErrEmptyImage, b.Dx(), b.Dy())
		return res
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	bg := e.Background
	if bg == nil {
		bg = color.White
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: NativeQuality(qualityPercent)}); err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrEncode, err)
		return res
	}

	res.Bytes = out.Bytes()
	res.SizeKB = SizeKB(res.Bytes)
	return res
}

// jpegQualityScale is the top of image/jpeg's quality range.
const jpegQualityScale = 100

// NativeQuality maps a 1-100 percentage onto the codec's quality scale. The
// percentage is treated as a 0.0-1.0 ratio.
func NativeQuality(qualityPercent int) int {
	ratio := float64(qualityPercent) / 100
	q := int(math.Round(ratio * jpegQualityScale))
	if q < 1 {
		q = 1
	}
	if q > jpegQualityScale {
		q = jpegQualityScale
	}
	return q
}

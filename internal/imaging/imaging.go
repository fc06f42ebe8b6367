// Package imaging checks uploaded product images against the catalog rules
// and converts accepted ones into the canonical square PNG that is stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MinWidth  = 400
	MinHeight = 400
	// Images larger than this are accepted but the admin is told they will be cropped.
	MaxWidth  = 700
	MaxHeight = 700

	CanonicalSize = 800

	MaxImageSize int64 = 3 * 1024 * 1024
	// A compressed upload well under MaxImageSize can still decode to a huge
	// bitmap; the pixel count is checked from the header before decoding.
	MaxPixels int64 = 40_000_000
)

var (
	ErrImageTooLarge     = errors.New("image size must not exceed 3 MB")
	ErrImageTooSmall     = errors.New("image resolution is below the minimum")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooManyPixels     = errors.New("image resolution exceeds the maximum")
)

type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

func (i Info) ExceedsMax() bool {
	return i.Width > MaxWidth || i.Height > MaxHeight
}

type NormalizedImage struct {
	Data        []byte
	Width       int
	Height      int
	ContentType string
	Filename    string
	Source      Info
}

// Validate checks the byte size first, so an oversized upload is reported as
// ErrImageTooLarge whatever its resolution. declaredSize is the size the
// client announced; the larger of it and len(data) is used.
func Validate(data []byte, declaredSize int64) (Info, error) {
	size := declaredSize
	if n := int64(len(data)); n > size {
		size = n
	}
	if size > MaxImageSize {
		return Info{}, ErrImageTooLarge
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	info := Info{Width: cfg.Width, Height: cfg.Height, Format: format}
	if cfg.Width < MinWidth || cfg.Height < MinHeight {
		return info, ErrImageTooSmall
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return info, ErrTooManyPixels
	}
	return info, nil
}

// Normalize validates the upload, flattens transparency onto white, crops the
// centre square and scales it to CanonicalSize x CanonicalSize PNG.
func Normalize(data []byte, declaredSize int64, filename string) (*NormalizedImage, error) {
	info, err := Validate(data, declaredSize)
	if err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	origin := image.Pt(b.Min.X+(b.Dx()-side)/2, b.Min.Y+(b.Dy()-side)/2)

	flat := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, origin, draw.Over)

	dst := image.NewRGBA(image.Rect(0, 0, CanonicalSize, CanonicalSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), flat, flat.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return &NormalizedImage{
		Data:        buf.Bytes(),
		Width:       CanonicalSize,
		Height:      CanonicalSize,
		ContentType: "image/png",
		Filename:    PNGName(filename),
		Source:      info,
	}, nil
}

// PNGName keeps the base name of an upload, reduced to a safe slug, with a
// .png extension.
func PNGName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var sb strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-', r == '_':
			sb.WriteRune(r)
		case r == ' ' || r == '.':
			sb.WriteRune('-')
		}
	}
	name := strings.Trim(sb.String(), "-")
	if name == "" {
		name = "image"
	}
	return name + ".png"
}

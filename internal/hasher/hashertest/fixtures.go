// Package hashertest builds synthetic images with known fingerprints for tests.
package hashertest

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
)

const (
	Dark   = 30
	Bright = 220
)

// Pattern is an 8x8 block mask whose every pair of rows holds eight bright
// blocks, so each band's median sits between Dark and Bright.
var Pattern = []string{
	"10110010",
	"01101100",
	"11100001",
	"00011110",
	"10011001",
	"01010101",
	"11001010",
	"00110101",
}

// PatternHash is the 8-bit fingerprint of Pattern.
const PatternHash = "b26ce11e9955ca35"

// InvertedHash is the 8-bit fingerprint of Invert(Pattern).
const InvertedHash = "4d931ee166aa35ca"

// Invert swaps bright and dark blocks of a mask.
func Invert(mask []string) []string {
	out := make([]string, len(mask))
	for i, row := range mask {
		b := []byte(row)
		for j := range b {
			if b[j] == '1' {
				b[j] = '0'
			} else {
				b[j] = '1'
			}
		}
		out[i] = string(b)
	}
	return out
}

// Gray renders mask as a grayscale image with cell x cell pixel blocks.
func Gray(mask []string, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, len(mask[0])*cell, len(mask)*cell))
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			v := uint8(Dark)
			if mask[y/cell][x/cell] == '1' {
				v = Bright
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// PNG encodes mask as PNG.
func PNG(mask []string, cell int) []byte {
	return EncodePNG(Gray(mask, cell))
}

// EncodePNG encodes any image as PNG.
func EncodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Crop trims the given number of pixels from each edge of img.
func Crop(img *image.Gray, left, top, right, bottom int) image.Image {
	b := img.Bounds()
	return img.SubImage(image.Rect(b.Min.X+left, b.Min.Y+top, b.Max.X-right, b.Max.Y-bottom))
}

// Brighten adds delta to every pixel of img, clamped to [0, 255].
func Brighten(img *image.Gray, delta int) *image.Gray {
	out := image.NewGray(img.Bounds())
	for i, v := range img.Pix {
		n := int(v) + delta
		if n < 0 {
			n = 0
		} else if n > 255 {
			n = 255
		}
		out.Pix[i] = uint8(n)
	}
	return out
}

// JPEG encodes mask as JPEG at the given quality.
func JPEG(mask []string, cell, quality int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gray(mask, cell), &jpeg.Options{Quality: quality}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// GIF encodes mask as a two-level paletted GIF.
func GIF(mask []string, cell int) []byte {
	src := Gray(mask, cell)
	pal := color.Palette{color.Gray{Y: Dark}, color.Gray{Y: Bright}}
	img := image.NewPaletted(src.Bounds(), pal)
	for y := 0; y < src.Bounds().Dy(); y++ {
		for x := 0; x < src.Bounds().Dx(); x++ {
			if src.GrayAt(x, y).Y == Bright {
				img.SetColorIndex(x, y, 1)
			}
		}
	}
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

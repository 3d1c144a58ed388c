// Package hasher computes perceptual fingerprints of images.
//
// The fingerprint is a block-mean hash: the image is flattened onto white,
// resampled to a fixed square, divided into a bits x bits grid and each block
// is compared with the median brightness of its horizontal band. The result
// is encoded as lowercase hex, so visually similar images produce strings at
// a small edit distance from each other.
package hasher

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/timmy/imageguard/internal/domain"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultBits yields a 64-bit hash encoded as 16 hex characters.
	DefaultBits = 8

	// blockPixels is the edge length of one block after resampling.
	blockPixels = 16

	// bandCount is the number of horizontal bands used for median splitting.
	bandCount = 4

	// maxPixels bounds decoded image size.
	maxPixels = 64 << 20
)

// Hasher computes fingerprints for raw image bytes. It is safe for
// concurrent use.
type Hasher struct {
	bits int
}

// New creates a Hasher producing bits*bits-bit fingerprints.
// Parameters:
//   - bits: grid size; must be 8 or 16.
//
// Returns:
//   - *Hasher: initialized hasher.
//   - error: non-nil if bits is unsupported.
func New(bits int) (*Hasher, error) {
	if bits != 8 && bits != 16 {
		return nil, fmt.Errorf("unsupported hash bits %d (want 8 or 16)", bits)
	}
	return &Hasher{bits: bits}, nil
}

// Length returns the number of hex characters in a fingerprint.
func (h *Hasher) Length() int {
	return h.bits * h.bits / 4
}

// Hash computes the fingerprint of an encoded image.
// Parameters:
//   - data: encoded image bytes (png, jpeg, gif, webp, bmp, tiff).
//
// Returns:
//   - string: lowercase hex fingerprint of Length() characters.
//   - error: wraps domain.ErrDecode if the bytes are not a decodable image.
func (h *Hasher) Hash(data []byte) (string, error) {
	img, err := decode(data)
	if err != nil {
		return "", err
	}
	return h.HashImage(img), nil
}

// HashImage computes the fingerprint of an already decoded image.
func (h *Hasher) HashImage(img image.Image) string {
	side := h.bits * blockPixels
	canvas := image.NewNRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.BiLinear.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Over, nil)

	blocks := make([]float64, h.bits*h.bits)
	for by := 0; by < h.bits; by++ {
		for bx := 0; bx < h.bits; bx++ {
			var sum int
			for y := by * blockPixels; y < (by+1)*blockPixels; y++ {
				off := canvas.PixOffset(bx*blockPixels, y)
				for x := 0; x < blockPixels; x++ {
					p := canvas.Pix[off+x*4 : off+x*4+3]
					sum += int(p[0]) + int(p[1]) + int(p[2])
				}
			}
			blocks[by*h.bits+bx] = float64(sum)
		}
	}

	bandSize := len(blocks) / bandCount
	bits := make([]bool, len(blocks))
	for b := 0; b < bandCount; b++ {
		band := blocks[b*bandSize : (b+1)*bandSize]
		m := median(band)
		for i, v := range band {
			bits[b*bandSize+i] = v > m
		}
	}
	return encodeHex(bits)
}

// NormalizePNG re-encodes an image as PNG so stored references do not depend
// on the format they were uploaded in.
func (h *Hasher) NormalizePNG(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Distance returns the Levenshtein distance between two fingerprints.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

func decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: unsupported dimensions %dx%d", domain.ErrDecode, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return img, nil
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func encodeHex(bits []bool) string {
	const digits = "0123456789abcdef"
	var sb strings.Builder
	sb.Grow(len(bits) / 4)
	for i := 0; i+4 <= len(bits); i += 4 {
		var nibble byte
		for j := 0; j < 4; j++ {
			nibble <<= 1
			if bits[i+j] {
				nibble |= 1
			}
		}
		sb.WriteByte(digits[nibble])
	}
	return sb.String()
}

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/i474232898/agri-scout/internal/advisory"
)

var ErrImageTooLarge = errors.New("image exceeds the pixel budget")

// Tensor is one HxWx3 image in row-major order.
type Tensor [][][3]float32

// Preprocess decodes a JPEG, PNG or WebP image, drops alpha, resizes it to
// size x size with bilinear sampling and applies norm.
func Preprocess(data []byte, size int, norm Normalization) (Tensor, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > advisory.MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	t := make(Tensor, size)
	for y := 0; y < size; y++ {
		row := make([][3]float32, size)
		for x := 0; x < size; x++ {
			off := dst.PixOffset(x, y)
			p := dst.Pix[off : off+3 : off+3]
			row[x] = [3]float32{
				normalize(p[0], norm),
				normalize(p[1], norm),
				normalize(p[2], norm),
			}
		}
		t[y] = row
	}
	return t, nil
}

func normalize(v uint8, norm Normalization) float32 {
	switch norm {
	case NormalizeCentered:
		return float32(v)/127.5 - 1
	case NormalizeRaw:
		return float32(v)
	default:
		return float32(v) / 255
	}
}

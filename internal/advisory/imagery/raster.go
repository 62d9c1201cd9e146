package imagery

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
)

// band is one colour bucket of the evalscript and the NDVI midpoint it
// stands for.
type band struct {
	c   color.RGBA
	mid float64
}

var bands = []band{
	{color.RGBA{R: 0, G: 204, B: 0, A: 255}, 0.7},
	{color.RGBA{R: 128, G: 230, B: 0, A: 255}, 0.5},
	{color.RGBA{R: 230, G: 230, B: 0, A: 255}, 0.3},
	{color.RGBA{R: 204, G: 0, B: 0, A: 255}, 0.1},
}

// MeanIndex decodes a rendered raster and estimates its mean NDVI from the
// colour bands. Fully transparent pixels (no data) are skipped; a raster
// with no opaque pixel has mean 0.
func MeanIndex(raster []byte) (float64, error) {
	img, _, err := image.Decode(bytes.NewReader(raster))
	if err != nil {
		return 0, err
	}

	var sum float64
	var n int
	r := img.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			px := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if px.A == 0 {
				continue
			}
			sum += nearestBand(px).mid
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func nearestBand(px color.NRGBA) band {
	best := bands[0]
	bestDist := -1
	for _, b := range bands {
		dr := int(px.R) - int(b.c.R)
		dg := int(px.G) - int(b.c.G)
		db := int(px.B) - int(b.c.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = b, d
		}
	}
	return best
}

// WriteAtomic writes data to path through a temp file in the same directory
// and a rename, so readers only ever see a complete file. Concurrent writers
// race on the rename and the last one wins.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

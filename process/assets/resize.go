package assets

import (
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// downscale writes a smaller copy of src into tmpDir when src is over
// maxBytes. It returns src unchanged when the file is small enough or
// cannot be decoded, in which case the original is uploaded as is.
func downscale(src, tmpDir string, size, maxBytes int64) (string, bool) {
	if maxBytes <= 0 || size <= maxBytes {
		return src, false
	}
	img, err := imaging.Open(src)
	if err != nil {
		return src, false
	}
	// encoded size roughly follows pixel area
	scale := math.Sqrt(float64(maxBytes) / float64(size))
	if scale > 0.95 {
		scale = 0.95
	}
	if scale < 0.1 {
		scale = 0.1
	}
	w := int(math.Max(1, math.Round(float64(img.Bounds().Dx())*scale)))
	h := int(math.Max(1, math.Round(float64(img.Bounds().Dy())*scale)))
	img = imaging.Resize(img, w, h, imaging.Lanczos)

	dst := filepath.Join(tmpDir, filepath.Base(src))
	if err := imaging.Save(img, dst, imaging.JPEGQuality(85)); err != nil {
		return src, false
	}
	// one more uniform pass when the first guess was not enough
	if fi, err := os.Stat(dst); err == nil && fi.Size() > maxBytes {
		if again, err := imaging.Open(dst); err == nil {
			again = imaging.Resize(again, int(float64(again.Bounds().Dx())*0.8), 0, imaging.Lanczos)
			_ = imaging.Save(again, dst, imaging.JPEGQuality(80))
		}
	}
	return dst, true
}

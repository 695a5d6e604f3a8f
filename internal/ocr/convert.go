package ocr

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// minOCRWidth is the width small images are upscaled to when preprocessing.
const minOCRWidth = 1000

// normalizeToPNG decodes path, applies EXIF orientation and optional
// preprocessing, and writes the result as a PNG in a temp dir under scratch.
func normalizeToPNG(path, scratch string, preprocess bool) (string, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	_ = f.Close()
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}
	if preprocess {
		img = Preprocess(img)
	}

	tmpDir, err := os.MkdirTemp(scratch, "img-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "image.png")
	if err := imaging.Save(img, out); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("encode png: %w", err)
	}
	return out, cleanup, nil
}

// Preprocess converts img to grayscale and upscales narrow images, which
// helps tesseract on phone screenshots and thumbnails.
func Preprocess(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	if w := out.Bounds().Dx(); w > 0 && w < minOCRWidth {
		return imaging.Resize(out, minOCRWidth, 0, imaging.Lanczos)
	}
	return out
}

package artistimage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// maxDimension bounds cached portraits; local files can be arbitrarily large.
const maxDimension = 1024

// NormalizeImage validates raw image bytes and downscales oversized images.
// Images already within bounds pass through untouched with their original
// extension; downscaled images are re-encoded as JPEG.
func NormalizeImage(data []byte, ext string) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	if ext == "" {
		ext = format
		if ext == "jpeg" {
			ext = "jpg"
		}
	}

	if cfg.Width <= maxDimension && cfg.Height <= maxDimension {
		return data, ext, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	width, height := cfg.Width, cfg.Height
	if width >= height {
		height = height * maxDimension / width
		width = maxDimension
	} else {
		width = width * maxDimension / height
		height = maxDimension
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "jpg", nil
}

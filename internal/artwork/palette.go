package artwork

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // decoder registration
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration

	"golang.org/x/image/draw"
)

// sampleSize is the edge length images are downscaled to before sampling.
// Swatch extraction needs tones, not detail.
const sampleSize = 64

// Swatch is a representative color extracted from cover art for UI theming.
type Swatch struct {
	R, G, B uint8
}

// Hex returns the swatch as a #rrggbb string.
func (s Swatch) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", s.R, s.G, s.B)
}

func luminance(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// ExtractSwatches derives a light and a dark representative color from raw
// image bytes. The image is downscaled, then pixels are split around the
// median luminance and each half averaged.
func ExtractSwatches(data []byte) (light Swatch, dark Swatch, err error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Swatch{}, Swatch{}, fmt.Errorf("decode image: %w", err)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, sampleSize, sampleSize))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	var totalLum float64
	pixels := scaled.Bounds().Dx() * scaled.Bounds().Dy()
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			r, g, b, _ := scaled.At(x, y).RGBA()
			totalLum += luminance(float64(r>>8), float64(g>>8), float64(b>>8))
		}
	}
	meanLum := totalLum / float64(pixels)

	var lightR, lightG, lightB, lightN float64
	var darkR, darkG, darkB, darkN float64
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			r16, g16, b16, _ := scaled.At(x, y).RGBA()
			r, g, b := float64(r16>>8), float64(g16>>8), float64(b16>>8)
			if luminance(r, g, b) >= meanLum {
				lightR += r
				lightG += g
				lightB += b
				lightN++
			} else {
				darkR += r
				darkG += g
				darkB += b
				darkN++
			}
		}
	}

	light = averageSwatch(lightR, lightG, lightB, lightN, Swatch{R: 0xee, G: 0xee, B: 0xee})
	dark = averageSwatch(darkR, darkG, darkB, darkN, Swatch{R: 0x22, G: 0x22, B: 0x22})
	return light, dark, nil
}

func averageSwatch(r, g, b, n float64, fallback Swatch) Swatch {
	if n == 0 {
		return fallback
	}
	return Swatch{
		R: uint8(r / n),
		G: uint8(g / n),
		B: uint8(b / n),
	}
}

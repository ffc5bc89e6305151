package imagetool

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Defaults for web delivery.
const (
	DefaultWebMaxSize   = 1920
	DefaultQuality      = 85
	DefaultThumbnailDim = 300
	DefaultWatermark    = "Kampai Studio"
)

var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// Supported reports whether the file extension is a processable image format.
func Supported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// Resize scales an image. Scale wins over explicit dimensions; a single
// dimension keeps the aspect ratio.
func Resize(img image.Image, width, height int, scale float64) image.Image {
	bounds := img.Bounds()
	switch {
	case scale > 0:
		w := int(float64(bounds.Dx()) * scale)
		h := int(float64(bounds.Dy()) * scale)
		return imaging.Resize(img, w, h, imaging.Lanczos)
	case width > 0 && height > 0:
		return imaging.Resize(img, width, height, imaging.Lanczos)
	case width > 0:
		return imaging.Resize(img, width, 0, imaging.Lanczos)
	case height > 0:
		return imaging.Resize(img, 0, height, imaging.Lanczos)
	default:
		return img
	}
}

// OptimizeForWeb caps the longer edge at maxSize, keeping the aspect ratio.
func OptimizeForWeb(img image.Image, maxSize int) image.Image {
	if maxSize <= 0 {
		maxSize = DefaultWebMaxSize
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxSize && bounds.Dy() <= maxSize {
		return img
	}
	if bounds.Dx() >= bounds.Dy() {
		return imaging.Resize(img, maxSize, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxSize, imaging.Lanczos)
}

// Thumbnail shrinks the image to fit inside size x size.
func Thumbnail(img image.Image, size int) image.Image {
	if size <= 0 {
		size = DefaultThumbnailDim
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}

// Watermark draws semi-transparent text in the bottom-right corner.
func Watermark(img image.Image, text string, opacity uint8) image.Image {
	if text == "" {
		text = DefaultWatermark
	}
	if opacity == 0 {
		opacity = 128
	}

	out := imaging.Clone(img)
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	const margin = 20
	x := out.Bounds().Dx() - width - margin
	y := out.Bounds().Dy() - margin
	if x < 0 {
		x = 0
	}

	drawer := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: opacity}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
	return out
}

// FlattenForJPEG composites transparent images onto a white background so
// the alpha channel is not lost in formats without one.
func FlattenForJPEG(img image.Image) image.Image {
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}

// Save writes the image in the requested format. An empty format keeps the
// extension of outputPath.
func Save(img image.Image, outputPath, format string, quality int) error {
	if quality <= 0 {
		quality = DefaultQuality
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(outputPath)), ".")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	switch format {
	case "webp":
		return saveWebP(img, outputPath, quality)
	case "jpg", "jpeg":
		return imaging.Save(FlattenForJPEG(img), outputPath, imaging.JPEGQuality(quality))
	case "png", "bmp":
		return imaging.Save(img, outputPath)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// saveWebP saves an image in WebP format
func saveWebP(img image.Image, outputPath string, quality int) error {
	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating WebP file: %w", err)
	}
	defer output.Close()

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return fmt.Errorf("error creating encoder options: %w", err)
	}

	if err := webp.Encode(output, img, options); err != nil {
		return fmt.Errorf("error encoding WebP image: %w", err)
	}

	return nil
}

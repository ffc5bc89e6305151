package imagetool

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestResize(t *testing.T) {
	tests := []struct {
		name           string
		w, h           int
		scale          float64
		wantW, wantH   int
	}{
		{"scale half", 0, 0, 0.5, 500, 250},
		{"scale double", 0, 0, 2.0, 2000, 1000},
		{"exact", 800, 600, 0, 800, 600},
		{"width keeps ratio", 500, 0, 0, 500, 250},
		{"height keeps ratio", 0, 250, 0, 500, 250},
		{"noop", 0, 0, 0, 1000, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resize(testImage(1000, 500), tt.w, tt.h, tt.scale)
			if out.Bounds().Dx() != tt.wantW || out.Bounds().Dy() != tt.wantH {
				t.Fatalf("got %dx%d, want %dx%d",
					out.Bounds().Dx(), out.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestOptimizeForWeb(t *testing.T) {
	out := OptimizeForWeb(testImage(3840, 2160), 1920)
	if out.Bounds().Dx() != 1920 {
		t.Fatalf("long edge = %d, want 1920", out.Bounds().Dx())
	}

	small := testImage(800, 600)
	if out := OptimizeForWeb(small, 1920); out.Bounds() != small.Bounds() {
		t.Fatalf("small image should pass through unchanged")
	}

	tall := OptimizeForWeb(testImage(1000, 4000), 2000)
	if tall.Bounds().Dy() != 2000 {
		t.Fatalf("tall image long edge = %d, want 2000", tall.Bounds().Dy())
	}
}

func TestThumbnailFitsInsideBox(t *testing.T) {
	out := Thumbnail(testImage(1200, 800), 300)
	if out.Bounds().Dx() > 300 || out.Bounds().Dy() > 300 {
		t.Fatalf("thumbnail %dx%d exceeds 300x300", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if out.Bounds().Dx() != 300 {
		t.Fatalf("long edge = %d, want 300", out.Bounds().Dx())
	}
}

func TestApplyPresets(t *testing.T) {
	tests := []struct {
		preset      string
		wantFormat  string
		wantQuality int
		wantMaxW    int
	}{
		{"smartstore", "jpg", 90, 1000},
		{"youtube", "png", DefaultQuality, 1280},
		{"instagram", "jpg", 95, 1080},
		{"webp", "webp", DefaultQuality, 1920},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			ops, ok := Presets[tt.preset]
			if !ok {
				t.Fatalf("preset %q missing", tt.preset)
			}
			out, format, quality := Apply(testImage(4000, 3000), ops)
			if format != tt.wantFormat {
				t.Fatalf("format = %q, want %q", format, tt.wantFormat)
			}
			if quality != tt.wantQuality {
				t.Fatalf("quality = %d, want %d", quality, tt.wantQuality)
			}
			if out.Bounds().Dx() > tt.wantMaxW {
				t.Fatalf("width = %d, want <= %d", out.Bounds().Dx(), tt.wantMaxW)
			}
		})
	}
}

func TestWatermarkKeepsDimensions(t *testing.T) {
	src := testImage(640, 480)
	out := Watermark(src, "Kampai Studio", 128)
	if out.Bounds() != src.Bounds() {
		t.Fatalf("watermark changed dimensions: %v", out.Bounds())
	}
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "notes.txt", "c.webp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := CollectImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3", len(files))
	}
	if filepath.Base(files[0]) != "a.jpg" {
		t.Fatalf("files not sorted: %v", files)
	}

	if _, err := CollectImages(filepath.Join(dir, "notes.txt")); err == nil {
		t.Fatalf("unsupported single file should error")
	}
}

func TestBatchProcessWritesOutputs(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(inDir, "photo.png")
	if err := imaging.Save(testImage(400, 300), src); err != nil {
		t.Fatal(err)
	}

	res, err := BatchProcess(inDir, outDir, []Op{
		{Type: OpResize, Width: 200},
		{Type: OpFormat, Format: "png"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 1 || res.Failed != 0 {
		t.Fatalf("processed=%d failed=%d", res.Processed, res.Failed)
	}

	out, err := imaging.Open(filepath.Join(outDir, "photo.png"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 150 {
		t.Fatalf("output = %dx%d, want 200x150", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

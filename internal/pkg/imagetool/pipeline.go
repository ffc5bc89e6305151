package imagetool

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
)

// OpType identifies one pipeline step.
type OpType string

const (
	OpResize    OpType = "resize"
	OpFormat    OpType = "format"
	OpOptimize  OpType = "optimize"
	OpThumbnail OpType = "thumbnail"
	OpWatermark OpType = "watermark"
)

// Op is one image transformation. Only the fields relevant to its type are
// read.
type Op struct {
	Type    OpType
	Width   int
	Height  int
	Scale   float64
	Format  string
	MaxSize int
	Quality int
	Size    int
	Text    string
	Opacity uint8
}

// Presets are the ready-made pipelines for common delivery targets.
var Presets = map[string][]Op{
	"smartstore": {
		{Type: OpResize, Width: 1000},
		{Type: OpFormat, Format: "jpg"},
		{Type: OpOptimize, Quality: 90},
	},
	"thumbnail": {
		{Type: OpThumbnail, Size: 300},
		{Type: OpFormat, Format: "jpg"},
	},
	"youtube": {
		{Type: OpResize, Width: 1280, Height: 720},
		{Type: OpFormat, Format: "png"},
	},
	"instagram": {
		{Type: OpResize, Width: 1080},
		{Type: OpFormat, Format: "jpg"},
		{Type: OpOptimize, Quality: 95},
	},
	"webp": {
		{Type: OpOptimize, MaxSize: 1920},
		{Type: OpFormat, Format: "webp"},
	},
	"4k": {
		{Type: OpResize, Width: 3840},
		{Type: OpFormat, Format: "png"},
	},
}

// PresetNames returns the sorted list of known preset names.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply runs the pipeline over one image and reports the output format and
// quality the save step should use.
func Apply(img image.Image, ops []Op) (image.Image, string, int) {
	format := "png"
	quality := DefaultQuality

	for _, op := range ops {
		switch op.Type {
		case OpResize:
			img = Resize(img, op.Width, op.Height, op.Scale)
		case OpFormat:
			if op.Format != "" {
				format = strings.ToLower(op.Format)
			}
		case OpOptimize:
			img = OptimizeForWeb(img, op.MaxSize)
			if op.Quality > 0 {
				quality = op.Quality
			}
		case OpThumbnail:
			img = Thumbnail(img, op.Size)
		case OpWatermark:
			img = Watermark(img, op.Text, op.Opacity)
		}
	}

	return img, format, quality
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Processed int
	Failed    int
	OutputDir string
}

// CollectImages returns the processable files for a path: the file itself,
// or the supported images directly inside a directory, sorted by name.
func CollectImages(inputPath string) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("input path not found: %w", err)
	}

	if !info.IsDir() {
		if !Supported(inputPath) {
			return nil, fmt.Errorf("unsupported format: %s", filepath.Ext(inputPath))
		}
		return []string{inputPath}, nil
	}

	entries, err := os.ReadDir(inputPath)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if Supported(entry.Name()) {
			files = append(files, filepath.Join(inputPath, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// BatchProcess runs the pipeline over every image under inputPath. An empty
// outputPath puts results next to the input in a timestamped folder.
func BatchProcess(inputPath, outputPath string, ops []Op) (*BatchResult, error) {
	files, err := CollectImages(inputPath)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images to process in %s", inputPath)
	}

	if outputPath == "" {
		stamp := time.Now().Format("20060102_150405")
		outputPath = filepath.Join(filepath.Dir(inputPath), "output_"+stamp)
	}
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}

	result := &BatchResult{OutputDir: outputPath}

	for i, file := range files {
		log.Infof("[ImageTool] [%d/%d] Processing %s", i+1, len(files), filepath.Base(file))

		img, err := imaging.Open(file)
		if err != nil {
			log.Errorf("[ImageTool] Failed to open %s: %v", file, err)
			result.Failed++
			continue
		}

		out, format, quality := Apply(img, ops)

		stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		outFile := filepath.Join(outputPath, stem+"."+format)

		if err := Save(out, outFile, format, quality); err != nil {
			log.Errorf("[ImageTool] Failed to save %s: %v", outFile, err)
			result.Failed++
			continue
		}
		result.Processed++
	}

	log.Infof("[ImageTool] Batch done: %d processed, %d failed, output %s",
		result.Processed, result.Failed, result.OutputDir)
	return result, nil
}

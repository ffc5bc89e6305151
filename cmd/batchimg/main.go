package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kampai-studio/kampai/internal/pkg/imagetool"
)

func main() {
	output := flag.String("o", "", "output directory (default: timestamped folder next to input)")
	preset := flag.String("p", "", "preset pipeline: "+strings.Join(imagetool.PresetNames(), ", "))
	width := flag.Int("w", 0, "resize width")
	height := flag.Int("height", 0, "resize height")
	scale := flag.Float64("s", 0, "scale factor (e.g. 0.5, 2.0)")
	format := flag.String("f", "", "output format: jpg, png, webp")
	watermark := flag.String("watermark", "", "watermark text")

	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}
	input := flag.Arg(0)

	var ops []imagetool.Op
	if *preset != "" {
		presetOps, ok := imagetool.Presets[*preset]
		if !ok {
			log.Fatalf("unknown preset %q, available: %s", *preset, strings.Join(imagetool.PresetNames(), ", "))
		}
		ops = append(ops, presetOps...)
	} else {
		if *width > 0 || *height > 0 || *scale > 0 {
			ops = append(ops, imagetool.Op{Type: imagetool.OpResize, Width: *width, Height: *height, Scale: *scale})
		}
		if *format != "" {
			ops = append(ops, imagetool.Op{Type: imagetool.OpFormat, Format: *format})
		}
	}
	if *watermark != "" {
		ops = append(ops, imagetool.Op{Type: imagetool.OpWatermark, Text: *watermark})
	}

	if len(ops) == 0 {
		fmt.Fprintln(os.Stderr, "no operations specified, use -p or individual options")
		printUsage()
		os.Exit(1)
	}

	result, err := imagetool.BatchProcess(input, *output, ops)
	if err != nil {
		log.Fatalf("batch processing failed: %v", err)
	}

	fmt.Printf("Done: %d processed, %d failed\n", result.Processed, result.Failed)
	fmt.Printf("Output: %s\n", result.OutputDir)
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: batchimg [options] <input file or directory>

Options:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  batchimg -p smartstore ./images
  batchimg -p youtube ./images -o ./out
  batchimg -w 800 -f jpg ./photo.png
  batchimg -p webp -watermark "Kampai Studio" ./images
`)
}

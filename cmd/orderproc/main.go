package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kampai-studio/kampai/internal/pkg/env"
	"github.com/kampai-studio/kampai/internal/pkg/generation"
	"github.com/kampai-studio/kampai/internal/pkg/imagetool"
)

// Order folders follow a fixed lifecycle layout so deliveries are easy to
// audit later.
const (
	sourceDir    = "01_source"
	generatedDir = "02_generated"
	editedDir    = "03_edited"
	deliveryDir  = "04_delivery"
)

type orderResult struct {
	OrderID        string `json:"order_id"`
	Customer       string `json:"customer"`
	GeneratedCount int    `json:"generated_count,omitempty"`
	ProcessedCount int    `json:"processed_count,omitempty"`
	OrderPath      string `json:"order_path"`
	DeliveryPath   string `json:"delivery_path"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	env.SetupEnvFile()

	var result *orderResult
	var err error

	switch os.Args[1] {
	case "product":
		result, err = runProduct(os.Args[2:])
	case "thumbnail":
		result, err = runThumbnail(os.Args[2:])
	case "edit":
		result, err = runEdit(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("order processing failed: %v", err)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: orderproc <command> [options]

Commands:
  product    generate product images for an order
  thumbnail  generate themed thumbnails for an order
  edit       batch-edit customer-supplied images

Run "orderproc <command> -h" for command options.
`)
}

// workDir is where order folders are created.
func workDir() string {
	return env.GetEnv("ORDER_WORK_DIR", "orders")
}

// createOrderFolder lays out <work>/<YYYY-MM>/<orderID>_<customer>/ with the
// lifecycle subfolders.
func createOrderFolder(orderID, customer string) (string, error) {
	month := time.Now().Format("2006-01")
	orderPath := filepath.Join(workDir(), month, fmt.Sprintf("%s_%s", orderID, customer))

	for _, sub := range []string{sourceDir, generatedDir, editedDir, deliveryDir} {
		if err := os.MkdirAll(filepath.Join(orderPath, sub), 0755); err != nil {
			return "", fmt.Errorf("error creating order folder: %w", err)
		}
	}
	return orderPath, nil
}

func pickBackend() (generation.Backend, error) {
	backend := generation.NewSelector().Pick()
	if !backend.Available() {
		return nil, fmt.Errorf("no generation backend available, configure REPLICATE_API_TOKEN or start the local engine")
	}
	return backend, nil
}

func runProduct(args []string) (*orderResult, error) {
	fs := flag.NewFlagSet("product", flag.ExitOnError)
	orderID := fs.String("order-id", "", "order number (e.g. AS-20260823-0001)")
	customer := fs.String("customer", "", "customer name")
	description := fs.String("description", "", "product description")
	count := fs.Int("count", 5, "number of images to generate")
	style := fs.String("style", "professional product photography", "style suffix for the prompt")
	fs.Parse(args)

	if *orderID == "" || *customer == "" || *description == "" {
		fs.Usage()
		return nil, fmt.Errorf("order-id, customer and description are required")
	}

	backend, err := pickBackend()
	if err != nil {
		return nil, err
	}

	orderPath, err := createOrderFolder(*orderID, *customer)
	if err != nil {
		return nil, err
	}
	genDir := filepath.Join(orderPath, generatedDir)
	delDir := filepath.Join(orderPath, deliveryDir)

	prompt := fmt.Sprintf("%s, %s, white background, high quality", *description, *style)
	generated := 0

	for i := 0; i < *count; i++ {
		log.Printf("[%d/%d] generating...", i+1, *count)

		res, err := backend.Generate(context.Background(), generation.Request{
			Prompt: prompt,
			Width:  1024,
			Height: 1024,
		})
		if err != nil {
			log.Printf("generation %d failed: %v", i+1, err)
			continue
		}

		for j, url := range res.Images {
			dest := filepath.Join(genDir, fmt.Sprintf("product_%02d_%d.png", i+1, j+1))
			if err := downloadFile(url, dest); err != nil {
				log.Printf("download failed: %v", err)
				continue
			}
			generated++
		}
	}

	if generated > 0 {
		if _, err := imagetool.BatchProcess(genDir, delDir, imagetool.Presets["smartstore"]); err != nil {
			return nil, fmt.Errorf("delivery optimization failed: %w", err)
		}
	}

	return &orderResult{
		OrderID:        *orderID,
		Customer:       *customer,
		GeneratedCount: generated,
		OrderPath:      orderPath,
		DeliveryPath:   delDir,
	}, nil
}

func runThumbnail(args []string) (*orderResult, error) {
	fs := flag.NewFlagSet("thumbnail", flag.ExitOnError)
	orderID := fs.String("order-id", "", "order number")
	customer := fs.String("customer", "", "customer name")
	themes := fs.String("themes", "", "comma-separated thumbnail themes")
	fs.Parse(args)

	themeList := splitNonEmpty(*themes)
	if *orderID == "" || *customer == "" || len(themeList) == 0 {
		fs.Usage()
		return nil, fmt.Errorf("order-id, customer and themes are required")
	}

	backend, err := pickBackend()
	if err != nil {
		return nil, err
	}

	orderPath, err := createOrderFolder(*orderID, *customer)
	if err != nil {
		return nil, err
	}
	genDir := filepath.Join(orderPath, generatedDir)
	delDir := filepath.Join(orderPath, deliveryDir)

	generated := 0
	for i, theme := range themeList {
		log.Printf("[%d/%d] generating: %s", i+1, len(themeList), theme)

		res, err := backend.Generate(context.Background(), generation.Request{
			Prompt: fmt.Sprintf("%s, bold composition, eye-catching, vibrant colors", theme),
			Width:  1280,
			Height: 720,
		})
		if err != nil {
			log.Printf("generation failed: %v", err)
			continue
		}

		for j, url := range res.Images {
			dest := filepath.Join(genDir, fmt.Sprintf("thumbnail_%02d_%d.png", i+1, j+1))
			if err := downloadFile(url, dest); err != nil {
				log.Printf("download failed: %v", err)
				continue
			}
			generated++
		}
	}

	if generated > 0 {
		if _, err := imagetool.BatchProcess(genDir, delDir, imagetool.Presets["youtube"]); err != nil {
			return nil, fmt.Errorf("delivery optimization failed: %w", err)
		}
	}

	return &orderResult{
		OrderID:        *orderID,
		Customer:       *customer,
		GeneratedCount: generated,
		OrderPath:      orderPath,
		DeliveryPath:   delDir,
	}, nil
}

func runEdit(args []string) (*orderResult, error) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	orderID := fs.String("order-id", "", "order number")
	customer := fs.String("customer", "", "customer name")
	input := fs.String("input", "", "input image file or folder")
	preset := fs.String("preset", "smartstore", "edit preset: "+strings.Join(imagetool.PresetNames(), ", "))
	fs.Parse(args)

	if *orderID == "" || *customer == "" || *input == "" {
		fs.Usage()
		return nil, fmt.Errorf("order-id, customer and input are required")
	}

	ops, ok := imagetool.Presets[*preset]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", *preset)
	}

	files, err := imagetool.CollectImages(*input)
	if err != nil {
		return nil, err
	}

	orderPath, err := createOrderFolder(*orderID, *customer)
	if err != nil {
		return nil, err
	}
	srcDir := filepath.Join(orderPath, sourceDir)
	delDir := filepath.Join(orderPath, deliveryDir)

	// Keep the customer originals alongside the delivery output.
	for _, file := range files {
		if err := copyFile(file, filepath.Join(srcDir, filepath.Base(file))); err != nil {
			return nil, fmt.Errorf("error copying original %s: %w", file, err)
		}
	}

	result, err := imagetool.BatchProcess(srcDir, delDir, ops)
	if err != nil {
		return nil, err
	}

	return &orderResult{
		OrderID:        *orderID,
		Customer:       *customer,
		ProcessedCount: result.Processed,
		OrderPath:      orderPath,
		DeliveryPath:   delDir,
	}, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func downloadFile(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %d for %s", resp.StatusCode, url)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

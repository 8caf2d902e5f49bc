// ocr-check sends one image through the configured OCR service and prints
// what the pipeline would see: raw text, confidence, blocks, and the
// structured fields parsed from the text. Useful for tuning label crops
// and the field extractor against real scans.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cardvault/internal/config"
	"cardvault/internal/labeltext"
	"cardvault/internal/ocr"
)

func main() {
	configPath := flag.String("config", os.Getenv("CARDVAULT_CONFIG"), "path to config file")
	timeout := flag.Duration("timeout", 60*time.Second, "overall timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <image-file>\n", os.Args[0])
		os.Exit(2)
	}
	imagePath := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}
	if cfg.OCR.APIKey == "" {
		log.Println("warning: no OCR API key configured (CARDVAULT_OCR_API_KEY)")
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		log.Fatal("failed to read image: ", err)
	}

	client := ocr.NewHTTPClient(cfg.OCR.Endpoint, cfg.OCR.APIKey,
		time.Duration(cfg.OCR.TimeoutSeconds)*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := client.ProcessImage(ctx, data)
	if err != nil {
		log.Fatal("OCR failed: ", err)
	}

	fmt.Printf("Text (%0.1f%% confidence, %dms):\n%s\n\n",
		result.Confidence, result.ProcessingTimeMS, result.Text)
	fmt.Printf("Blocks: %d\n", len(result.Blocks))
	for i, block := range result.Blocks {
		fmt.Printf("  [%d] %q at (%d,%d) %dx%d\n", i, block.Text,
			block.BoundingBox.X, block.BoundingBox.Y,
			block.BoundingBox.Width, block.BoundingBox.Height)
	}

	fields := labeltext.ParseLabel(result.Text)
	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		log.Fatal("failed to render fields: ", err)
	}
	fmt.Printf("\nExtracted fields:\n%s\n", out)
}

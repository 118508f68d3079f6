package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"menuprice/pkg/ocr"
	"menuprice/pkg/ocr/tesseract"
	"menuprice/pkg/reconcile"
	"menuprice/pkg/region"
)

// Runs price recognition on one rectangle of a local image file and prints
// the tokens and the price that would be picked.
func main() {
	x := flag.Float64("x", 0, "region left edge")
	y := flag.Float64("y", 0, "region top edge")
	w := flag.Float64("w", 0, "region width (0 = whole image)")
	h := flag.Float64("h", 0, "region height (0 = whole image)")
	lang := flag.String("lang", "eng", "tesseract language")
	timeout := flag.Duration("timeout", 10*time.Second, "recognition timeout")
	prior := flag.String("prior", "", "previous price used to break ties")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("usage: go run ./tools/cmd/ocr_region [-x -y -w -h] <image>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	img, err := ocr.Decode(path, data)
	if err != nil {
		log.Fatal(err)
	}
	r := region.Rect{X: *x, Y: *y, Width: *w, Height: *h}
	if r.Width == 0 || r.Height == 0 {
		r = region.Rect{Width: float64(img.Width), Height: float64(img.Height)}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := tesseract.New(*lang)
	engine.Logger = logger
	a := &ocr.Adapter{Engine: engine, Timeout: *timeout, Logger: logger}

	start := time.Now()
	tokens, err := a.RecognizeImage(context.Background(), img, r)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("image=%dx%d region=%+v took=%s\n", img.Width, img.Height, r, time.Since(start).Round(time.Millisecond))
	for i, t := range tokens {
		price := "-"
		if t.Price != nil {
			price = t.Price.String()
		}
		fmt.Printf("%2d text=%q price=%s conf=%.3f\n", i, t.Text, price, t.Confidence)
	}
	if best := reconcile.BestToken(tokens, *prior); best != nil {
		fmt.Printf("picked=%q\n", best.Text)
	} else {
		fmt.Println("picked=<none>")
	}
}

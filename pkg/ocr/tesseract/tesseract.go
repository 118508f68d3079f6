// Package tesseract implements ocr.Engine with the Tesseract OCR library
// through gosseract. It needs libtesseract at build time.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"menuprice/pkg/ocr"
	"menuprice/pkg/region"
)

// priceWhitelist limits recognition to characters that appear in prices.
const priceWhitelist = "0123456789.,$€£¥₹RpsIDUEGB "

// Engine runs several preprocessing variants and page segmentation modes over
// a region crop and merges the price tokens found by each pass.
type Engine struct {
	Languages []string
	Modes     []gosseract.PageSegMode
	// MinHeight upscales shorter crops; tesseract reads glyphs around 30px
	// tall best.
	MinHeight int
	Logger    *slog.Logger

	newClient func() *gosseract.Client
}

// New returns an engine for the given tesseract languages (default "eng").
func New(langs ...string) *Engine {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Engine{
		Languages: langs,
		Modes:     []gosseract.PageSegMode{gosseract.PSM_SINGLE_LINE, gosseract.PSM_SINGLE_BLOCK, gosseract.PSM_SPARSE_TEXT},
		MinHeight: 96,
		newClient: gosseract.NewClient,
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Recognize implements ocr.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image, r region.Rect) ([]ocr.Token, error) {
	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+int(math.Floor(r.X)),
		b.Min.Y+int(math.Floor(r.Y)),
		b.Min.X+int(math.Ceil(r.X+r.Width)),
		b.Min.Y+int(math.Ceil(r.Y+r.Height)),
	).Intersect(b)
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}
	crop := imaging.Crop(img, rect)

	var tokens []ocr.Token
	var lastErr error
	passes := 0
	for _, v := range variants(crop, e.MinHeight) {
		data, err := encodePNG(v)
		if err != nil {
			return nil, err
		}
		for _, mode := range e.Modes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			toks, err := e.pass(data, mode)
			if err != nil {
				lastErr = err
				continue
			}
			passes++
			tokens = append(tokens, toks...)
		}
	}
	if passes == 0 && lastErr != nil {
		return nil, fmt.Errorf("all tesseract passes failed: %w", lastErr)
	}
	return tokens, nil
}

// pass runs one recognition with a fresh client.
func (e *Engine) pass(data []byte, mode gosseract.PageSegMode) ([]ocr.Token, error) {
	client := e.newClient()
	defer client.Close()
	if err := client.SetLanguage(e.Languages...); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetWhitelist(priceWhitelist); err != nil {
		return nil, fmt.Errorf("set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(mode); err != nil {
		return nil, fmt.Errorf("set psm %d: %w", mode, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}
	e.logger().Debug("tesseract pass", "psm", int(mode), "words", len(boxes), "text", snippet(lineText(boxes), 120))

	var out []ocr.Token
	for _, line := range splitLines(boxes) {
		out = append(out, ocr.TokensFromWords(line)...)
	}
	return out, nil
}

// splitLines groups word boxes into lines so that currency markers are only
// paired with numbers on the same line.
func splitLines(boxes []gosseract.BoundingBox) [][]ocr.Word {
	var lines [][]ocr.Word
	var cur []ocr.Word
	var prev lineKey
	for i, box := range boxes {
		k := lineKey{box.BlockNum, box.ParNum, box.LineNum}
		if i > 0 && k != prev && len(cur) > 0 {
			lines = append(lines, cur)
			cur = nil
		}
		cur = append(cur, ocr.Word{Text: box.Word, Confidence: box.Confidence / 100})
		prev = k
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

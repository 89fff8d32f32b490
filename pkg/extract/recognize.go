package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer turns a preprocessed image into text.
type Recognizer interface {
	Recognize(img image.Image, pass Pass) (string, error)
}

// Tesseract recognizes text through the system tesseract engine. A fresh
// engine handle is created per call; the engine is not safe for reuse across
// segmentation-mode changes.
type Tesseract struct {
	// Languages defaults to eng.
	Languages []string
}

// NewTesseract returns a Tesseract recognizer with default settings.
func NewTesseract() *Tesseract {
	return &Tesseract{}
}

// Recognize runs one recognition pass and returns the raw text.
func (t *Tesseract) Recognize(img image.Image, pass Pass) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(t.Languages) > 0 {
		if err := client.SetLanguage(t.Languages...); err != nil {
			return "", fmt.Errorf("set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(pass.PageSegMode)); err != nil {
		return "", fmt.Errorf("set page seg mode: %w", err)
	}
	if pass.Whitelist != "" {
		if err := client.SetWhitelist(pass.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}

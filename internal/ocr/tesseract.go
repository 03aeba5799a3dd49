// Package ocr extracts text from images via an external optical character
// recognition engine.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Engine extracts text from an image file.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Tesseract shells out to the tesseract CLI. Recognition quality is the
// engine's concern; this wrapper only runs the binary and captures stdout.
type Tesseract struct {
	Lang string
	OEM  int
	PSM  int
}

// NewTesseract creates a Tesseract engine with the default English model.
func NewTesseract() *Tesseract {
	return &Tesseract{
		Lang: "eng",
		OEM:  1,
		PSM:  3,
	}
}

// Recognize runs tesseract on the image and returns the extracted text.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout",
		"-l", t.Lang,
		"--oem", strconv.Itoa(t.OEM),
		"--psm", strconv.Itoa(t.PSM),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, stderr.String())
	}

	return stdout.String(), nil
}

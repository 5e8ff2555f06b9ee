package executor

import (
	"context"
	"fmt"
)

// ProcessOCR runs a tesseract compatible program: <cmd> <image> stdout -l <lang>.
type ProcessOCR struct {
	cmd Command
}

// NewProcessOCR creates an OCR adapter for cmd.
func NewProcessOCR(cmd Command) *ProcessOCR {
	return &ProcessOCR{cmd: cmd}
}

// Ready reports whether the OCR program is available.
func (o *ProcessOCR) Ready() error {
	return o.cmd.Ready()
}

// Recognize returns the text found in the image.
func (o *ProcessOCR) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	if lang == "" {
		lang = "eng"
	}
	if err := o.cmd.Ready(); err != nil {
		return "", fmt.Errorf("ocr unavailable: %w", err)
	}
	return o.cmd.Run(ctx, "desktop_ocr_failed", imagePath, "stdout", "-l", lang)
}

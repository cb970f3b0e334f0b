package media

import (
	"fmt"
	"image"
	"io"
	"log"

	"github.com/disintegration/imaging"
)

const (
	PreviewJpegQuality   = 85
	PreviewFileExtension = ".jpg"
)

// Processor turns decoded uploads into preview images saved in a Store.
type Processor struct {
	store   Store
	maxSize int
}

func NewProcessor(store Store, maxSize int) *Processor {
	return &Processor{store: store, maxSize: maxSize}
}

// GeneratePreview resizes img so its longest side is at most the configured
// size and saves it as JPEG. Returns the relative path of the preview.
func (p *Processor) GeneratePreview(img image.Image) (string, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return "", fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	w, h := fitWithin(bounds.Dx(), bounds.Dy(), p.maxSize)
	preview := img
	if w != bounds.Dx() || h != bounds.Dy() {
		preview = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, preview, imaging.JPEG, imaging.JPEGQuality(PreviewJpegQuality))
		if err != nil {
			log.Printf("media.processor: Failed to encode preview: %v", err)
			writer.CloseWithError(fmt.Errorf("preview encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	rel, err := p.store.Save(AssetTypePreview, "", PreviewFileExtension, reader)
	reader.Close()
	if err != nil {
		return "", fmt.Errorf("failed to save preview via store: %w", err)
	}
	return rel, nil
}

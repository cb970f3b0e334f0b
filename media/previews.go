package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"path"

	"github.com/camden-git/foodlens/intake"
	"github.com/google/uuid"
)

// PreviewURLPrefix is the route the previews directory is served under.
const PreviewURLPrefix = "/api/previews/"

var ErrUnsupportedImage = errors.New("unsupported image type")

// Ledger records the lifetime of preview handles.
type Ledger interface {
	RecordAcquired(key, owner string) error
	RecordReleased(key string) error
	RecordTransferred(key, owner string) error
}

type nopLedger struct{}

func (nopLedger) RecordAcquired(string, string) error    { return nil }
func (nopLedger) RecordReleased(string) error            { return nil }
func (nopLedger) RecordTransferred(string, string) error { return nil }

// Previewer allocates preview handles for uploads and frees them again.
// It implements intake.HandleReleaser.
type Previewer struct {
	store     Store
	processor *Processor
	ledger    Ledger
}

func NewPreviewer(store Store, processor *Processor, ledger Ledger) *Previewer {
	if ledger == nil {
		ledger = nopLedger{}
	}
	return &Previewer{store: store, processor: processor, ledger: ledger}
}

// Acquire stores the upload, renders its preview and returns the staged
// image owned by owner. Nothing is left on disk when it fails.
func (p *Previewer) Acquire(owner string, up Upload, data io.Reader) (intake.StagedImage, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return intake.StagedImage{}, fmt.Errorf("failed to read upload '%s': %w", up.Filename, err)
	}

	head := raw
	if len(head) > 512 {
		head = head[:512]
	}
	contentType, ext, ok := SniffImageType(head)
	if !ok {
		return intake.StagedImage{}, fmt.Errorf("%w: '%s' is %s", ErrUnsupportedImage, up.Filename, contentType)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return intake.StagedImage{}, fmt.Errorf("%w: failed to decode '%s': %v", ErrUnsupportedImage, up.Filename, err)
	}

	originalKey, err := p.store.Save(AssetTypeOriginal, "", ext, bytes.NewReader(raw))
	if err != nil {
		return intake.StagedImage{}, fmt.Errorf("failed to store original '%s': %w", up.Filename, err)
	}

	previewKey, err := p.processor.GeneratePreview(img)
	if err != nil {
		p.deleteQuietly(originalKey)
		return intake.StagedImage{}, fmt.Errorf("failed to generate preview for '%s': %w", up.Filename, err)
	}

	if err := p.ledger.RecordAcquired(previewKey, owner); err != nil {
		log.Printf("media.previews: failed to record preview %s: %v", previewKey, err)
	}

	meta := ReadMetadata(bytes.NewReader(raw))
	return intake.StagedImage{
		ID:          uuid.NewString(),
		Filename:    up.Filename,
		ContentType: contentType,
		Size:        int64(len(raw)),
		Width:       meta.Width,
		Height:      meta.Height,
		TakenAt:     meta.TakenAt,
		Preview: intake.Handle{
			Key:         previewKey,
			OriginalKey: originalKey,
			URL:         PreviewURLPrefix + path.Base(previewKey),
		},
	}, nil
}

// Release deletes the preview and its original.
func (p *Previewer) Release(h intake.Handle) error {
	var errs []error
	if h.Key != "" {
		if err := p.store.Delete(h.Key); err != nil {
			errs = append(errs, err)
		}
		if err := p.ledger.RecordReleased(h.Key); err != nil {
			log.Printf("media.previews: failed to record release of %s: %v", h.Key, err)
		}
	}
	if h.OriginalKey != "" {
		if err := p.store.Delete(h.OriginalKey); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Transfer records owner as the preview's holder. Files are left alone.
func (p *Previewer) Transfer(h intake.Handle, owner string) error {
	if h.Key == "" {
		return nil
	}
	if err := p.ledger.RecordTransferred(h.Key, owner); err != nil {
		return fmt.Errorf("failed to transfer preview %s to %s: %w", h.Key, owner, err)
	}
	return nil
}

// Retain hands the preview over to owner for good. The original upload is
// no longer needed and is deleted.
func (p *Previewer) Retain(h intake.Handle, owner string) error {
	if h.OriginalKey != "" {
		if err := p.store.Delete(h.OriginalKey); err != nil {
			return err
		}
	}
	if h.Key == "" {
		return nil
	}
	return p.ledger.RecordTransferred(h.Key, owner)
}

func (p *Previewer) deleteQuietly(key string) {
	if err := p.store.Delete(key); err != nil {
		log.Printf("media.previews: failed to clean up %s: %v", key, err)
	}
}

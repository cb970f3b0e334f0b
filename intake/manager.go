package intake

import (
	"fmt"
	"log"
)

// Handle is a preview handle for a staged image. URL is what clients
// display; the keys locate the backing assets and never leave the server.
type Handle struct {
	Key         string `json:"-"`
	OriginalKey string `json:"-"`
	URL         string `json:"url"`
}

// HandleReleaser frees the resources behind a preview handle.
type HandleReleaser interface {
	Release(h Handle) error
}

// StagedImage is an uploaded image not yet attached to a product.
type StagedImage struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Width       *int   `json:"width,omitempty"`
	Height      *int   `json:"height,omitempty"`
	TakenAt     *int64 `json:"taken_at,omitempty"`
	Preview     Handle `json:"preview"`
}

// ProductDetails are the free-form fields of the upload form.
type ProductDetails struct {
	Weight          string `json:"weight"`
	ServingSize     string `json:"serving_size"`
	AdditionalNotes string `json:"additional_notes"`
}

type Direction string

const (
	DirectionPrevious Direction = "previous"
	DirectionNext     Direction = "next"
)

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "previous", "prev":
		return DirectionPrevious, nil
	case "next":
		return DirectionNext, nil
	default:
		return "", fmt.Errorf("invalid direction '%s': use 'previous' or 'next'", s)
	}
}

// Manager owns the staged images of one form instance and the index of the
// image shown in the main preview. current is -1 exactly when images is empty.
// Manager is not safe for concurrent use; Session serializes access.
type Manager struct {
	images   []StagedImage
	current  int
	details  ProductDetails
	releaser HandleReleaser
}

func NewManager(releaser HandleReleaser) *Manager {
	return &Manager{current: -1, releaser: releaser}
}

// AddImages appends in order without deduplicating.
func (m *Manager) AddImages(images ...StagedImage) {
	if len(images) == 0 {
		return
	}
	m.images = append(m.images, images...)
	if m.current < 0 {
		m.current = 0
	}
}

// RemoveImage drops the image at index and releases its preview. Out of
// range indexes are ignored.
func (m *Manager) RemoveImage(index int) {
	if index < 0 || index >= len(m.images) {
		return
	}
	removed := m.images[index]
	m.images = append(m.images[:index], m.images[index+1:]...)

	switch {
	case len(m.images) == 0:
		m.current = -1
	case m.current >= index && m.current > 0:
		m.current--
	}

	m.release(removed)
}

// Navigate moves the current index one step, stopping at either end.
func (m *Manager) Navigate(d Direction) {
	if len(m.images) == 0 {
		return
	}
	switch d {
	case DirectionPrevious:
		if m.current > 0 {
			m.current--
		}
	case DirectionNext:
		if m.current < len(m.images)-1 {
			m.current++
		}
	}
}

// Select makes index current; invalid indexes are ignored.
func (m *Manager) Select(index int) {
	if index < 0 || index >= len(m.images) {
		return
	}
	m.current = index
}

// CurrentIndex returns false when nothing is staged.
func (m *Manager) CurrentIndex() (int, bool) {
	if m.current < 0 {
		return 0, false
	}
	return m.current, true
}

func (m *Manager) Current() (StagedImage, bool) {
	if m.current < 0 {
		return StagedImage{}, false
	}
	return m.images[m.current], true
}

// First returns the image a committed product keeps.
func (m *Manager) First() (StagedImage, bool) {
	if len(m.images) == 0 {
		return StagedImage{}, false
	}
	return m.images[0], true
}

func (m *Manager) Len() int {
	return len(m.images)
}

// Images returns a copy of the staged images in order.
func (m *Manager) Images() []StagedImage {
	out := make([]StagedImage, len(m.images))
	copy(out, m.images)
	return out
}

func (m *Manager) PreviewURLs() []string {
	urls := make([]string, 0, len(m.images))
	for _, img := range m.images {
		urls = append(urls, img.Preview.URL)
	}
	return urls
}

func (m *Manager) Details() ProductDetails {
	return m.details
}

func (m *Manager) SetWeight(v string)          { m.details.Weight = v }
func (m *Manager) SetServingSize(v string)     { m.details.ServingSize = v }
func (m *Manager) SetAdditionalNotes(v string) { m.details.AdditionalNotes = v }

// Reset releases every staged preview and clears the details.
func (m *Manager) Reset() {
	images := m.images
	m.images = nil
	m.current = -1
	m.details = ProductDetails{}
	for _, img := range images {
		m.release(img)
	}
}

// Commit hands the first staged image to the caller without releasing it,
// then resets. The caller owns the returned preview from now on.
func (m *Manager) Commit() (StagedImage, bool) {
	if len(m.images) == 0 {
		m.Reset()
		return StagedImage{}, false
	}
	first := m.images[0]
	m.images = m.images[1:]
	m.Reset()
	return first, true
}

func (m *Manager) release(img StagedImage) {
	if m.releaser == nil {
		return
	}
	if err := m.releaser.Release(img.Preview); err != nil {
		log.Printf("intake: failed to release preview %s for image %s: %v", img.Preview.URL, img.ID, err)
	}
}

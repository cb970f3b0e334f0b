package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	acquired    map[string]string
	released    []string
	transferred map[string]string
	transferErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{acquired: map[string]string{}, transferred: map[string]string{}}
}

func (l *fakeLedger) RecordAcquired(key, owner string) error {
	l.acquired[key] = owner
	return nil
}

func (l *fakeLedger) RecordReleased(key string) error {
	l.released = append(l.released, key)
	return nil
}

func (l *fakeLedger) RecordTransferred(key, owner string) error {
	if l.transferErr != nil {
		return l.transferErr
	}
	l.transferred[key] = owner
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestPreviewer(t *testing.T) (*Previewer, *LocalStorage, *fakeLedger) {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), map[AssetType]string{
		AssetTypePreview:  "previews",
		AssetTypeOriginal: "originals",
	})
	require.NoError(t, err)
	ledger := newFakeLedger()
	return NewPreviewer(store, NewProcessor(store, 480), ledger), store, ledger
}

func TestAcquireCreatesPreviewAndOriginal(t *testing.T) {
	p, store, ledger := newTestPreviewer(t)
	raw := pngBytes(t, 800, 400)

	img, err := p.Acquire("session-1", Upload{Filename: "apple.png"}, bytes.NewReader(raw))
	require.NoError(t, err)

	assert.NotEmpty(t, img.ID)
	assert.Equal(t, "apple.png", img.Filename)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, int64(len(raw)), img.Size)
	require.NotNil(t, img.Width)
	assert.Equal(t, 800, *img.Width)
	assert.Equal(t, 400, *img.Height)
	assert.True(t, strings.HasPrefix(img.Preview.URL, PreviewURLPrefix))
	assert.True(t, strings.HasPrefix(img.Preview.Key, "previews/"))
	assert.True(t, strings.HasPrefix(img.Preview.OriginalKey, "originals/"))
	assert.Equal(t, "session-1", ledger.acquired[img.Preview.Key])

	full, err := store.GetFullPath(img.Preview.Key)
	require.NoError(t, err)
	preview, err := imaging.Open(full)
	require.NoError(t, err)
	assert.Equal(t, 480, preview.Bounds().Dx())
	assert.Equal(t, 240, preview.Bounds().Dy())
}

func TestAcquireRejectsNonImages(t *testing.T) {
	p, store, ledger := newTestPreviewer(t)

	_, err := p.Acquire("session-1", Upload{Filename: "notes.txt"}, strings.NewReader("just some text"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.Empty(t, ledger.acquired)

	dir, err := store.EnsureDir(AssetTypeOriginal)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReleaseDeletesBothFiles(t *testing.T) {
	p, store, ledger := newTestPreviewer(t)
	img, err := p.Acquire("s", Upload{Filename: "a.png"}, bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)

	require.NoError(t, p.Release(img.Preview))
	assert.Equal(t, []string{img.Preview.Key}, ledger.released)

	for _, key := range []string{img.Preview.Key, img.Preview.OriginalKey} {
		full, err := store.GetFullPath(key)
		require.NoError(t, err)
		_, err = os.Stat(full)
		assert.True(t, os.IsNotExist(err), key)
	}

	// releasing twice is harmless
	assert.NoError(t, p.Release(img.Preview))
}

func TestRetainKeepsPreviewOnly(t *testing.T) {
	p, store, ledger := newTestPreviewer(t)
	img, err := p.Acquire("s", Upload{Filename: "a.png"}, bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)

	require.NoError(t, p.Retain(img.Preview, "catalog:1"))
	assert.Equal(t, "catalog:1", ledger.transferred[img.Preview.Key])

	previewPath, _ := store.GetFullPath(img.Preview.Key)
	_, err = os.Stat(previewPath)
	assert.NoError(t, err)
	originalPath, _ := store.GetFullPath(img.Preview.OriginalKey)
	_, err = os.Stat(originalPath)
	assert.True(t, os.IsNotExist(err))
}

func TestTransferMovesOwnershipOnly(t *testing.T) {
	p, store, ledger := newTestPreviewer(t)
	img, err := p.Acquire("s", Upload{Filename: "a.png"}, bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)

	require.NoError(t, p.Transfer(img.Preview, "catalog"))
	assert.Equal(t, "catalog", ledger.transferred[img.Preview.Key])
	for _, key := range []string{img.Preview.Key, img.Preview.OriginalKey} {
		full, _ := store.GetFullPath(key)
		_, err = os.Stat(full)
		assert.NoError(t, err, key)
	}

	ledger.transferErr = errors.New("ledger offline")
	err = p.Transfer(img.Preview, "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger offline")
	assert.Equal(t, "catalog", ledger.transferred[img.Preview.Key])
}

func TestLocalStorageRefusesTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base, map[AssetType]string{AssetTypePreview: "previews"})
	require.NoError(t, err)

	_, err = store.GetFullPath("../etc/passwd")
	assert.Error(t, err)
	_, _, err = store.Open("previews/missing.jpg")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = NewLocalStorage(base, map[AssetType]string{AssetTypePreview: "../outside"})
	assert.Error(t, err)

	rel, err := store.Save(AssetTypePreview, "fixed.jpg", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "previews/fixed.jpg", rel)
	_, err = os.Stat(filepath.Join(base, "previews", "fixed.jpg"))
	assert.NoError(t, err)
}

func TestFitWithin(t *testing.T) {
	cases := []struct{ w, h, max, ew, eh int }{
		{800, 400, 480, 480, 240},
		{400, 800, 480, 240, 480},
		{100, 50, 480, 100, 50},
		{1000, 1, 480, 480, 1},
	}
	for _, c := range cases {
		w, h := fitWithin(c.w, c.h, c.max)
		assert.Equal(t, c.ew, w)
		assert.Equal(t, c.eh, h)
	}
}

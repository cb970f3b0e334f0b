package media

import (
	"math"
	"net/http"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var supportedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SniffImageType detects the content type from the first bytes of a file
// and reports whether it is an image type previews can be made from.
func SniffImageType(head []byte) (string, string, bool) {
	contentType := http.DetectContentType(head)
	ext, ok := supportedContentTypes[contentType]
	return contentType, ext, ok
}

// fitWithin scales w x h so the longest side is at most maxSize.
func fitWithin(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w >= h {
		return maxSize, max(1, int(math.Round(float64(h)*float64(maxSize)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(maxSize)/float64(h)))), maxSize
}

package media

import (
	"image"
	"io"
	"log"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

func exifString(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	val := strings.Trim(strings.TrimRight(tag.String(), "\x00"), `"`)
	if val == "" {
		return nil
	}
	return &val
}

// ReadMetadata extracts dimensions and, when present, EXIF camera and
// capture time. Missing EXIF data is not an error.
func ReadMetadata(r io.ReadSeeker) Metadata {
	var meta Metadata

	cfg, _, err := image.DecodeConfig(r)
	if err == nil {
		w, h := cfg.Width, cfg.Height
		meta.Width = &w
		meta.Height = &h
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		log.Printf("media.metadata: failed to rewind upload: %v", err)
		return meta
	}

	x, err := exif.Decode(r)
	if err != nil {
		return meta
	}
	meta.CameraMake = exifString(x, exif.Make)
	meta.CameraModel = exifString(x, exif.Model)
	if dt, err := x.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}
	return meta
}

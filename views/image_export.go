package views

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"drive-logger/models"
)

// ImageWriter encodes frames into files of one format under one directory.
type ImageWriter struct {
	dir     string
	ext     string
	quality int
	encode  func(io.Writer, image.Image) error
}

// NewImageWriter picks the encoder for ext (jpg, jpeg, png, bmp, tiff).
func NewImageWriter(dir, ext string, jpegQuality int) (*ImageWriter, error) {
	w := &ImageWriter{dir: dir, ext: ext, quality: jpegQuality}
	switch ext {
	case "jpg", "jpeg":
		w.encode = func(out io.Writer, img image.Image) error {
			return jpeg.Encode(out, img, &jpeg.Options{Quality: w.quality})
		}
	case "png":
		w.encode = png.Encode
	case "bmp":
		w.encode = bmp.Encode
	case "tiff":
		w.encode = func(out io.Writer, img image.Image) error {
			return tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate})
		}
	default:
		return nil, fmt.Errorf("unsupported image extension %q", ext)
	}
	return w, nil
}

// Write stores the frame as <prefix>_<timestamp>.<ext> and returns the file
// name. The timestamp comes from the capture time; if another worker already
// took that name, the timestamp is bumped by a microsecond and retried.
func (w *ImageWriter) Write(prefix string, f *models.Frame, stamp func(time.Time) string) (string, error) {
	if !f.Valid() {
		return "", fmt.Errorf("frame %d: %d bytes for %dx%d", f.FrameID, len(f.Pix), f.Width, f.Height)
	}

	at := f.CapturedAt
	for attempt := 0; attempt < 16; attempt++ {
		name := fmt.Sprintf("%s_%s.%s", prefix, stamp(at), w.ext)
		out, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, os.ErrExist) {
			at = at.Add(time.Microsecond)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create image: %w", err)
		}

		bw := bufio.NewWriter(out)
		err = w.encode(bw, f.RGBA())
		if err == nil {
			err = bw.Flush()
		}
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(filepath.Join(w.dir, name))
			return "", fmt.Errorf("encode %s: %w", name, err)
		}
		return name, nil
	}
	return "", fmt.Errorf("frame %d: no free image name after 16 attempts", f.FrameID)
}

// Dir returns the image directory.
func (w *ImageWriter) Dir() string { return w.dir }

package models

import (
	"image"
	"time"
)

// Frame holds one captured pixel buffer of the capture region.
// Pix is packed RGB, Width*Height*3 bytes, row-major.
type Frame struct {
	FrameID    uint64
	Width      int
	Height     int
	Pix        []byte
	CapturedAt time.Time
}

// NewFrameFromRGBA repacks an RGBA image (as produced by screen grabbers) into RGB.
func NewFrameFromRGBA(img *image.RGBA, capturedAt time.Time) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return &Frame{Width: w, Height: h, Pix: pix, CapturedAt: capturedAt}
}

// Valid reports whether Pix matches the declared dimensions.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// RGBA expands the frame for image encoders.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}

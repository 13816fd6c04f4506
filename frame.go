package rollcall

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/classtrack/rollcall/utils"
	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Frame is a decoded webcam capture held as 8-bit grayscale pixels in row-major order.
type Frame struct {
	Pixels []uint8
	Cols   int
	Rows   int
}

// DecodeFrame materializes the encoded image bytes into a grayscale frame.
// Any failure is reported as ErrFrameDecodeFailed.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrFrameDecodeFailed)
	}
	if !utils.IsImage(data) {
		return nil, fmt.Errorf("%w: unexpected content type %s", ErrFrameDecodeFailed, utils.DetectContentType(data))
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameDecodeFailed, err)
	}
	return NewFrame(src), nil
}

// NewFrame converts any image to a grayscale frame.
func NewFrame(img image.Image) *Frame {
	if gray, ok := img.(*image.Gray); ok {
		return grayToFrame(gray)
	}
	src := imgToNRGBA(img)
	return &Frame{
		Pixels: pigo.RgbToGrayscale(src),
		Cols:   src.Bounds().Dx(),
		Rows:   src.Bounds().Dy(),
	}
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	return imaging.Clone(img)
}

func grayToFrame(src *image.Gray) *Frame {
	b := src.Bounds()
	f := &Frame{
		Pixels: make([]uint8, b.Dx()*b.Dy()),
		Cols:   b.Dx(),
		Rows:   b.Dy(),
	}
	for y := 0; y < f.Rows; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(f.Pixels[y*f.Cols:(y+1)*f.Cols], src.Pix[off:off+f.Cols])
	}
	return f
}

// Gray returns an image view sharing the frame's pixel buffer.
func (f *Frame) Gray() *image.Gray {
	return &image.Gray{
		Pix:    f.Pixels,
		Stride: f.Cols,
		Rect:   image.Rect(0, 0, f.Cols, f.Rows),
	}
}

// MeanIntensity returns the average pixel value of the frame on the 0-255 scale.
func (f *Frame) MeanIntensity() float64 {
	if len(f.Pixels) == 0 {
		return 0
	}
	var sum uint64
	for _, p := range f.Pixels {
		sum += uint64(p)
	}
	return float64(sum) / float64(len(f.Pixels))
}

// Crop copies the part of the frame covered by r. The rectangle is clipped
// to the frame bounds first; an empty intersection yields an empty frame.
func (f *Frame) Crop(r image.Rectangle) *Frame {
	r = r.Intersect(image.Rect(0, 0, f.Cols, f.Rows))
	out := &Frame{
		Pixels: make([]uint8, r.Dx()*r.Dy()),
		Cols:   r.Dx(),
		Rows:   r.Dy(),
	}
	for y := 0; y < out.Rows; y++ {
		off := (r.Min.Y+y)*f.Cols + r.Min.X
		copy(out.Pixels[y*out.Cols:(y+1)*out.Cols], f.Pixels[off:off+out.Cols])
	}
	return out
}

// imageParams exposes the frame to the pigo detectors.
func (f *Frame) imageParams() pigo.ImageParams {
	return pigo.ImageParams{
		Pixels: f.Pixels,
		Rows:   f.Rows,
		Cols:   f.Cols,
		Dim:    f.Cols,
	}
}

package rollcall

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Detector classifies a single frame. Implementations must not keep state
// between calls and must be safe for concurrent use.
type Detector interface {
	Detect(f *Frame) (Label, error)
	Name() string
}

// Detection strategy names.
const (
	StrategyHaar    = "haar"
	StrategyCascade = "cascade"
)

var (
	_ Detector = (*WindowDetector)(nil)
	_ Detector = (*CascadeDetector)(nil)
)

// WindowDetector runs the boosted Haar classifier over a sliding window.
// The first window classified as a face stops the scan; the frame's mean
// brightness then decides between a positive and a semi-positive label.
type WindowDetector struct {
	model     *Model
	extractor *FeatureExtractor

	WindowSize      int
	Stride          int
	BrightnessLimit float64
}

// NewWindowDetector returns a sliding window detector using the given model.
func NewWindowDetector(m *Model, windowSize, stride int, brightnessLimit float64) *WindowDetector {
	d := &WindowDetector{
		model:           m,
		WindowSize:      windowSize,
		Stride:          stride,
		BrightnessLimit: brightnessLimit,
	}
	if m != nil {
		d.extractor = m.Extractor()
	}
	return d
}

// Name implements Detector.
func (d *WindowDetector) Name() string { return StrategyHaar }

// Detect implements Detector.
func (d *WindowDetector) Detect(f *Frame) (Label, error) {
	_, found, err := d.FindFace(f)
	if err != nil {
		return NoLabel, err
	}
	if !found {
		return Negative, nil
	}
	// Exposure, not eye visibility, separates the two outcomes here.
	if f.MeanIntensity() > d.BrightnessLimit {
		return SemiPositive, nil
	}
	return Positive, nil
}

// FindFace scans the frame in raster order (rows outer, columns inner) and
// returns the first window classified as a face.
func (d *WindowDetector) FindFace(f *Frame) (image.Rectangle, bool, error) {
	if d.model == nil || d.extractor == nil {
		return image.Rectangle{}, false, ErrModelNotLoaded
	}
	if err := d.model.Validate(); err != nil {
		return image.Rectangle{}, false, err
	}
	if d.WindowSize <= 0 {
		return image.Rectangle{}, false, fmt.Errorf("invalid window size %d", d.WindowSize)
	}

	stride := d.Stride
	if stride < 1 {
		stride = 1
	}

	var (
		gray     = f.Gray()
		size     = d.extractor.Size()
		window   = make([]uint8, size*size)
		features []float64
		err      error
	)
	for y := 0; y+d.WindowSize <= f.Rows; y += stride {
		for x := 0; x+d.WindowSize <= f.Cols; x += stride {
			rect := image.Rect(x, y, x+d.WindowSize, y+d.WindowSize)
			d.sample(gray, rect, window)

			features, err = d.extractor.ExtractInto(features, window)
			if err != nil {
				return image.Rectangle{}, false, err
			}
			face, err := d.model.Classifier.Predict(features)
			if err != nil {
				return image.Rectangle{}, false, err
			}
			if face {
				return rect, true, nil
			}
		}
	}
	return image.Rectangle{}, false, nil
}

// sample resizes the window region to the feature window and stores the result in dst.
func (d *WindowDetector) sample(gray *image.Gray, rect image.Rectangle, dst []uint8) {
	size := d.extractor.Size()
	sub := gray.SubImage(rect).(*image.Gray)

	if rect.Dx() == size && rect.Dy() == size {
		for y := 0; y < size; y++ {
			off := sub.PixOffset(rect.Min.X, rect.Min.Y+y)
			copy(dst[y*size:(y+1)*size], sub.Pix[off:off+size])
		}
		return
	}

	// The resized image is gray, so any of the color channels holds the intensity.
	res := imaging.Resize(sub, size, size, imaging.Linear)
	for i := 0; i < size*size; i++ {
		dst[i] = res.Pix[i*4]
	}
}

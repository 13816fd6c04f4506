package rollcall

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Rect is a weighted rectangle of a Haar-like feature, expressed in
// feature window coordinates.
type Rect struct {
	X, Y, W, H int
	Weight     float64
}

// UnmarshalYAML accepts either the compact [x, y, w, h, weight] tuple
// or a mapping with the same field names.
func (r *Rect) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var tuple []float64
		if err := value.Decode(&tuple); err != nil {
			return err
		}
		if len(tuple) != 5 {
			return fmt.Errorf("%w: rectangle needs 5 values, got %d (line %d)", ErrInvalidModel, len(tuple), value.Line)
		}
		*r = Rect{
			X:      int(tuple[0]),
			Y:      int(tuple[1]),
			W:      int(tuple[2]),
			H:      int(tuple[3]),
			Weight: tuple[4],
		}
		return nil
	}

	var m struct {
		X      int     `yaml:"x"`
		Y      int     `yaml:"y"`
		W      int     `yaml:"w"`
		H      int     `yaml:"h"`
		Weight float64 `yaml:"weight"`
	}
	if err := value.Decode(&m); err != nil {
		return err
	}
	*r = Rect{X: m.X, Y: m.Y, W: m.W, H: m.H, Weight: m.Weight}
	return nil
}

// inside reports whether the rectangle fits in a size×size window.
func (r Rect) inside(size int) bool {
	return r.X >= 0 && r.Y >= 0 && r.W >= 0 && r.H >= 0 &&
		r.X+r.W <= size && r.Y+r.H <= size
}

// FeatureTemplate is a single Haar-like feature: a signed combination of rectangle sums.
type FeatureTemplate struct {
	ID    string `yaml:"id"`
	Rects []Rect `yaml:"rects"`
}

// FeatureExtractor evaluates a fixed set of feature templates over a square window.
type FeatureExtractor struct {
	size      int
	templates []FeatureTemplate
}

// NewFeatureExtractor returns an extractor for size×size windows.
func NewFeatureExtractor(size int, templates []FeatureTemplate) *FeatureExtractor {
	return &FeatureExtractor{
		size:      size,
		templates: templates,
	}
}

// Size returns the side of the square window the extractor works on.
func (fe *FeatureExtractor) Size() int { return fe.size }

// Extract computes the feature vector of a row-major size×size grayscale window.
func (fe *FeatureExtractor) Extract(window []uint8) ([]float64, error) {
	return fe.ExtractInto(nil, window)
}

// ExtractInto is like Extract but reuses dst when it has enough capacity.
func (fe *FeatureExtractor) ExtractInto(dst []float64, window []uint8) ([]float64, error) {
	if len(fe.templates) == 0 {
		return nil, ErrModelNotLoaded
	}
	if len(window) != fe.size*fe.size {
		return nil, fmt.Errorf("window has %d pixels, expected %dx%d", len(window), fe.size, fe.size)
	}

	if cap(dst) < len(fe.templates) {
		dst = make([]float64, len(fe.templates))
	}
	dst = dst[:len(fe.templates)]

	ii := NewIntegralImage(window, fe.size, fe.size)
	for i, tpl := range fe.templates {
		var val float64
		for _, r := range tpl.Rects {
			sum, err := ii.RectSum(r.X, r.Y, r.W, r.H)
			if err != nil {
				return nil, fmt.Errorf("feature %d (%s): %w", i, tpl.ID, err)
			}
			val += r.Weight * float64(sum)
		}
		dst[i] = val
	}
	return dst, nil
}

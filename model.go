package rollcall

import (
	"fmt"

	"github.com/classtrack/rollcall/utils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFeatureWindow is the side of the square window the Haar features are defined on.
const DefaultFeatureWindow = 24

// Model is a pre-trained Haar feature set together with its boosted classifier.
// It is read-only once loaded and can be shared between goroutines.
type Model struct {
	Window     int               `yaml:"window"`
	Features   []FeatureTemplate `yaml:"features"`
	Classifier StrongClassifier  `yaml:"classifier"`
}

// LoadModel reads a model file from a local path or URL.
// Both YAML and JSON encodings are accepted.
func LoadModel(src string) (*Model, error) {
	data, err := utils.ReadSource(src)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading the model file %s", src)
	}
	m, err := ParseModel(data)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing the model file %s", src)
	}
	return m, nil
}

// ParseModel decodes and validates a serialized model.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Window == 0 {
		m.Window = DefaultFeatureWindow
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the classifier can be evaluated against the feature set.
func (m *Model) Validate() error {
	if m == nil || len(m.Features) == 0 || len(m.Classifier) == 0 {
		return ErrModelNotLoaded
	}
	if m.Window <= 0 {
		return fmt.Errorf("%w: window size %d", ErrInvalidModel, m.Window)
	}
	for i, f := range m.Features {
		if len(f.Rects) == 0 {
			return fmt.Errorf("%w: feature %d has no rectangles", ErrInvalidModel, i)
		}
		for _, r := range f.Rects {
			if !r.inside(m.Window) {
				return fmt.Errorf("%w: feature %d rectangle %+v exceeds the %dx%d window",
					ErrInvalidModel, i, r, m.Window, m.Window)
			}
		}
	}
	for i, rule := range m.Classifier {
		if rule.FeatureIdx < 0 || rule.FeatureIdx >= len(m.Features) {
			return fmt.Errorf("%w: rule %d references feature %d of %d",
				ErrInvalidModel, i, rule.FeatureIdx, len(m.Features))
		}
	}
	return nil
}

// Extractor returns a feature extractor bound to the model's templates.
func (m *Model) Extractor() *FeatureExtractor {
	return NewFeatureExtractor(m.Window, m.Features)
}

package rollcall

import "fmt"

// WeakRule is a single threshold test over one feature, weighted by its alpha.
type WeakRule struct {
	FeatureIdx int     `yaml:"feature_idx" json:"feature_idx"`
	Threshold  float64 `yaml:"threshold" json:"threshold"`
	Polarity   float64 `yaml:"polarity" json:"polarity"`
	Alpha      float64 `yaml:"alpha" json:"alpha"`
}

// vote returns +1 when the rule fires for the feature vector and -1 otherwise.
func (w WeakRule) vote(features []float64) float64 {
	if w.Polarity*features[w.FeatureIdx] < w.Polarity*w.Threshold {
		return 1
	}
	return -1
}

// StrongClassifier is a weighted ensemble of weak rules.
// Rules are evaluated in declaration order.
type StrongClassifier []WeakRule

// Score returns the weighted vote total of the ensemble.
func (sc StrongClassifier) Score(features []float64) (float64, error) {
	if len(sc) == 0 {
		return 0, ErrModelNotLoaded
	}

	var total float64
	for i, rule := range sc {
		if rule.FeatureIdx < 0 || rule.FeatureIdx >= len(features) {
			return 0, fmt.Errorf("rule %d references feature %d of %d", i, rule.FeatureIdx, len(features))
		}
		total += rule.Alpha * rule.vote(features)
	}
	return total, nil
}

// Predict reports whether the feature vector is classified as a face.
// A zero total counts as a face.
func (sc StrongClassifier) Predict(features []float64) (bool, error) {
	total, err := sc.Score(features)
	if err != nil {
		return false, err
	}
	return total >= 0, nil
}

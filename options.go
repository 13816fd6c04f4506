package rollcall

import (
	"fmt"
	"runtime"
)

// FailurePolicy decides what happens to frames that cannot be classified.
type FailurePolicy string

const (
	// SkipFailed leaves failed frames out of the aggregation.
	SkipFailed FailurePolicy = "skip"
	// FailedAsNegative feeds failed frames to the aggregator as negative.
	FailedAsNegative FailurePolicy = "negative"
)

// Options holds every tunable of the frame classification pipeline.
type Options struct {
	Strategy string

	// Sliding window strategy.
	ModelPath       string
	WindowSize      int
	Stride          int
	BrightnessLimit float64

	// Cascade strategy.
	FaceCascade string
	EyeCascade  string
	EyeFinder   string
	FaceAngle   float64
	Face        CascadeParams
	Eyes        CascadeParams

	PromotionThreshold int
	FailurePolicy      FailurePolicy
	Workers            int
}

// DefaultOptions returns the settings the detectors were tuned with.
func DefaultOptions() Options {
	return Options{
		Strategy:        StrategyHaar,
		WindowSize:      64,
		Stride:          10,
		BrightnessLimit: 151,
		EyeFinder:       EyesPuploc,
		Face: CascadeParams{
			MinSize:      60,
			ShiftFactor:  0.1,
			ScaleFactor:  1.1,
			IoUThreshold: 0.2,
			MinScore:     5,
		},
		Eyes: CascadeParams{
			ShiftFactor:  0.1,
			ScaleFactor:  1.1,
			IoUThreshold: 0.1,
			MinScore:     1,
		},
		PromotionThreshold: DefaultPromotionThreshold,
		FailurePolicy:      SkipFailed,
		Workers:            runtime.NumCPU(),
	}
}

// Validate rejects option combinations the pipeline cannot run with.
func (o Options) Validate() error {
	switch o.Strategy {
	case StrategyHaar:
		if o.WindowSize <= 0 {
			return fmt.Errorf("window size must be positive, got %d", o.WindowSize)
		}
		if o.Stride <= 0 {
			return fmt.Errorf("stride must be positive, got %d", o.Stride)
		}
	case StrategyCascade:
		if o.EyeFinder != EyesCascade && o.EyeFinder != EyesPuploc {
			return fmt.Errorf("unknown eye finder %q", o.EyeFinder)
		}
		if o.Face.ScaleFactor <= 1 || o.Eyes.ScaleFactor <= 1 {
			return fmt.Errorf("cascade scale factor must be greater than 1")
		}
	default:
		return fmt.Errorf("unknown detection strategy %q", o.Strategy)
	}
	switch o.FailurePolicy {
	case SkipFailed, FailedAsNegative:
	default:
		return fmt.Errorf("unknown failure policy %q", o.FailurePolicy)
	}
	return nil
}

// NewDetector loads the model files named in the options and builds the
// detector for the configured strategy. Missing files surface as ErrModelNotLoaded.
func NewDetector(o Options) (Detector, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	switch o.Strategy {
	case StrategyCascade:
		if o.FaceCascade == "" || o.EyeCascade == "" {
			return nil, fmt.Errorf("%w: face and eye cascades are required", ErrModelNotLoaded)
		}
		face, err := LoadCascade(o.FaceCascade)
		if err != nil {
			return nil, err
		}

		var eyes EyeFinder
		if o.EyeFinder == EyesPuploc {
			plc, err := LoadPuplocCascade(o.EyeCascade)
			if err != nil {
				return nil, err
			}
			eyes = &PuplocEyes{Cascade: plc}
		} else {
			classifier, err := LoadCascade(o.EyeCascade)
			if err != nil {
				return nil, err
			}
			eyes = &CascadeEyes{Classifier: classifier, Params: o.Eyes, Angle: o.FaceAngle}
		}
		return NewCascadeDetector(face, eyes, o.Face, o.FaceAngle), nil
	default:
		if o.ModelPath == "" {
			return nil, fmt.Errorf("%w: model path is required", ErrModelNotLoaded)
		}
		m, err := LoadModel(o.ModelPath)
		if err != nil {
			return nil, err
		}
		return NewWindowDetector(m, o.WindowSize, o.Stride, o.BrightnessLimit), nil
	}
}

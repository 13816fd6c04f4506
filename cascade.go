package rollcall

import (
	"fmt"
	"image"

	"github.com/classtrack/rollcall/utils"
	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// Eye finder kinds.
const (
	EyesCascade = "cascade"
	EyesPuploc  = "puploc"
)

// CascadeParams holds the settings of a single pigo cascade run.
// A zero MinSize or MaxSize is derived from the searched region.
type CascadeParams struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinScore     float32
}

// LoadCascade unpacks a pigo object cascade from a local path or URL.
func LoadCascade(src string) (*pigo.Pigo, error) {
	data, err := utils.ReadSource(src)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading the cascade file %s", src)
	}
	classifier, err := unpackCascade(data)
	if err != nil {
		return nil, errors.Wrapf(err, "error unpacking the cascade file %s", src)
	}
	return classifier, nil
}

// unpackCascade decodes a pigo cascade, turning the out of range
// panics pigo raises on truncated input into an error.
func unpackCascade(data []byte) (classifier *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed cascade: %v", r)
		}
	}()
	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	return pigo.NewPigo().Unpack(data)
}

// LoadPuplocCascade unpacks a pigo pupil localization cascade from a local path or URL.
func LoadPuplocCascade(src string) (*pigo.PuplocCascade, error) {
	data, err := utils.ReadSource(src)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading the puploc cascade file %s", src)
	}
	plc, err := unpackPuploc(data)
	if err != nil {
		return nil, errors.Wrapf(err, "error unpacking the puploc cascade file %s", src)
	}
	return plc, nil
}

func unpackPuploc(data []byte) (plc *pigo.PuplocCascade, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed puploc cascade: %v", r)
		}
	}()
	return pigo.NewPuplocCascade().UnpackCascade(data)
}

// runCascade runs the classifier over the frame and returns the clustered
// detections scoring at least p.MinScore, in the order pigo reports them.
func runCascade(classifier *pigo.Pigo, p CascadeParams, f *Frame, angle float64) []pigo.Detection {
	if f.Cols == 0 || f.Rows == 0 {
		return nil
	}
	longest := utils.Max(f.Cols, f.Rows)
	maxSize := p.MaxSize
	if maxSize <= 0 {
		maxSize = longest
	}
	maxSize = utils.Clamp(maxSize, 1, longest)
	minSize := p.MinSize
	if minSize <= 0 {
		minSize = utils.Max(utils.Min(f.Cols, f.Rows)/8, 4)
	}
	if minSize > maxSize {
		return nil
	}

	cParams := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: p.ShiftFactor,
		ScaleFactor: p.ScaleFactor,
		ImageParams: f.imageParams(),
	}

	// Run the classifier over the obtained leaf nodes and return the detection results.
	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := classifier.RunCascade(cParams, angle)

	// Calculate the intersection over union (IoU) of two clusters.
	dets = classifier.ClusterDetections(dets, p.IoUThreshold)

	out := dets[:0]
	for _, det := range dets {
		if det.Q >= p.MinScore {
			out = append(out, det)
		}
	}
	return out
}

// faceRect converts a pigo detection (center and side) into a rectangle.
func faceRect(det pigo.Detection) image.Rectangle {
	return image.Rect(
		det.Col-det.Scale/2,
		det.Row-det.Scale/2,
		det.Col+det.Scale/2,
		det.Row+det.Scale/2,
	)
}

// EyeFinder counts the eyes visible inside a detected face.
type EyeFinder interface {
	FindEyes(f *Frame, face pigo.Detection) int
}

// CascadeEyes runs an object cascade trained on eyes inside the face box.
type CascadeEyes struct {
	Classifier *pigo.Pigo
	Params     CascadeParams
	Angle      float64
}

// FindEyes implements EyeFinder.
func (e *CascadeEyes) FindEyes(f *Frame, face pigo.Detection) int {
	roi := f.Crop(faceRect(face))
	if len(roi.Pixels) == 0 {
		return 0
	}
	params := e.Params
	if params.MaxSize <= 0 {
		params.MaxSize = utils.Max(roi.Cols, roi.Rows) / 2
	}
	return len(runCascade(e.Classifier, params, roi, e.Angle))
}

// PuplocPerturbs is the number of jittered runs per pupil. pigo collects them
// in a fixed 63 slot buffer and takes the median over all slots, so any other
// count either overflows the buffer or mixes in stale values.
const PuplocPerturbs = 63

// PuplocEyes localizes both pupils with a pupil localization cascade.
// A pupil counts when it lands inside the face box.
type PuplocEyes struct {
	Cascade *pigo.PuplocCascade
}

// FindEyes implements EyeFinder.
func (e *PuplocEyes) FindEyes(f *Frame, face pigo.Detection) int {
	var (
		box    = faceRect(face).Intersect(image.Rect(0, 0, f.Cols, f.Rows))
		params = f.imageParams()
		found  int
	)
	for _, side := range []float32{-1, 1} {
		pl := pigo.Puploc{
			Row:      face.Row - int(0.075*float32(face.Scale)),
			Col:      face.Col + int(side*0.175*float32(face.Scale)),
			Scale:    float32(face.Scale) * 0.25,
			Perturbs: PuplocPerturbs,
		}
		eye := e.Cascade.RunDetector(pl, params, 0.0, false)
		if eye.Row > 0 && eye.Col > 0 && image.Pt(eye.Col, eye.Row).In(box) {
			found++
		}
	}
	return found
}

// CascadeDetector finds faces with a pigo cascade and checks the first
// face for visible eyes. Only one participant per stream is assumed, so
// further candidates are ignored.
type CascadeDetector struct {
	face *pigo.Pigo
	eyes EyeFinder

	Params CascadeParams
	Angle  float64
}

// NewCascadeDetector returns a detector using the given face cascade and eye finder.
func NewCascadeDetector(face *pigo.Pigo, eyes EyeFinder, params CascadeParams, angle float64) *CascadeDetector {
	return &CascadeDetector{
		face:   face,
		eyes:   eyes,
		Params: params,
		Angle:  angle,
	}
}

// Name implements Detector.
func (d *CascadeDetector) Name() string { return StrategyCascade }

// Faces returns the face candidates of the frame in detector order.
func (d *CascadeDetector) Faces(f *Frame) ([]pigo.Detection, error) {
	if d.face == nil {
		return nil, ErrModelNotLoaded
	}
	return runCascade(d.face, d.Params, f, d.Angle), nil
}

// Detect implements Detector.
func (d *CascadeDetector) Detect(f *Frame) (Label, error) {
	if d.face == nil || d.eyes == nil {
		return NoLabel, ErrModelNotLoaded
	}
	faces, err := d.Faces(f)
	if err != nil {
		return NoLabel, err
	}
	if len(faces) == 0 {
		return Negative, nil
	}
	if d.eyes.FindEyes(f, faces[0]) > 0 {
		return Positive, nil
	}
	return SemiPositive, nil
}

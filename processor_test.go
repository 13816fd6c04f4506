package rollcall

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// intensityDetector labels frames by their mean brightness:
// dark → negative, mid → semi-positive, bright → positive.
type intensityDetector struct {
	calls atomic.Int64
}

func (d *intensityDetector) Name() string { return "intensity" }

func (d *intensityDetector) Detect(f *Frame) (Label, error) {
	d.calls.Add(1)
	switch m := f.MeanIntensity(); {
	case m < 85:
		return Negative, nil
	case m < 170:
		return SemiPositive, nil
	default:
		return Positive, nil
	}
}

type brokenDetector struct{ err error }

func (d brokenDetector) Name() string                 { return "broken" }
func (d brokenDetector) Detect(*Frame) (Label, error) { return NoLabel, d.err }

var (
	framesOnce sync.Once
	frameBytes map[Label][]byte
)

func encodedFrame(t *testing.T, l Label) []byte {
	t.Helper()
	framesOnce.Do(func() {
		frameBytes = make(map[Label][]byte)
		for l, v := range map[Label]uint8{Negative: 10, SemiPositive: 128, Positive: 240} {
			var buf bytes.Buffer
			img := image.NewGray(image.Rect(0, 0, 8, 8))
			for i := range img.Pix {
				img.Pix[i] = v
			}
			if err := png.Encode(&buf, img); err != nil {
				panic(err)
			}
			frameBytes[l] = buf.Bytes()
		}
	})
	return frameBytes[l]
}

func encodeSequence(t *testing.T, labels ...Label) [][]byte {
	out := make([][]byte, len(labels))
	for i, l := range labels {
		out[i] = encodedFrame(t, l)
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestProcessor(d Detector, policy FailurePolicy) *Processor {
	opts := DefaultOptions()
	opts.FailurePolicy = policy
	opts.Workers = 4
	return NewProcessor(d, opts, quietLogger())
}

func TestProcessor_ReportsEveryUser(t *testing.T) {
	p := newTestProcessor(&intensityDetector{}, SkipFailed)

	semiRun := append([]Label{Positive}, repeat(SemiPositive, 18)...)
	req := Request{
		MeetingID: "m001",
		Users: []UserFrames{
			{UserID: "alice", Frames: encodeSequence(t, semiRun...)},
			{UserID: "bob", Frames: encodeSequence(t, Negative, Positive, Negative)},
			{UserID: "carol"},
		},
	}

	report, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, report.Users, 3)

	alice := report.Users["alice"]
	assert.Equal(t, 2, alice.Positive)
	assert.Equal(t, 17, alice.SemiPositive)
	assert.Equal(t, SemiPositive, alice.PreviousLabel)
	assert.Equal(t, 19, alice.FramesProcessed)

	bob := report.Users["bob"]
	assert.Equal(t, 1, bob.Positive)
	assert.Equal(t, 2, bob.Negative)
	assert.Equal(t, Negative, bob.PreviousLabel)

	assert.Equal(t, UserReport{}, report.Users["carol"])
}

func TestProcessor_PreservesFrameOrderPerUser(t *testing.T) {
	p := newTestProcessor(&intensityDetector{}, SkipFailed)

	// Interleaving would break the semi-positive run and lose the promotion.
	users := make([]UserFrames, 0, 8)
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"} {
		users = append(users, UserFrames{UserID: id, Frames: encodeSequence(t, repeat(SemiPositive, 18)...)})
	}

	report, err := p.Process(context.Background(), Request{MeetingID: "m", Users: users})
	require.NoError(t, err)
	for id, r := range report.Users {
		assert.Equal(t, 1, r.Positive, id)
		assert.Equal(t, 17, r.SemiPositive, id)
	}
}

func TestProcessor_MergesRepeatedUsers(t *testing.T) {
	p := newTestProcessor(&intensityDetector{}, SkipFailed)
	req := Request{Users: []UserFrames{
		{UserID: "alice", Frames: encodeSequence(t, SemiPositive)},
		{UserID: "alice", Frames: encodeSequence(t, SemiPositive)},
	}}

	report, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Users["alice"].SemiPositive)
}

func TestProcessor_FailurePolicies(t *testing.T) {
	frames := [][]byte{
		encodedFrame(t, Positive),
		[]byte("garbage"),
		encodedFrame(t, Positive),
	}

	report, err := newTestProcessor(&intensityDetector{}, SkipFailed).
		Process(context.Background(), Request{Users: []UserFrames{{UserID: "a", Frames: frames}}})
	require.NoError(t, err)
	assert.Equal(t, UserReport{
		Positive:        2,
		PreviousLabel:   Positive,
		FramesProcessed: 2,
		FramesSkipped:   1,
		FinalPercent:    100,
	}, report.Users["a"])

	report, err = newTestProcessor(&intensityDetector{}, FailedAsNegative).
		Process(context.Background(), Request{Users: []UserFrames{{UserID: "a", Frames: frames}}})
	require.NoError(t, err)
	assert.Equal(t, UserReport{
		Positive:        2,
		Negative:        1,
		PreviousLabel:   Positive,
		FramesProcessed: 3,
		FinalPercent:    66.67,
	}, report.Users["a"])
}

func TestProcessor_DetectorErrorsAreFrameFailures(t *testing.T) {
	p := newTestProcessor(brokenDetector{err: errors.New("boom")}, SkipFailed)

	report, err := p.Process(context.Background(), Request{Users: []UserFrames{
		{UserID: "a", Frames: encodeSequence(t, Positive, Negative)},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Users["a"].FramesSkipped)
	assert.Equal(t, NotAvailable, report.Users["a"].PreviousLabel.String())
}

func TestProcessor_ModelNotLoadedFailsRequest(t *testing.T) {
	p := newTestProcessor(brokenDetector{err: ErrModelNotLoaded}, SkipFailed)
	_, err := p.Process(context.Background(), Request{Users: []UserFrames{
		{UserID: "a", Frames: encodeSequence(t, Positive)},
	}})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))

	_, err = newTestProcessor(nil, SkipFailed).Process(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
}

func TestProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProcessor(&intensityDetector{}, SkipFailed).Process(ctx, Request{Users: []UserFrames{
		{UserID: "a", Frames: encodeSequence(t, Positive)},
	}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProcessor_ProgressAndSingleUser(t *testing.T) {
	det := &intensityDetector{}
	p := newTestProcessor(det, SkipFailed)

	var seen atomic.Int64
	p.Progress = func(string) { seen.Add(1) }

	r, err := p.ProcessUser(context.Background(), "m", UserFrames{
		UserID: "a",
		Frames: encodeSequence(t, Positive, SemiPositive, SemiPositive),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), seen.Load())
	assert.Equal(t, int64(3), det.calls.Load())
	assert.Equal(t, 1, r.Positive)
	assert.Equal(t, 1, r.SemiPositive)
	assert.Equal(t, 75.0, r.FinalPercent)
}

func TestProcessor_GrayEncodedColor(t *testing.T) {
	// Sanity check that the fixtures decode to the intended brightness.
	f, err := DecodeFrame(encodedFrame(t, SemiPositive))
	require.NoError(t, err)
	assert.Equal(t, 128.0, f.MeanIntensity())
	assert.Equal(t, color.Gray{Y: 128}, f.Gray().GrayAt(0, 0))
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	o := DefaultOptions()
	o.Strategy = "magic"
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.FailurePolicy = "retry"
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.Strategy = StrategyCascade
	assert.NoError(t, o.Validate())

	o.EyeFinder = "nose"
	assert.Error(t, o.Validate())
}

func TestNewDetector_RequiresModelFiles(t *testing.T) {
	_, err := NewDetector(DefaultOptions())
	assert.True(t, errors.Is(err, ErrModelNotLoaded))

	o := DefaultOptions()
	o.Strategy = StrategyCascade
	_, err = NewDetector(o)
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
}

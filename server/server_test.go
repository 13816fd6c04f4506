package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/classtrack/rollcall"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brightDetector reports a face on bright frames and nothing on dark ones.
type brightDetector struct{ err error }

func (d brightDetector) Name() string { return "bright" }

func (d brightDetector) Detect(f *rollcall.Frame) (rollcall.Label, error) {
	if d.err != nil {
		return rollcall.NoLabel, d.err
	}
	if f.MeanIntensity() > 127 {
		return rollcall.Positive, nil
	}
	return rollcall.Negative, nil
}

type memorySaver struct {
	reports []*rollcall.AttendanceReport
	err     error
}

func (m *memorySaver) SaveReport(_ context.Context, r *rollcall.AttendanceReport) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

func frame(t *testing.T, value uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newServer(d rollcall.Detector, saver ReportSaver) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	opts := rollcall.DefaultOptions()
	opts.Workers = 2
	return New(rollcall.NewProcessor(d, opts, logger), saver, logger)
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestUserAttendance(t *testing.T) {
	s := newServer(brightDetector{}, nil)

	rec := post(t, s, "/getAttendance", userRequest{
		UserID:    "alice",
		MeetingID: "m001",
		Images: []string{
			frame(t, 250),
			"data:image/png;base64," + frame(t, 250),
			"not base64 !!",
			frame(t, 5),
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got rollcall.UserReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, rollcall.UserReport{
		Positive:        2,
		Negative:        1,
		PreviousLabel:   rollcall.Negative,
		FramesProcessed: 3,
		FramesSkipped:   1,
		FinalPercent:    66.67,
	}, got)
}

func TestUserAttendance_BadRequests(t *testing.T) {
	s := newServer(brightDetector{}, nil)

	assert.Equal(t, http.StatusBadRequest, post(t, s, "/getAttendance", "{").Code)
	assert.Equal(t, http.StatusBadRequest, post(t, s, "/getAttendance", userRequest{MeetingID: "m"}).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, s, "/attendance", meetingRequest{}).Code)
}

func TestUserAttendance_ModelNotLoaded(t *testing.T) {
	s := newServer(brightDetector{err: rollcall.ErrModelNotLoaded}, nil)

	rec := post(t, s, "/getAttendance", userRequest{UserID: "alice", Images: []string{frame(t, 200)}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), rollcall.ErrModelNotLoaded.Error())
}

func TestMeetingAttendance(t *testing.T) {
	saver := &memorySaver{}
	s := newServer(brightDetector{}, saver)

	rec := post(t, s, "/attendance", meetingRequest{
		MeetingID: "m001",
		Users: map[string][]string{
			"alice": {frame(t, 250), frame(t, 250)},
			"bob":   {frame(t, 0)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got rollcall.AttendanceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "m001", got.MeetingID)
	assert.Equal(t, 2, got.Users["alice"].Positive)
	assert.Equal(t, 100.0, got.Users["alice"].FinalPercent)
	assert.Equal(t, 1, got.Users["bob"].Negative)

	require.Len(t, saver.reports, 1)
	assert.Equal(t, got.ID, saver.reports[0].ID)
}

func TestMeetingAttendance_SaveFails(t *testing.T) {
	s := newServer(brightDetector{}, &memorySaver{err: errors.New("database is down")})

	rec := post(t, s, "/attendance", meetingRequest{
		MeetingID: "m001",
		Users:     map[string][]string{"alice": {frame(t, 250)}},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newServer(brightDetector{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","strategy":"bright"}`, rec.Body.String())
}

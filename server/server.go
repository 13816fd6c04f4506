// Package server exposes the attendance processor over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/classtrack/rollcall"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ReportSaver persists finished attendance reports.
type ReportSaver interface {
	SaveReport(ctx context.Context, r *rollcall.AttendanceReport) error
}

// Server is the HTTP adapter in front of a Processor.
type Server struct {
	processor *rollcall.Processor
	saver     ReportSaver
	logger    *logrus.Logger
	engine    *gin.Engine
}

type userRequest struct {
	UserID    string   `json:"userId"`
	MeetingID string   `json:"meetingId"`
	Images    []string `json:"images"`
}

type meetingRequest struct {
	MeetingID string              `json:"meetingId"`
	Users     map[string][]string `json:"users"`
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// New builds the routes. saver may be nil, in which case reports are not persisted.
func New(p *rollcall.Processor, saver ReportSaver, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		processor: p,
		saver:     saver,
		logger:    logger,
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.logRequests)
	s.engine.GET("/healthz", s.health)
	s.engine.POST("/getAttendance", s.userAttendance)
	s.engine.POST("/attendance", s.meetingAttendance)
	return s
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("attendance server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	if s.processor.Detector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "model not loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "strategy": s.processor.Detector.Name()})
}

func (s *Server) userAttendance(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	report, err := s.processor.ProcessUser(c.Request.Context(), req.MeetingID, rollcall.UserFrames{
		UserID: req.UserID,
		Frames: s.decodeImages(req.Images),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) meetingAttendance(c *gin.Context) {
	var req meetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MeetingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meetingId is required"})
		return
	}

	users := make([]rollcall.UserFrames, 0, len(req.Users))
	for userID, images := range req.Users {
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty user id"})
			return
		}
		users = append(users, rollcall.UserFrames{UserID: userID, Frames: s.decodeImages(images)})
	}

	report, err := s.processor.Process(c.Request.Context(), rollcall.Request{
		MeetingID: req.MeetingID,
		Users:     users,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.saver != nil {
		if err := s.saver.SaveReport(c.Request.Context(), report); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, report)
}

// decodeImages turns base64 payloads, optionally wrapped in a data URL, into
// raw frames. Undecodable entries stay in place as empty frames so they are
// handled by the failure policy.
func (s *Server) decodeImages(images []string) [][]byte {
	frames := make([][]byte, len(images))
	for i, img := range images {
		if _, payload, ok := strings.Cut(img, ","); ok && strings.HasPrefix(img, "data:") {
			img = payload
		}
		data, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			s.logger.WithField("frame", i).WithError(err).Debug("invalid base64 frame")
			continue
		}
		frames[i] = data
	}
	return frames
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.Canceled) {
		status = http.StatusServiceUnavailable
	}
	s.logger.WithError(err).WithField("path", c.FullPath()).Error("attendance request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.WithFields(logrus.Fields{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start),
	}).Debug("request served")
}

package rollcall

import "errors"

var (
	// ErrModelNotLoaded is returned when a detector is used without its
	// classifier, feature templates or cascades. No frame can be classified.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrFrameDecodeFailed is returned when a frame's bytes cannot be
	// materialized into a pixel buffer.
	ErrFrameDecodeFailed = errors.New("frame decode failed")

	// ErrRectOutOfBounds is returned for rectangle queries that do not fit
	// inside the integral image.
	ErrRectOutOfBounds = errors.New("rectangle out of bounds")

	// ErrInvalidModel is returned when a model file is structurally wrong.
	ErrInvalidModel = errors.New("invalid model")
)

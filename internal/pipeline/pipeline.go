// Package pipeline runs the capture, detect, match and render loop.
package pipeline

import (
	"context"
	"errors"

	"github.com/andresmejia3/facewatch/internal/vision"
)

var (
	// ErrQuit is returned when the user asks the display to close.
	ErrQuit = errors.New("quit requested")
	// ErrCaptureFailed is returned after too many consecutive failed reads.
	ErrCaptureFailed = errors.New("capture device stopped delivering frames")
	// ErrDetectionFailed is returned after too many consecutive failed detections.
	ErrDetectionFailed = errors.New("face detection kept failing")
	// ErrEndOfStream is returned by sources that have no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Frame is one captured image. Implementations own native memory and must
// be closed.
type Frame interface {
	// Downscale returns a new frame shrunk by factor in both dimensions.
	Downscale(factor float64) (Frame, error)
	// JPEG encodes the frame for engines that consume compressed images.
	JPEG() ([]byte, error)
	Close() error
}

// Source delivers frames from a camera or stream.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Detector finds faces and computes their embeddings on a frame. Boxes are
// in the coordinates of the frame it was given.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]vision.Observation, error)
}

// Display renders annotated frames and reports whether the user wants out.
type Display interface {
	Show(frame Frame, matches []vision.Match) error
	// Quit polls for a quit request (key press or window close).
	Quit() bool
	Close() error
}

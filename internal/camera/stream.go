package camera

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/andresmejia3/facewatch/internal/pipeline"
	"github.com/andresmejia3/facewatch/internal/utils"
	"gocv.io/x/gocv"
)

// Stream reads frames from any ffmpeg input (video file, RTSP URL, v4l2
// device) through an MJPEG pipe.
type Stream struct {
	Input string

	jpegs *utils.JpegStream
	log   *slog.Logger
}

// OpenStream starts ffmpeg on input. fps <= 0 keeps the input frame rate.
func OpenStream(ctx context.Context, input string, fps int, log *slog.Logger) (*Stream, error) {
	if log == nil {
		log = slog.Default()
	}
	jpegs, err := utils.StartJpegStream(ctx, func(ctx context.Context) *exec.Cmd {
		return utils.NewFFmpegCmd(ctx, input, fps)
	})
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", input, err)
	}
	return &Stream{Input: input, jpegs: jpegs, log: log}, nil
}

// Read returns the next decoded frame. A drained stream yields
// pipeline.ErrEndOfStream; if ffmpeg failed its error is returned instead.
func (s *Stream) Read(ctx context.Context) (pipeline.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case task, ok := <-s.jpegs.Frames():
		if !ok {
			if err := s.jpegs.Err(); err != nil {
				s.log.Error("ffmpeg stream ended with an error", "input", s.Input, "error", err)
				return nil, err
			}
			return nil, pipeline.ErrEndOfStream
		}
		mat, err := gocv.IMDecode(task.Data, gocv.IMReadColor)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", task.Index, err)
		}
		if mat.Empty() {
			mat.Close()
			return nil, fmt.Errorf("decode frame %d: %w", task.Index, errEmptyFrame)
		}
		return &Frame{Mat: mat}, nil
	}
}

// Close stops ffmpeg and waits until it has exited.
func (s *Stream) Close() error {
	return s.jpegs.Close()
}

package utils

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/andresmejia3/facewatch/internal/types"
)

const megabyte = 1024 * 1024

// JpegStream runs a helper that writes concatenated JPEGs to stdout (ffmpeg
// with image2pipe) and hands them out one frame at a time. The helper is
// always reaped, whether the stream drains, fails or is closed early.
type JpegStream struct {
	Cmd *SafeCommand

	frames chan types.FrameTask
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// StartJpegStream builds the helper with newCmd, bound to a child of ctx,
// and starts reading its stdout.
func StartJpegStream(ctx context.Context, newCmd func(context.Context) *exec.Cmd) (*JpegStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	c := newCmd(ctx)
	proc := &SafeCommand{Cmd: c, Stderr: &bytes.Buffer{}}
	c.Stderr = proc.Stderr

	out, err := c.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := c.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", c.Path, err)
	}

	s := &JpegStream{
		Cmd:    proc,
		frames: make(chan types.FrameTask, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.pump(ctx, out)
	return s, nil
}

// Frames delivers frames in order and is closed when the stream ends.
func (s *JpegStream) Frames() <-chan types.FrameTask {
	return s.frames
}

// Err reports why the stream ended early, if it did. Valid once Frames is closed.
func (s *JpegStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *JpegStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *JpegStream) pump(ctx context.Context, out io.Reader) {
	defer close(s.done)
	defer close(s.frames)
	defer s.reap(ctx)

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(SplitJpeg)

	idx := 0
	for scanner.Scan() {
		idx++
		task := types.FrameTask{Index: idx, Data: bytes.Clone(scanner.Bytes())}
		select {
		case s.frames <- task:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.setErr(fmt.Errorf("frame scanner failed: %w", err))
		// The helper may be blocked on a full pipe.
		s.cancel()
	}
}

// reap waits for the helper. Exits caused by cancellation are not errors.
func (s *JpegStream) reap(ctx context.Context) {
	err := s.Cmd.Wait()
	if err != nil && ctx.Err() == nil {
		s.setErr(fmt.Errorf("%s failed: %w: %s", s.Cmd.Path, err, bytes.TrimSpace(s.Cmd.Stderr.Bytes())))
	}
}

// Close stops the helper and waits until it has been reaped.
func (s *JpegStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Package worker talks to an external face-recognition helper process over
// a length-prefixed pipe protocol.
//
// Requests are [uint32 big-endian length][JPEG bytes] on the helper's stdin.
// Responses are [uint32 big-endian length][JSON] on file descriptor 3, where
// the JSON is either a list of {"loc": [top, right, bottom, left], "vec": [...]}
// or {"error": "..."}.
package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/andresmejia3/facewatch/internal/pipeline"
	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/types"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/andresmejia3/facewatch/internal/vision"
)

// maxResponse bounds a single helper response.
const maxResponse = 64 * 1024 * 1024

// DefaultCommand starts the bundled face_recognition helper.
const DefaultCommand = "python3 -u python/worker.py"

// ErrWorker wraps errors reported by the helper itself.
var ErrWorker = errors.New("worker error")

type Worker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	mu sync.Mutex
}

// New starts the helper given as a shell-style command line.
func New(ctx context.Context, id int, command string) (*Worker, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, errors.New("empty worker command")
	}
	proc := utils.NewSafeCommand(ctx, argv[0], argv[1:]...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	proc.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := proc.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &Worker{
		ID:       id,
		Cmd:      proc,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one request and waits for its response.
func (w *Worker) Communicate(data []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // helper crashed before answering
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponse {
		return nil, fmt.Errorf("worker %d response of %d bytes exceeds limit", w.ID, respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame runs detection and encoding on one JPEG image.
func (w *Worker) ProcessFrame(jpeg []byte) ([]types.FaceResult, error) {
	resp, err := w.Communicate(jpeg)
	if err != nil {
		return nil, err
	}

	var faces []types.FaceResult
	if err := json.Unmarshal(resp, &faces); err != nil {
		// Check if it's an error object (e.g. {"error": "..."})
		var errorResult types.ErrorResult
		if json.Unmarshal(resp, &errorResult) == nil && errorResult.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrWorker, errorResult.Error)
		}
		return nil, fmt.Errorf("worker %d returned malformed JSON: %w", w.ID, err)
	}
	return faces, nil
}

// Detect implements pipeline.Detector.
func (w *Worker) Detect(_ context.Context, frame pipeline.Frame) ([]vision.Observation, error) {
	data, err := frame.JPEG()
	if err != nil {
		return nil, err
	}
	faces, err := w.ProcessFrame(data)
	if err != nil {
		return nil, err
	}
	obs := make([]vision.Observation, 0, len(faces))
	for _, f := range faces {
		o, err := f.Observation()
		if err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// EncodeFile implements reference.Encoder using the first face found.
func (w *Worker) EncodeFile(_ context.Context, path string) (vision.Embedding, error) {
	data, err := utils.ReadJPEG(path)
	if err != nil {
		return nil, err
	}
	faces, err := w.ProcessFrame(data)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, reference.ErrNoFace
	}
	o, err := faces[0].Observation()
	if err != nil {
		return nil, err
	}
	return o.Embedding, nil
}

// Close shuts the pipes and waits for the helper to exit.
func (w *Worker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}

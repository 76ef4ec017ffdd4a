package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/facewatch/internal/pipeline"
	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/vision"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

// newMockWorker returns a worker whose helper has already queued the given
// responses on its data pipe.
func newMockWorker(responses ...string) (*Worker, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	for _, r := range responses {
		binary.Write(dataPipeMock, binary.BigEndian, uint32(len(r)))
		dataPipeMock.WriteString(r)
	}
	// Cmd is nil because we aren't testing process management, just the protocol
	return &Worker{ID: 1, Stdin: stdinMock, DataPipe: dataPipeMock}, stdinMock
}

type jpegFrame struct{}

func (f jpegFrame) Downscale(float64) (pipeline.Frame, error) { return f, nil }
func (jpegFrame) JPEG() ([]byte, error)                        { return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil }
func (jpegFrame) Close() error                                 { return nil }

func TestProcessFrame(t *testing.T) {
	w, stdin := newMockWorker(`[{"loc":[10,40,50,5],"vec":[0.5,0.25]}]`)

	inputFrame := []byte{0xDE, 0xAD, 0xBE, 0xEF} // Fake image bytes
	resp, err := w.ProcessFrame(inputFrame)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	// Verify Go sent the correct data TO the helper
	sentData := stdin.Bytes()
	if len(sentData) != 4+len(inputFrame) {
		t.Errorf("Expected %d bytes sent, got %d", 4+len(inputFrame), len(sentData))
	}
	if binary.BigEndian.Uint32(sentData[:4]) != uint32(len(inputFrame)) {
		t.Errorf("Wrong length header %X", sentData[:4])
	}

	if len(resp) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(resp))
	}
	if math.Abs(resp[0].Vec[0]-0.5) > 1e-9 {
		t.Errorf("Expected vector[0] approx 0.5, got %f", resp[0].Vec[0])
	}
}

func TestProcessFrame_Error(t *testing.T) {
	errMsg := "Import Error: face_recognition"
	w, _ := newMockWorker(`{"error":"` + errMsg + `"}`)

	_, err := w.ProcessFrame([]byte("frame"))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrWorker) {
		t.Errorf("Expected ErrWorker, got %v", err)
	}
	if err.Error() != "worker error: "+errMsg {
		t.Errorf("Unexpected error message '%v'", err)
	}
}

func TestProcessFrame_Malformed(t *testing.T) {
	w, _ := newMockWorker(`not json`)
	if _, err := w.ProcessFrame([]byte("frame")); err == nil || errors.Is(err, ErrWorker) {
		t.Errorf("Expected malformed JSON error, got %v", err)
	}
}

func TestProcessFrame_HelperCrashed(t *testing.T) {
	w, _ := newMockWorker() // nothing queued: read hits EOF
	if _, err := w.ProcessFrame([]byte("frame")); err == nil {
		t.Error("Expected error when helper closes the pipe")
	}
}

func TestEncodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		response string
		want     vision.Embedding
		wantErr  error
	}{
		{
			name:     "first face wins",
			response: `[{"loc":[0,1,1,0],"vec":[1,2]},{"loc":[0,1,1,0],"vec":[3,4]}]`,
			want:     vision.Embedding{1, 2},
		},
		{
			name:     "no face",
			response: `[]`,
			wantErr:  reference.ErrNoFace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, stdin := newMockWorker(tt.response)
			got, err := w.EncodeFile(context.Background(), path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeFile failed: %v", err)
			}
			if len(got) != 2 || got[0] != tt.want[0] || got[1] != tt.want[1] {
				t.Errorf("Got %v, want %v", got, tt.want)
			}
			// PNG must have been transcoded before sending
			if !bytes.HasPrefix(stdin.Bytes()[4:], []byte{0xFF, 0xD8}) {
				t.Error("Expected JPEG payload on the wire")
			}
		})
	}
}

func TestDetect(t *testing.T) {
	w, _ := newMockWorker(`[{"loc":[10,40,50,5],"vec":[0.5]},{"loc":[1,2,3,4],"vec":[1]}]`)

	obs, err := w.Detect(context.Background(), jpegFrame{})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(obs))
	}
	want := vision.Box{Top: 10, Right: 40, Bottom: 50, Left: 5}
	if obs[0].Box != want {
		t.Errorf("Box = %+v, want %+v", obs[0].Box, want)
	}
}

func TestDetect_BadLocation(t *testing.T) {
	w, _ := newMockWorker(`[{"loc":[10,40],"vec":[0.5]}]`)
	if _, err := w.Detect(context.Background(), jpegFrame{}); err == nil {
		t.Error("Expected error for short location")
	}
}

func TestNewRejectsEmptyCommand(t *testing.T) {
	if _, err := New(context.Background(), 0, "   "); err == nil {
		t.Error("Expected error for empty command")
	}
}

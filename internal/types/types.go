package types

import (
	"fmt"

	"github.com/andresmejia3/facewatch/internal/vision"
)

// FrameTask is a single JPEG frame pulled off a stream source
type FrameTask struct {
	Index int
	Data  []byte
}

// FaceResult matches the JSON structure coming back from the worker helper
type FaceResult struct {
	Loc []int     `json:"loc"` // [top, right, bottom, left]
	Vec []float64 `json:"vec"` // 128-d face encoding
}

// Observation converts the wire form into a vision.Observation.
func (f FaceResult) Observation() (vision.Observation, error) {
	box, ok := vision.BoxFromLoc(f.Loc)
	if !ok {
		return vision.Observation{}, fmt.Errorf("face location has %d values, want 4", len(f.Loc))
	}
	if len(f.Vec) == 0 {
		return vision.Observation{}, fmt.Errorf("face at %v has an empty encoding", f.Loc)
	}
	emb := make(vision.Embedding, len(f.Vec))
	for i, v := range f.Vec {
		emb[i] = float32(v)
	}
	return vision.Observation{Box: box, Embedding: emb}, nil
}

// ErrorResult captures the error object returned by the helper on failure
type ErrorResult struct {
	Error string `json:"error"`
}

// Package facerec detects and encodes faces with dlib through go-face.
//
// The model directory must hold shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and, for CNN detection,
// mmod_human_face_detector.dat (see github.com/davisking/dlib-models).
package facerec

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/andresmejia3/facewatch/internal/pipeline"
	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/andresmejia3/facewatch/internal/vision"
)

// Engine wraps a go-face recognizer. dlib is not safe for concurrent use,
// so calls are serialized.
type Engine struct {
	rec *face.Recognizer
	cnn bool
	mu  sync.Mutex
}

// Options configures an Engine.
type Options struct {
	ModelsDir string
	// CNN selects the slower, more accurate MMOD detector.
	CNN bool
}

// New loads the dlib models.
func New(opts Options) (*Engine, error) {
	rec, err := face.NewRecognizer(opts.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("load face models from %s: %w", opts.ModelsDir, err)
	}
	return &Engine{rec: rec, cnn: opts.CNN}, nil
}

func (e *Engine) recognize(jpeg []byte) ([]face.Face, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cnn {
		return e.rec.RecognizeCNN(jpeg)
	}
	return e.rec.Recognize(jpeg)
}

// Detect implements pipeline.Detector.
func (e *Engine) Detect(_ context.Context, frame pipeline.Frame) ([]vision.Observation, error) {
	data, err := frame.JPEG()
	if err != nil {
		return nil, err
	}
	faces, err := e.recognize(data)
	if err != nil {
		return nil, err
	}
	obs := make([]vision.Observation, len(faces))
	for i, f := range faces {
		obs[i] = vision.Observation{
			Box:       vision.BoxFromRect(f.Rectangle),
			Embedding: descriptorToEmbedding(f.Descriptor),
		}
	}
	return obs, nil
}

// EncodeFile implements reference.Encoder. Only the first face of a
// group photo is kept.
func (e *Engine) EncodeFile(_ context.Context, path string) (vision.Embedding, error) {
	data, err := utils.ReadJPEG(path)
	if err != nil {
		return nil, err
	}
	faces, err := e.recognize(data)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, reference.ErrNoFace
	}
	return descriptorToEmbedding(faces[0].Descriptor), nil
}

// Close frees the dlib models.
func (e *Engine) Close() error {
	e.rec.Close()
	return nil
}

func descriptorToEmbedding(d face.Descriptor) vision.Embedding {
	emb := make(vision.Embedding, len(d))
	copy(emb, d[:])
	return emb
}

// Package camera captures frames with OpenCV and shows annotated frames in
// an OpenCV window.
package camera

import (
	"errors"
	"fmt"
	"image"

	"github.com/andresmejia3/facewatch/internal/pipeline"
	"gocv.io/x/gocv"
)

// Frame is a pipeline.Frame backed by an OpenCV Mat.
type Frame struct {
	Mat gocv.Mat
}

// Downscale resizes the frame by factor in both dimensions.
func (f *Frame) Downscale(factor float64) (pipeline.Frame, error) {
	if f.Mat.Empty() {
		return nil, errors.New("cannot resize an empty frame")
	}
	dst := gocv.NewMat()
	gocv.Resize(f.Mat, &dst, image.Point{}, factor, factor, gocv.InterpolationLinear)
	if dst.Empty() {
		dst.Close()
		return nil, fmt.Errorf("resize by %.2f produced an empty frame", factor)
	}
	return &Frame{Mat: dst}, nil
}

// JPEG encodes the frame.
func (f *Frame) JPEG() ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.Mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

func (f *Frame) Close() error {
	return f.Mat.Close()
}

// ReadImage loads a still image from disk as a Frame.
func ReadImage(path string) (*Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("cannot decode image %s", path)
	}
	return &Frame{Mat: mat}, nil
}

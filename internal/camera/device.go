package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresmejia3/facewatch/internal/pipeline"
	"gocv.io/x/gocv"
)

var errEmptyFrame = errors.New("camera returned an empty frame")

// Device reads frames from a local capture device.
type Device struct {
	Index int
	vc    *gocv.VideoCapture
}

// OpenDevice opens capture device index (0 is the default webcam).
func OpenDevice(index int) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device not available", index)
	}
	return &Device{Index: index, vc: vc}, nil
}

// Read grabs the next frame.
func (d *Device) Read(ctx context.Context) (pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat := gocv.NewMat()
	if ok := d.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("camera %d: %w", d.Index, errEmptyFrame)
	}
	return &Frame{Mat: mat}, nil
}

// Close releases the device.
func (d *Device) Close() error {
	return d.vc.Close()
}

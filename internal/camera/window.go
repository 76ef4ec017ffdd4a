package camera

import (
	"fmt"
	"image/color"

	"github.com/andresmejia3/facewatch/internal/pipeline"
	"github.com/andresmejia3/facewatch/internal/vision"
	"gocv.io/x/gocv"
)

const keyEsc = 27

var (
	boxColor  = color.RGBA{R: 180, G: 130, B: 70, A: 0}
	textColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Window shows annotated frames in an OpenCV window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a window titled title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show draws a box and a name bar for every match and displays the frame.
func (w *Window) Show(frame pipeline.Frame, matches []vision.Match) error {
	f, ok := frame.(*Frame)
	if !ok {
		return fmt.Errorf("window cannot draw %T", frame)
	}
	for _, m := range matches {
		gocv.Rectangle(&f.Mat, m.Box.Rect(), boxColor, 2)
		gocv.Rectangle(&f.Mat, m.Box.LabelBar(), boxColor, -1)
		gocv.PutText(&f.Mat, m.Label, m.Box.LabelOrigin(), gocv.FontHersheyDuplex, 1.0, textColor, 1)
	}
	w.win.IMShow(f.Mat)
	return nil
}

// Quit pumps the window event loop and reports Esc, q or a closed window.
func (w *Window) Quit() bool {
	key := w.win.WaitKey(1)
	if key == keyEsc || key == 'q' || key == 'Q' {
		return true
	}
	return !w.win.IsOpen()
}

func (w *Window) Close() error {
	return w.win.Close()
}

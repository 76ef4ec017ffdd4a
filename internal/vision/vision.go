// Package vision holds the value types shared by the capture loop, the
// engines and the matching policies.
package vision

import (
	"image"
	"math"
)

// Unknown is the label given to a face that matched no reference.
const Unknown = "Unknown"

// EmbeddingDim is the size of a dlib face descriptor.
const EmbeddingDim = 128

// Embedding is a face descriptor produced by an engine.
type Embedding []float32

// Distance returns the Euclidean distance between two embeddings.
// Mismatched or empty vectors are infinitely far apart.
func Distance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Box is a face location in [top, right, bottom, left] order.
type Box struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

// BoxFromLoc converts a [top, right, bottom, left] slice to a Box.
// It returns false if loc does not have exactly four values.
func BoxFromLoc(loc []int) (Box, bool) {
	if len(loc) != 4 {
		return Box{}, false
	}
	return Box{Top: loc[0], Right: loc[1], Bottom: loc[2], Left: loc[3]}, true
}

// Rect returns the box as an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Upscale maps a box found on a frame shrunk by factor back to the
// original frame, dividing every edge by factor.
func (b Box) Upscale(factor float64) Box {
	if factor <= 0 || factor == 1 {
		return b
	}
	scale := func(v int) int { return int(math.Round(float64(v) / factor)) }
	return Box{
		Top:    scale(b.Top),
		Right:  scale(b.Right),
		Bottom: scale(b.Bottom),
		Left:   scale(b.Left),
	}
}

// Observation is one detected face on one processed frame.
type Observation struct {
	Box       Box
	Embedding Embedding
}

// Match is an observation with the label chosen for it.
type Match struct {
	Observation
	Label    string
	Distance float64
}

// Known reports whether the match resolved to a reference label.
func (m Match) Known() bool {
	return m.Label != Unknown
}

// Upscale returns a copy of matches with boxes mapped back to full-size
// frame coordinates.
func Upscale(matches []Match, factor float64) []Match {
	out := make([]Match, len(matches))
	for i, m := range matches {
		m.Box = m.Box.Upscale(factor)
		out[i] = m
	}
	return out
}

// LabelBarHeight is the height of the filled name bar drawn inside the
// bottom of a face box.
const LabelBarHeight = 35

// LabelBar returns the rectangle of the name bar for a box.
func (b Box) LabelBar() image.Rectangle {
	return image.Rect(b.Left, b.Bottom-LabelBarHeight, b.Right, b.Bottom)
}

// LabelOrigin returns the baseline origin of the name text.
func (b Box) LabelOrigin() image.Point {
	return image.Pt(b.Left+6, b.Bottom-6)
}

package vision

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a    Embedding
		b    Embedding
		want float64
	}{
		{name: "identical", a: Embedding{1, 2, 3}, b: Embedding{1, 2, 3}, want: 0},
		{name: "unit apart", a: Embedding{0, 0}, b: Embedding{0, 1}, want: 1},
		{name: "3-4-5", a: Embedding{0, 0}, b: Embedding{3, 4}, want: 5},
		{name: "length mismatch", a: Embedding{1}, b: Embedding{1, 2}, want: math.Inf(1)},
		{name: "empty", a: Embedding{}, b: Embedding{}, want: math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.IsInf(tt.want, 1) {
				assert.True(t, math.IsInf(got, 1))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestBoxUpscale(t *testing.T) {
	tests := []struct {
		name   string
		box    Box
		factor float64
		want   Box
	}{
		{
			name:   "quarter scale",
			box:    Box{Top: 10, Right: 40, Bottom: 50, Left: 5},
			factor: 0.25,
			want:   Box{Top: 40, Right: 160, Bottom: 200, Left: 20},
		},
		{
			name:   "half scale",
			box:    Box{Top: 3, Right: 9, Bottom: 7, Left: 1},
			factor: 0.5,
			want:   Box{Top: 6, Right: 18, Bottom: 14, Left: 2},
		},
		{
			name:   "full scale is identity",
			box:    Box{Top: 3, Right: 9, Bottom: 7, Left: 1},
			factor: 1,
			want:   Box{Top: 3, Right: 9, Bottom: 7, Left: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Upscale(tt.factor))
		})
	}
}

func TestBoxConversions(t *testing.T) {
	r := image.Rect(5, 10, 40, 50)
	b := BoxFromRect(r)
	assert.Equal(t, Box{Top: 10, Right: 40, Bottom: 50, Left: 5}, b)
	assert.Equal(t, r, b.Rect())

	got, ok := BoxFromLoc([]int{10, 40, 50, 5})
	assert.True(t, ok)
	assert.Equal(t, b, got)

	_, ok = BoxFromLoc([]int{1, 2, 3})
	assert.False(t, ok)
}

func TestUpscaleMatchesLeavesInputUntouched(t *testing.T) {
	in := []Match{{Observation: Observation{Box: Box{Top: 1, Right: 2, Bottom: 3, Left: 4}}, Label: "alice"}}
	out := Upscale(in, 0.5)

	assert.Equal(t, Box{Top: 2, Right: 4, Bottom: 6, Left: 8}, out[0].Box)
	assert.Equal(t, Box{Top: 1, Right: 2, Bottom: 3, Left: 4}, in[0].Box)
	assert.Equal(t, "alice", out[0].Label)
	assert.True(t, out[0].Known())
}

func TestLabelLayout(t *testing.T) {
	b := Box{Top: 40, Right: 160, Bottom: 200, Left: 20}
	assert.Equal(t, image.Rect(20, 165, 160, 200), b.LabelBar())
	assert.Equal(t, image.Pt(26, 194), b.LabelOrigin())
}

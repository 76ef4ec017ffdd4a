package matcher

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refs places alice at x=0, bob at x=0.5 and carol far away at x=10.
func refs() *reference.Set {
	s := reference.NewSet()
	s.Put("alice", vision.Embedding{0, 0})
	s.Put("bob", vision.Embedding{0.5, 0})
	s.Put("carol", vision.Embedding{10, 0})
	return s
}

func TestPolicies(t *testing.T) {
	tests := []struct {
		name      string
		probe     vision.Embedding
		wantNear  string
		wantFirst string
	}{
		{
			name:      "single reference under threshold",
			probe:     vision.Embedding{10.1, 0},
			wantNear:  "carol",
			wantFirst: "carol",
		},
		{
			name:      "nothing under threshold",
			probe:     vision.Embedding{5, 5},
			wantNear:  vision.Unknown,
			wantFirst: vision.Unknown,
		},
		{
			// 0.4 is 0.4 from alice and 0.1 from bob: both qualify.
			name:      "several under threshold",
			probe:     vision.Embedding{0.4, 0},
			wantNear:  "bob",
			wantFirst: "alice",
		},
	}

	indexed, err := NewIndexed(refs(), DefaultThreshold)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Nearest{Threshold: DefaultThreshold}.Match(tt.probe, refs())
			assert.Equal(t, tt.wantNear, got, "nearest")

			got, _ = First{Threshold: DefaultThreshold}.Match(tt.probe, refs())
			assert.Equal(t, tt.wantFirst, got, "first")

			got, _ = indexed.Match(tt.probe, refs())
			assert.Equal(t, tt.wantNear, got, "indexed")
		})
	}
}

func TestNearestTieGoesToSetOrder(t *testing.T) {
	s := reference.NewSet()
	s.Put("zed", vision.Embedding{1, 0})
	s.Put("amy", vision.Embedding{-1, 0})

	label, dist := Nearest{Threshold: 2}.Match(vision.Embedding{0, 0}, s)
	assert.Equal(t, "zed", label)
	assert.InDelta(t, 1.0, dist, 1e-9)
}

func TestThresholdIsStrict(t *testing.T) {
	s := reference.NewSet()
	s.Put("alice", vision.Embedding{0.6, 0})

	label, _ := Nearest{Threshold: 0.6}.Match(vision.Embedding{0, 0}, s)
	assert.Equal(t, vision.Unknown, label)
	label, _ = First{Threshold: 0.6}.Match(vision.Embedding{0, 0}, s)
	assert.Equal(t, vision.Unknown, label)
}

func TestEmptyReferenceSet(t *testing.T) {
	empty := reference.NewSet()
	label, dist := Nearest{Threshold: 0.6}.Match(vision.Embedding{1}, empty)
	assert.Equal(t, vision.Unknown, label)
	assert.True(t, math.IsInf(dist, 1))

	idx, err := NewIndexed(empty, 0.6)
	require.NoError(t, err)
	label, _ = idx.Match(vision.Embedding{1}, empty)
	assert.Equal(t, vision.Unknown, label)
}

func TestNewIndexedRejectsMixedDimensions(t *testing.T) {
	s := reference.NewSet()
	s.Put("a", vision.Embedding{1, 2})
	s.Put("b", vision.Embedding{1})

	_, err := NewIndexed(s, 0.6)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	for _, name := range Policies {
		p, err := New(name, 0.5, refs())
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}
	_, err := New("bogus", 0.5, refs())
	assert.Error(t, err)
}

func TestMatchAll(t *testing.T) {
	obs := []vision.Observation{
		{Box: vision.Box{Top: 1}, Embedding: vision.Embedding{0.05, 0}},
		{Box: vision.Box{Top: 2}, Embedding: vision.Embedding{50, 50}},
	}
	got := MatchAll(Nearest{Threshold: DefaultThreshold}, obs, refs())

	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Label)
	assert.Equal(t, 1, got[0].Box.Top)
	assert.Equal(t, vision.Unknown, got[1].Label)
}

func randomUnit(rng *rand.Rand, dim int) vision.Embedding {
	v := make(vision.Embedding, dim)
	var norm float64
	for i := range v {
		x := rng.NormFloat64()
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// nudge moves v by exactly dist in a random direction.
func nudge(rng *rand.Rand, v vision.Embedding, dist float64) vision.Embedding {
	dir := randomUnit(rng, len(v))
	out := make(vision.Embedding, len(v))
	for i := range v {
		out[i] = v[i] + float32(dist)*dir[i]
	}
	return out
}

func TestIndexedAgreesWithNearest(t *testing.T) {
	for _, n := range []int{18, 200, 500} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(n)))
			set := reference.NewSet()
			for i := 0; i < n; i++ {
				set.Put("ref"+strconv.Itoa(i), randomUnit(rng, vision.EmbeddingDim))
			}
			idx, err := NewIndexed(set, DefaultThreshold)
			require.NoError(t, err)
			nearest := Nearest{Threshold: DefaultThreshold}

			misses := 0
			for _, e := range set.Entries() {
				probe := nudge(rng, e.Embedding, 0.05)
				got, _ := idx.Match(probe, set)
				want, _ := nearest.Match(probe, set)
				require.Equal(t, e.Label, want)
				if got != want {
					misses++
				}
			}
			assert.Zero(t, misses, "indexed disagreed with nearest")

			// Faces far from every reference stay Unknown.
			for i := 0; i < 20; i++ {
				got, _ := idx.Match(randomUnit(rng, vision.EmbeddingDim), set)
				assert.Equal(t, vision.Unknown, got)
			}
		})
	}
}

func TestIndexedOrthogonalReferences(t *testing.T) {
	const n = 40
	set := reference.NewSet()
	for i := 0; i < n; i++ {
		v := make(vision.Embedding, vision.EmbeddingDim)
		v[i] = 1
		set.Put("axis"+strconv.Itoa(i), v)
	}
	idx, err := NewIndexed(set, DefaultThreshold)
	require.NoError(t, err)

	for _, e := range set.Entries() {
		got, d := idx.Match(e.Embedding, set)
		assert.Equal(t, e.Label, got)
		assert.Zero(t, d)
	}
}

func TestIndexedWrongDimensionIsUnknown(t *testing.T) {
	idx, err := NewIndexed(refs(), DefaultThreshold)
	require.NoError(t, err)

	label, d := idx.Match(vision.Embedding{0, 0, 0}, nil)
	assert.Equal(t, vision.Unknown, label)
	assert.True(t, math.IsInf(d, 1))
}

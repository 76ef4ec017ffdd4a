// Package matcher decides which reference label, if any, a probe embedding
// belongs to.
package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/vision"
)

// DefaultThreshold is the dlib distance under which two faces are the same person.
const DefaultThreshold = 0.6

// Policy names accepted by New.
const (
	PolicyNearest = "nearest"
	PolicyFirst   = "first"
	PolicyIndexed = "indexed"
)

// Policies lists the valid policy names.
var Policies = []string{PolicyNearest, PolicyFirst, PolicyIndexed}

// Policy picks a label for probe out of refs. It returns vision.Unknown when
// no reference is close enough. The returned distance is the distance to the
// chosen reference, or to the closest one when nothing matched.
type Policy interface {
	Match(probe vision.Embedding, refs *reference.Set) (label string, distance float64)
}

// New returns the named policy for refs. The indexed policy builds its
// graph here, so refs must not change afterwards.
func New(name string, threshold float64, refs *reference.Set) (Policy, error) {
	switch strings.ToLower(name) {
	case PolicyNearest, "":
		return Nearest{Threshold: threshold}, nil
	case PolicyFirst:
		return First{Threshold: threshold}, nil
	case PolicyIndexed:
		return NewIndexed(refs, threshold)
	default:
		return nil, fmt.Errorf("unknown matching policy %q (want one of %s)", name, strings.Join(Policies, ", "))
	}
}

// Nearest accepts the closest reference if it is under Threshold. Equal
// distances resolve to the entry earliest in set order.
type Nearest struct {
	Threshold float64
}

func (p Nearest) Match(probe vision.Embedding, refs *reference.Set) (string, float64) {
	best := vision.Unknown
	minDist := math.Inf(1)
	for _, e := range refs.Entries() {
		d := vision.Distance(probe, e.Embedding)
		if d < minDist {
			minDist = d
			best = e.Label
		}
	}
	if minDist < p.Threshold {
		return best, minDist
	}
	return vision.Unknown, minDist
}

// First accepts the first reference in set order that is under Threshold,
// even if a later one is closer.
type First struct {
	Threshold float64
}

func (p First) Match(probe vision.Embedding, refs *reference.Set) (string, float64) {
	minDist := math.Inf(1)
	for _, e := range refs.Entries() {
		d := vision.Distance(probe, e.Embedding)
		if d < p.Threshold {
			return e.Label, d
		}
		minDist = math.Min(minDist, d)
	}
	return vision.Unknown, minDist
}

// MatchAll labels every observation with p.
func MatchAll(p Policy, obs []vision.Observation, refs *reference.Set) []vision.Match {
	out := make([]vision.Match, 0, len(obs))
	for _, o := range obs {
		label, dist := p.Match(o.Embedding, refs)
		out = append(out, vision.Match{Observation: o, Label: label, Distance: dist})
	}
	return out
}

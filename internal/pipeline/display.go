package pipeline

import (
	"log/slog"
	"slices"

	"github.com/andresmejia3/facewatch/internal/vision"
)

// Headless is a Display that draws nothing and logs whenever the set of
// labels on screen changes. It never asks to quit; cancel the context instead.
type Headless struct {
	Log *slog.Logger

	last []string
}

func (h *Headless) Show(_ Frame, matches []vision.Match) error {
	labels := make([]string, len(matches))
	for i, m := range matches {
		labels[i] = m.Label
	}
	if slices.Equal(labels, h.last) {
		return nil
	}
	h.last = labels

	log := h.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("faces in view", "count", len(labels), "labels", labels)
	return nil
}

func (h *Headless) Quit() bool   { return false }
func (h *Headless) Close() error { return nil }

// Package reference loads and holds the labeled embeddings that live faces
// are compared against.
package reference

import "github.com/andresmejia3/facewatch/internal/vision"

// Entry is one labeled reference embedding.
type Entry struct {
	Label     string
	Embedding vision.Embedding
}

// Set maps labels to embeddings and remembers the order in which labels
// were first added. Re-adding a label replaces its embedding in place.
type Set struct {
	order []string
	byKey map[string]vision.Embedding
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{byKey: make(map[string]vision.Embedding)}
}

// Put stores emb under label, overwriting any previous embedding.
func (s *Set) Put(label string, emb vision.Embedding) {
	if _, ok := s.byKey[label]; !ok {
		s.order = append(s.order, label)
	}
	s.byKey[label] = emb
}

// Get returns the embedding stored under label.
func (s *Set) Get(label string) (vision.Embedding, bool) {
	if s == nil {
		return nil, false
	}
	emb, ok := s.byKey[label]
	return emb, ok
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Labels returns the labels in set order.
func (s *Set) Labels() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Entries returns all entries in set order.
func (s *Set) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, 0, len(s.order))
	for _, label := range s.order {
		out = append(out, Entry{Label: label, Embedding: s.byKey[label]})
	}
	return out
}

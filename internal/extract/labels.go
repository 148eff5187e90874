package extract

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// LabelSet is the ordered set of field labels to look for. Its order is the
// column order of the output table.
type LabelSet struct {
	order []string
	index map[string]int
}

// NewLabelSet trims labels, drops empty ones and keeps the first occurrence
// of duplicates.
func NewLabelSet(labels ...string) LabelSet {
	cleaned := lo.Uniq(lo.Compact(lo.Map(labels, func(l string, _ int) string {
		return strings.TrimSpace(l)
	})))
	index := make(map[string]int, len(cleaned))
	for i, l := range cleaned {
		index[l] = i
	}
	return LabelSet{order: cleaned, index: index}
}

func (s LabelSet) Has(label string) bool {
	_, ok := s.index[label]
	return ok
}

// Index returns the column position of label.
func (s LabelSet) Index(label string) (int, bool) {
	i, ok := s.index[label]
	return i, ok
}

func (s LabelSet) Len() int { return len(s.order) }

// Labels returns a copy of the labels in configuration order.
func (s LabelSet) Labels() []string {
	return append([]string(nil), s.order...)
}

// TrailingPolicy decides what happens to a label that is the last paragraph
// of a document.
type TrailingPolicy int

const (
	// TrailingSkip drops the label and keeps going.
	TrailingSkip TrailingPolicy = iota
	// TrailingFail rejects the whole document with ErrTrailingLabel.
	TrailingFail
)

func (p TrailingPolicy) String() string {
	if p == TrailingFail {
		return "fail"
	}
	return "skip"
}

// ParseTrailingPolicy accepts "skip", "fail" or an empty string (skip).
func ParseTrailingPolicy(s string) (TrailingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return TrailingSkip, nil
	case "fail":
		return TrailingFail, nil
	default:
		return TrailingSkip, fmt.Errorf("unknown trailing label policy %q (want skip or fail)", s)
	}
}

package models

import (
	"strconv"
	"strings"
)

// RepSpecKind discriminates the rep-specification sum type.
type RepSpecKind string

const (
	// RepSpecSingle is one target rep count applied to every set.
	RepSpecSingle RepSpecKind = "single"
	// RepSpecRange is a min–max rep window; the minimum is the per-set target.
	RepSpecRange RepSpecKind = "range"
	// RepSpecRangeText is a textual range like "8-12" or "5+"; the numeric
	// prefix is the per-set target.
	RepSpecRangeText RepSpecKind = "range_text"
	// RepSpecPerSet carries one target per set.
	RepSpecPerSet RepSpecKind = "per_set"
)

// RepSpec is a tagged union over the four ways a plan can state target reps.
// Only the fields for the active Kind are meaningful.
type RepSpec struct {
	Kind   RepSpecKind `json:"kind"`
	Value  int         `json:"value,omitempty"`
	Min    int         `json:"min,omitempty"`
	Max    int         `json:"max,omitempty"`
	Text   string      `json:"text,omitempty"`
	PerSet []int       `json:"per_set,omitempty"`
}

// SingleReps builds a single-value spec.
func SingleReps(n int) RepSpec { return RepSpec{Kind: RepSpecSingle, Value: n} }

// RangeReps builds a min–max spec.
func RangeReps(min, max int) RepSpec { return RepSpec{Kind: RepSpecRange, Min: min, Max: max} }

// TextReps builds a textual-range spec.
func TextReps(text string) RepSpec { return RepSpec{Kind: RepSpecRangeText, Text: text} }

// PerSetReps builds a per-set spec.
func PerSetReps(reps []int) RepSpec { return RepSpec{Kind: RepSpecPerSet, PerSet: reps} }

// TargetRepsPerSet resolves a rep specification into one target per set.
// Per-set lists are padded by repeating their last entry, or truncated, to
// match setCount. Unresolvable specs (empty text, empty per-set list,
// setCount <= 0) yield nil.
func TargetRepsPerSet(spec RepSpec, setCount int) []int {
	if setCount <= 0 {
		return nil
	}

	switch spec.Kind {
	case RepSpecSingle:
		return repeatReps(spec.Value, setCount)
	case RepSpecRange:
		return repeatReps(spec.Min, setCount)
	case RepSpecRangeText:
		n, ok := leadingInt(spec.Text)
		if !ok {
			return nil
		}
		return repeatReps(n, setCount)
	case RepSpecPerSet:
		if len(spec.PerSet) == 0 {
			return nil
		}
		out := make([]int, setCount)
		for i := range out {
			if i < len(spec.PerSet) {
				out[i] = spec.PerSet[i]
			} else {
				out[i] = spec.PerSet[len(spec.PerSet)-1]
			}
		}
		return out
	default:
		return nil
	}
}

func repeatReps(n, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = n
	}
	return out
}

// leadingInt parses the numeric prefix of strings like "8-12" or "5+".
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

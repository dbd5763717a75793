// Package dialog holds the pieces shared by both dialogue agents: ordered typed
// slot schemas, the slot answer parsers and the out-of-band command classifier.
package dialog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lh-counsel/server/internal/agent/model"
)

// Slot describes one required intake field.
type Slot struct {
	Name   string
	Kind   model.SlotKind
	Prompt string
}

// Schema is an ordered list of slots; slots are always filled in this order.
type Schema []Slot

// First returns the first declared slot.
func (s Schema) First() Slot {
	return s[0]
}

// NextUnset returns the first slot without a value.
func (s Schema) NextUnset(values model.SlotValues) (Slot, bool) {
	for _, slot := range s {
		if _, ok := values[slot.Name]; !ok {
			return slot, true
		}
	}
	return Slot{}, false
}

// Complete reports whether every slot has a value.
func (s Schema) Complete(values model.SlotValues) bool {
	_, missing := s.NextUnset(values)
	return !missing
}

// FillNext parses input into the next unset slot and returns the updated copy of
// values. When the typed parser rejects the input the slot stays unset and ok is false.
func (s Schema) FillNext(values model.SlotValues, input string) (out model.SlotValues, ok bool) {
	out = values.Clone()
	if out == nil {
		out = model.SlotValues{}
	}
	slot, missing := s.NextUnset(out)
	if !missing {
		return out, false
	}
	v, parsed := Parse(slot.Kind, input)
	if !parsed {
		return out, false
	}
	out[slot.Name] = v
	return out, true
}

// Parse applies the parser for kind to raw user input.
func Parse(kind model.SlotKind, input string) (model.SlotValue, bool) {
	switch kind {
	case model.SlotBool:
		return model.SlotValue{Kind: kind, Bool: ParseBool(input)}, true
	case model.SlotInt:
		n, ok := ExtractInt(input)
		if !ok {
			return model.SlotValue{}, false
		}
		return model.SlotValue{Kind: kind, Int: n}, true
	default:
		return model.SlotValue{Kind: model.SlotText, Text: strings.TrimSpace(input)}, true
	}
}

var affirmatives = map[string]struct{}{
	"예": {}, "yes": {}, "y": {}, "true": {}, "1": {},
}

// ParseBool never rejects input: anything but an affirmative token is false.
func ParseBool(input string) bool {
	_, ok := affirmatives[strings.ToLower(strings.TrimSpace(input))]
	return ok
}

var digits = regexp.MustCompile(`\d+`)

// ExtractInt returns the first integer literal in input after removing
// thousands separators, e.g. "3,000만원" -> 3000.
func ExtractInt(input string) (int64, bool) {
	m := digits.FindString(strings.ReplaceAll(input, ",", ""))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

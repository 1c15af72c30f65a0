// Package restructure normalizes section numbers, removes duplicate sections
// and rebuilds a document's chapter tree from an official chapter table.
package restructure

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key is the numeric sort and range key of a section label.
// Zero is the sentinel for labels that could not be parsed.
type Key float64

// letterStep is the key offset per alphabet position of a trailing letter,
// so "52a" = 52.01 and "52z" = 52.26 both sort before "53".
const letterStep = 0.01

// ParseError explains why a section label has no well-defined key.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("section number %q: %s", e.Raw, e.Reason)
}

// prefixes that scrapers leave in front of the number
var sectionMarkers = []string{"§§", "§", "Artikel", "Art.", "Art"}

// Parse returns the key for a raw section label, or 0 when the label is not parseable.
func Parse(raw string) Key {
	key, err := ParseStrict(raw)
	if err != nil {
		return 0
	}
	return key
}

// ParseStrict returns the key for a raw section label or a *ParseError.
//
// One trailing period is dropped. A single trailing ASCII letter is a
// sub-ordinal: base + position*0.01. Two trailing letters ("12ab") have no
// defined ordering and are rejected.
func ParseStrict(raw string) (Key, error) {
	label := strings.TrimSpace(raw)
	for _, marker := range sectionMarkers {
		if strings.HasPrefix(label, marker) {
			label = strings.TrimSpace(strings.TrimPrefix(label, marker))
			break
		}
	}
	label = strings.TrimSuffix(label, ".")
	label = strings.TrimSpace(label)

	if label == "" {
		return 0, &ParseError{Raw: raw, Reason: "empty"}
	}

	last := label[len(label)-1]
	if isASCIILetter(last) {
		prefix := strings.TrimSpace(label[:len(label)-1])
		if prefix != "" && isASCIILetter(prefix[len(prefix)-1]) {
			return 0, &ParseError{Raw: raw, Reason: "multi-letter suffix has no defined ordering"}
		}

		base, err := parseNumber(prefix)
		if err != nil {
			return 0, &ParseError{Raw: raw, Reason: err.Error()}
		}
		position := int(toLower(last)-'a') + 1
		return Key(base + float64(position)*letterStep), nil
	}

	value, err := parseNumber(label)
	if err != nil {
		return 0, &ParseError{Raw: raw, Reason: err.Error()}
	}
	return Key(value), nil
}

func parseNumber(text string) (float64, error) {
	if text == "" {
		return 0, fmt.Errorf("missing numeric part")
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("not numeric")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return value, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

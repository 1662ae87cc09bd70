// Package match normalizes manufacturer names and scores external product
// candidates against a part query.
package match

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// manufacturerReplacements are literal substring substitutions applied in order
// after lowercasing. Order matters where entries overlap.
var manufacturerReplacements = []struct{ old, new string }{
	{"ä", "ae"},
	{"ö", "oe"},
	{"ü", "ue"},
	{"texas instruments", "ti"},
	{"stmicroelectronics", "st"},
}

// manufacturerStopWords are corporate suffixes and filler terms dropped from
// a normalized manufacturer name.
var manufacturerStopWords = map[string]struct{}{
	"contact":          {},
	"devices":          {},
	"electronics":      {},
	"inc.":             {},
	"inc":              {},
	"incorporated":     {},
	"integrated":       {},
	"international":    {},
	"limited":          {},
	"ltd.":             {},
	"ltd":              {},
	"microelectronics": {},
	"semiconductor":    {},
	"semiconductors":   {},
	"solutions":        {},
	"systems":          {},
	"technology":       {},
	"usa":              {},
}

// NormalizeManufacturer reduces a manufacturer name to a canonical form for
// comparison:
//  1. Lowercase
//  2. Apply the fixed substitution table (diacritics, known aliases)
//  3. Split on single spaces and drop stop words
//  4. Rejoin with single spaces
//
// Dropping a stop word can join the words of an alias ("texas inc instruments"),
// so the steps repeat until the name no longer changes.
func NormalizeManufacturer(raw string) string {
	name := raw
	for {
		next := normalizeOnce(name)
		if next == name {
			return next
		}
		name = next
	}
}

func normalizeOnce(name string) string {
	// cases.Caser is stateful; a fresh one per call keeps this safe for concurrent use.
	name = cases.Lower(language.Und).String(name)
	for _, r := range manufacturerReplacements {
		name = strings.ReplaceAll(name, r.old, r.new)
	}

	terms := strings.Split(name, " ")
	kept := terms[:0]
	for _, term := range terms {
		if _, drop := manufacturerStopWords[term]; !drop {
			kept = append(kept, term)
		}
	}
	return strings.Join(kept, " ")
}

// stripSpace removes all whitespace from s.
func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import "strings"

// ProfanityFilter reports whether a cleaned name should be rejected as
// profane. Treated as an external pure function (spec §9 "Petnames and
// profanity filters") so tests can inject a deterministic mock instead of
// depending on a real word list.
type ProfanityFilter func(name string) bool

// defaultProfanityWords is a small, deliberately short-list filter; it exists
// so the engine has a usable default without pulling in a word-list
// dependency the example pack never demonstrates (see DESIGN.md).
var defaultProfanityWords = []string{
	"fuck", "shit", "bitch", "asshole", "cunt",
}

// DefaultProfanityFilter is the built-in ProfanityFilter used when none is
// supplied to NewNames.
func DefaultProfanityFilter(name string) bool {
	lower := strings.ToLower(name)

	for _, word := range defaultProfanityWords {
		if strings.Contains(lower, word) {
			return true
		}
	}

	return false
}

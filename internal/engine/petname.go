/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"fmt"
	"math/rand"
)

// PetnameGenerator produces a candidate team name for attempt index n (0,
// 1, 2, ...), so a caller can retry on collision. Treated as an external
// pure function (spec §9), deterministic given a seed so tests can mock it.
type PetnameGenerator func(rnd *rand.Rand, attempt int) string

var petnameAdjectives = []string{
	"Bold", "Clever", "Daring", "Eager", "Fierce", "Gallant", "Happy",
	"Jolly", "Keen", "Lively", "Mighty", "Nimble", "Plucky", "Quiet",
	"Rapid", "Sly", "Tidy", "Unseen", "Vivid", "Witty",
}

var petnameNouns = []string{
	"Foxes", "Owls", "Otters", "Badgers", "Herons", "Falcons", "Wolves",
	"Beetles", "Ravens", "Lynxes", "Hornets", "Newts", "Moths", "Crows",
	"Sparrows", "Martens", "Voles", "Swifts", "Terns", "Weasels",
}

// DefaultPetnameGenerator builds "Adjective Plural-Noun" names, already
// pluralized, matching the original's petname+pluralizer pairing (spec §4.3
// step 4) without depending on a pluralizer library: the noun list is
// pre-pluralized.
func DefaultPetnameGenerator(rnd *rand.Rand, attempt int) string {
	adj := petnameAdjectives[rnd.Intn(len(petnameAdjectives))]
	noun := petnameNouns[rnd.Intn(len(petnameNouns))]

	if attempt == 0 {
		return fmt.Sprintf("%s %s", adj, noun)
	}

	return fmt.Sprintf("%s %s %d", adj, noun, attempt+1)
}

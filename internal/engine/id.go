/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Id is an opaque 128-bit identifier used for watchers, teams, and internal
// keys. It serializes to and from its canonical text form.
type Id uuid.UUID

// NewId draws a fresh random Id.
func NewId() Id {
	return Id(uuid.New())
}

// NilId is the zero value, never assigned to a live watcher or team.
var NilId = Id{}

func (id Id) String() string {
	return uuid.UUID(id).String()
}

func (id Id) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Id) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}

	*id = Id(parsed)

	return nil
}

// GameId is a 5-digit octal, human-typable identifier in the half-open
// range [MinGameId, MaxGameId).
type GameId uint16

const (
	MinGameId GameId = 010000  // 4096 decimal: smallest 5-digit octal number
	MaxGameId GameId = 0100000 // 32768 decimal: one past the largest 5-digit octal number
)

func (g GameId) String() string {
	return fmt.Sprintf("%05o", uint16(g))
}

func (g GameId) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GameId) UnmarshalText(text []byte) error {
	v, err := ParseGameId(string(text))
	if err != nil {
		return err
	}

	*g = v

	return nil
}

// ParseGameId parses a 5-digit octal game id string, validating range.
func ParseGameId(s string) (GameId, error) {
	v, err := strconv.ParseUint(s, 8, 16)
	if err != nil {
		return 0, fmt.Errorf("malformed game id %q: %w", s, err)
	}

	g := GameId(v)
	if g < MinGameId || g >= MaxGameId {
		return 0, fmt.Errorf("game id %q out of range", s)
	}

	return g, nil
}

func (g GameId) inRange() bool {
	return g >= MinGameId && g < MaxGameId
}

// ShardIndex derives a value in [0, n) from id's bytes, used to shard
// concurrent maps keyed by Id (spec §5 "hash-sharded concurrent map").
func (id Id) ShardIndex(n int) int {
	b := uuid.UUID(id)

	return int(b[0]) % n
}

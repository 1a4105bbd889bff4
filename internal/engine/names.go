/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"errors"
	"strings"
	"sync"
)

// Name registry errors (spec §4.2).
var (
	ErrNameUsed     = errors.New("name already in-use")
	ErrNameAssigned = errors.New("player has an existing name")
	ErrNameEmpty    = errors.New("name cannot be empty")
	ErrNameSinful   = errors.New("name is inappropriate")
	ErrNameTooLong  = errors.New("name is too long")
)

const maxNameLength = 30

// Names is the Name Registry: an id<->name bimap plus a taken-name set,
// mutated only through SetName, which is all-or-nothing (spec §4.2).
type Names struct {
	mu        sync.RWMutex
	mapping   map[Id]string
	reverse   map[string]Id
	existing  map[string]struct{}
	profanity ProfanityFilter
}

// NewNames constructs an empty registry. A nil filter uses
// DefaultProfanityFilter.
func NewNames(filter ProfanityFilter) *Names {
	if filter == nil {
		filter = DefaultProfanityFilter
	}

	return &Names{
		mapping:   make(map[Id]string),
		reverse:   make(map[string]Id),
		existing:  make(map[string]struct{}),
		profanity: filter,
	}
}

// GetName returns the name assigned to id, if any.
func (n *Names) GetName(id Id) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	name, ok := n.mapping[id]

	return name, ok
}

// GetId returns the id holding name, if any.
func (n *Names) GetId(name string) (Id, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	id, ok := n.reverse[name]

	return id, ok
}

// SetName validates raw for id. Checks run in order: length, trim+empty,
// profanity, uniqueness, already-assigned; nothing is written to the
// registry until every check passes, so a late already-assigned failure
// never leaves a dangling name reservation behind -- this corrects a
// non-rollback bug present in the reference implementation (see
// SPEC_FULL.md).
func (n *Names) SetName(id Id, raw string) (string, error) {
	if len(raw) > maxNameLength {
		return "", ErrNameTooLong
	}

	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrNameEmpty
	}

	if n.profanity(name) {
		return "", ErrNameSinful
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, taken := n.existing[name]; taken {
		return "", ErrNameUsed
	}

	if _, already := n.mapping[id]; already {
		return "", ErrNameAssigned
	}

	n.existing[name] = struct{}{}
	n.mapping[id] = name
	n.reverse[name] = id

	return name, nil
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultProfanityFilterMatchesCaseInsensitively(t *testing.T) {
	assert.True(t, DefaultProfanityFilter("SHIT"))
	assert.True(t, DefaultProfanityFilter("Bitching"))
}

func TestDefaultProfanityFilterAllowsCleanNames(t *testing.T) {
	assert.False(t, DefaultProfanityFilter("Sunflower"))
	assert.False(t, DefaultProfanityFilter(""))
}

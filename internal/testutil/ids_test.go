package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("evt")

	assert.Equal(t, "evt-0001", gen.Generate())
	assert.Equal(t, "evt-0002", gen.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	gen := NewSequentialIDs("")

	assert.Equal(t, "ev-0001", gen.Generate())
}

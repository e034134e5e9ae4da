package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcat(t *testing.T) {
	state := FromString("01")
	goal := FromString("10")

	augmented := Concat(state, goal)

	assert.Equal(t, Perception{"0", "1", "1", "0"}, augmented)
	assert.Len(t, augmented, 2*len(state))

	// Mutating the result must not leak into the inputs.
	augmented[0] = "X"
	assert.Equal(t, "01", state.String())
	assert.Equal(t, "10", goal.String())
}

func TestEqual(t *testing.T) {
	assert.True(t, FromString("0101").Equal(New("0", "1", "0", "1")))
	assert.False(t, FromString("0101").Equal(FromString("0100")))
	assert.False(t, FromString("010").Equal(FromString("0101")))
	assert.True(t, Perception{}.Equal(nil))
}

func TestNewCopies(t *testing.T) {
	symbols := []string{"a", "b"}
	p := New(symbols...)
	symbols[0] = "z"

	assert.Equal(t, "ab", p.String())
	assert.Equal(t, p, p.Clone())
}

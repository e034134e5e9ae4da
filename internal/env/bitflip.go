// Package env provides goal-conditioned environments for the agent.
package env

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/perception"
)

var (
	// ErrNotReset is returned by Step before the first Reset or after the
	// episode finished.
	ErrNotReset = errors.New("environment must be reset before stepping")

	// ErrInvalidAction is returned for an action outside [0, bits).
	ErrInvalidAction = errors.New("invalid action")
)

// BitFlip is the bit-flipping task: n bits start in a random configuration
// and action i flips bit i. The episode ends with reward 1 when the bits
// equal the goal, or with reward 0 after maxSteps steps.
type BitFlip struct {
	Bits     int
	MaxSteps int

	rng     *rand.Rand
	state   perception.Perception
	goal    perception.Perception
	steps   int
	running bool
}

// NewBitFlip creates the environment. A nil source is replaced by one seeded
// from the clock.
func NewBitFlip(bits, maxSteps int, src rand.Source) (*BitFlip, error) {
	if bits <= 0 {
		return nil, fmt.Errorf("bits must be positive, got %d", bits)
	}
	if maxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", maxSteps)
	}
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return &BitFlip{
		Bits:     bits,
		MaxSteps: maxSteps,
		rng:      rand.New(src),
	}, nil
}

// NumActions is the number of possible actions, one per bit.
func (b *BitFlip) NumActions() int {
	return b.Bits
}

// StateLength is the length of a raw state.
func (b *BitFlip) StateLength() int {
	return b.Bits
}

// Reset draws a new start state and a goal different from it.
func (b *BitFlip) Reset() (perception.Perception, error) {
	b.state = b.randomBits()
	b.goal = b.randomBits()
	for b.goal.Equal(b.state) {
		b.goal = b.randomBits()
	}
	b.steps = 0
	b.running = true
	return b.state.Clone(), nil
}

// Step flips bit action.
func (b *BitFlip) Step(action int) (perception.Perception, float64, bool, error) {
	if !b.running {
		return nil, 0, false, ErrNotReset
	}
	if action < 0 || action >= b.Bits {
		return nil, 0, false, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAction, action, b.Bits)
	}

	next := b.state.Clone()
	next[action] = flip(next[action])
	b.state = next
	b.steps++

	if b.state.Equal(b.goal) {
		b.running = false
		return b.state.Clone(), 1, true, nil
	}
	if b.steps >= b.MaxSteps {
		b.running = false
		return b.state.Clone(), 0, true, nil
	}
	return b.state.Clone(), 0, false, nil
}

// DesiredGoal returns the goal of the current episode, or nil before the
// first Reset.
func (b *BitFlip) DesiredGoal() perception.Perception {
	if b.goal == nil {
		return nil
	}
	return b.goal.Clone()
}

func (b *BitFlip) randomBits() perception.Perception {
	p := make(perception.Perception, b.Bits)
	for i := range p {
		p[i] = "0"
		if b.rng.Intn(2) == 1 {
			p[i] = "1"
		}
	}
	return p
}

func flip(bit string) string {
	if bit == "0" {
		return "1"
	}
	return "0"
}

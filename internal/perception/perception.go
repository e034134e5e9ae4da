// Package perception holds the observation type shared by the agent, the
// environments and the rule-learning substrate.
package perception

import "strings"

// Perception is an ordered, fixed-length sequence of symbols. Values are
// treated as immutable: constructors copy their input and nothing in this
// module writes to a Perception after creating it.
type Perception []string

// New copies symbols into a new Perception.
func New(symbols ...string) Perception {
	p := make(Perception, len(symbols))
	copy(p, symbols)
	return p
}

// FromString builds a Perception with one symbol per rune, so "0110" becomes
// four symbols.
func FromString(s string) Perception {
	p := make(Perception, 0, len(s))
	for _, r := range s {
		p = append(p, string(r))
	}
	return p
}

// Concat joins a state and a goal into a goal-augmented perception. The
// result never aliases either argument.
func Concat(state, goal Perception) Perception {
	p := make(Perception, 0, len(state)+len(goal))
	p = append(p, state...)
	return append(p, goal...)
}

// Equal reports value equality over the full sequence.
func (p Perception) Equal(other Perception) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share storage with p.
func (p Perception) Clone() Perception {
	return New(p...)
}

func (p Perception) String() string {
	return strings.Join(p, "")
}

package acs2

import (
	"errors"
	"fmt"

	"github.com/cartridge/acs2her/internal/lcs"
	"github.com/cartridge/acs2her/internal/perception"
)

// ErrForeignSet is returned when a match or action set handed to the
// population was not formed by this package.
var ErrForeignSet = errors.New("set was not formed by an acs2 population")

// ClassifiersList is an ordered collection of rules. Populations, match sets
// and action sets are all lists; the same *Classifier may be referenced by
// several of them at once.
type ClassifiersList struct {
	items []*Classifier
}

var (
	_ lcs.MatchSet  = (*ClassifiersList)(nil)
	_ lcs.ActionSet = (*ClassifiersList)(nil)
)

// NewClassifiersList creates a list holding cls.
func NewClassifiersList(cls ...*Classifier) *ClassifiersList {
	return &ClassifiersList{items: append([]*Classifier(nil), cls...)}
}

func (l *ClassifiersList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Items returns a snapshot of the rules.
func (l *ClassifiersList) Items() []*Classifier {
	if l == nil {
		return nil
	}
	return append([]*Classifier(nil), l.items...)
}

func (l *ClassifiersList) Append(cls ...*Classifier) {
	l.items = append(l.items, cls...)
}

// Remove drops cl by identity and reports whether it was present.
func (l *ClassifiersList) Remove(cl *Classifier) bool {
	if l == nil {
		return false
	}
	for i, item := range l.items {
		if item == cl {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *ClassifiersList) Contains(cl *Classifier) bool {
	if l == nil {
		return false
	}
	for _, item := range l.items {
		if item == cl {
			return true
		}
	}
	return false
}

// Numerosity sums the numerosity of every rule.
func (l *ClassifiersList) Numerosity() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, cl := range l.items {
		n += cl.Num
	}
	return n
}

func (l *ClassifiersList) formMatchSet(p perception.Perception) *ClassifiersList {
	ms := &ClassifiersList{}
	for _, cl := range l.items {
		if cl.Matches(p) {
			ms.items = append(ms.items, cl)
		}
	}
	return ms
}

// FormActionSet implements lcs.MatchSet.
func (l *ClassifiersList) FormActionSet(action int) lcs.ActionSet {
	as := &ClassifiersList{}
	if l == nil {
		return as
	}
	for _, cl := range l.items {
		if cl.Action == action {
			as.items = append(as.items, cl)
		}
	}
	return as
}

// MaxFitness implements lcs.MatchSet.
func (l *ClassifiersList) MaxFitness() float64 {
	best := 0.0
	if l == nil {
		return best
	}
	for _, cl := range l.items {
		if cl.AnticipatesChange() && cl.Fitness() > best {
			best = cl.Fitness()
		}
	}
	return best
}

// ActionValues implements lcs.MatchSet.
func (l *ClassifiersList) ActionValues() map[int]float64 {
	values := make(map[int]float64)
	if l == nil {
		return values
	}
	for _, cl := range l.items {
		if !cl.AnticipatesChange() {
			continue
		}
		v := cl.Fitness() * float64(cl.Num)
		if cur, ok := values[cl.Action]; !ok || v > cur {
			values[cl.Action] = v
		}
	}
	return values
}

// asList recovers the concrete list behind an lcs set. A nil interface
// yields a nil list.
func asList(set interface{ Len() int }) (*ClassifiersList, error) {
	if set == nil {
		return nil, nil
	}
	l, ok := set.(*ClassifiersList)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrForeignSet, set)
	}
	return l, nil
}

package acs2

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/lcs"
	"github.com/cartridge/acs2her/internal/perception"
)

// ErrNoActionSet is returned when learning is requested without an action
// set.
var ErrNoActionSet = errors.New("action set is required")

// Population is the ACS2 rule set. It is not safe for concurrent use.
type Population struct {
	cfg         *config.Config
	classifiers *ClassifiersList
	src         rand.Source
	rng         *rand.Rand
}

var _ lcs.Population = (*Population)(nil)

// NewPopulation creates an empty population. A nil source is replaced by one
// seeded from the clock.
func NewPopulation(cfg *config.Config, src rand.Source) *Population {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return &Population{
		cfg:         cfg,
		classifiers: NewClassifiersList(),
		src:         src,
		rng:         rand.New(src),
	}
}

// Size implements lcs.Population.
func (p *Population) Size() int {
	return p.classifiers.Len()
}

// Numerosity sums the numerosity of all rules (the number of micro-rules).
func (p *Population) Numerosity() int {
	return p.classifiers.Numerosity()
}

// Classifiers returns a snapshot of the rules.
func (p *Population) Classifiers() []*Classifier {
	return p.classifiers.Items()
}

// Add inserts rules directly, bypassing learning.
func (p *Population) Add(cls ...*Classifier) {
	p.classifiers.Append(cls...)
}

// Reliable returns the rules whose quality exceeds theta_r.
func (p *Population) Reliable() []*Classifier {
	var out []*Classifier
	for _, cl := range p.classifiers.items {
		if cl.IsReliable() {
			out = append(out, cl)
		}
	}
	return out
}

// FormMatchSet implements lcs.Population.
func (p *Population) FormMatchSet(perc perception.Perception) lcs.MatchSet {
	return p.classifiers.formMatchSet(perc)
}

// EmptyMatchSet implements lcs.Population.
func (p *Population) EmptyMatchSet() lcs.MatchSet {
	return NewClassifiersList()
}

// ApplyRL implements lcs.Population.
func (p *Population) ApplyRL(actionSet lcs.ActionSet, reward, bootstrap, beta, gamma float64) error {
	as, err := asList(actionSet)
	if err != nil {
		return err
	}
	if as == nil {
		return ErrNoActionSet
	}
	for _, cl := range as.items {
		cl.R += beta * (reward + gamma*bootstrap - cl.R)
		cl.IR += beta * (reward - cl.IR)
	}
	return nil
}

// removeEverywhere drops cl from the population and from every given set.
func (p *Population) removeEverywhere(cl *Classifier, sets ...*ClassifiersList) {
	p.classifiers.Remove(cl)
	for _, s := range sets {
		s.Remove(cl)
	}
}

func (p *Population) String() string {
	return fmt.Sprintf("population size=%d numerosity=%d", p.Size(), p.Numerosity())
}

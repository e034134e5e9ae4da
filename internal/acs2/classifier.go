// Package acs2 is an Anticipatory Classifier System: a population of
// condition-action-effect rules refined by an anticipatory learning process,
// valued by reinforcement learning and generalized by a genetic algorithm.
//
// Conditions are matched position by position over the shorter of the rule
// and the perception. A perception shorter than the rule therefore only has
// to match the leading attributes, which lets a raw state be matched against
// rules built on goal-augmented perceptions.
package acs2

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/perception"
)

// Classifier is a single condition-action-effect rule.
type Classifier struct {
	Condition []string
	Action    int
	Effect    []string

	// Mark records, per wildcard condition attribute, the symbols seen in
	// situations where the rule failed to anticipate correctly.
	Mark []map[string]struct{}

	Q  float64 // quality
	R  float64 // reward prediction
	IR float64 // immediate reward prediction

	Num int // numerosity
	Exp int // experience

	TGA  int     // time of last GA application
	TALP int     // time of last ALP application
	TAV  float64 // application average

	cfg *config.Config
}

// NewClassifier returns the most general rule for action: every condition
// and effect attribute is a wildcard.
func NewClassifier(cfg *config.Config, action int) *Classifier {
	n := cfg.ClassifierLength
	cl := &Classifier{
		Condition: make([]string, n),
		Action:    action,
		Effect:    make([]string, n),
		Mark:      make([]map[string]struct{}, n),
		Q:         0.5,
		R:         0.5,
		Num:       1,
		Exp:       1,
		cfg:       cfg,
	}
	for i := 0; i < n; i++ {
		cl.Condition[i] = cfg.ClassifierWildcard
		cl.Effect[i] = cfg.ClassifierWildcard
	}
	return cl
}

// copyAt returns a fresh offspring of cl created at time: same condition,
// action, effect and predictions, unmarked, numerosity and experience one.
func (cl *Classifier) copyAt(time int) *Classifier {
	child := &Classifier{
		Condition: append([]string(nil), cl.Condition...),
		Action:    cl.Action,
		Effect:    append([]string(nil), cl.Effect...),
		Mark:      make([]map[string]struct{}, len(cl.Condition)),
		Q:         cl.Q,
		R:         cl.R,
		IR:        cl.IR,
		Num:       1,
		Exp:       1,
		TGA:       time,
		TALP:      time,
		TAV:       cl.TAV,
		cfg:       cl.cfg,
	}
	return child
}

func (cl *Classifier) wildcard() string {
	return cl.cfg.ClassifierWildcard
}

// Fitness is quality times reward prediction.
func (cl *Classifier) Fitness() float64 {
	return cl.Q * cl.R
}

// Matches reports whether every specified condition attribute equals the
// perception. Only the overlapping prefix is compared.
func (cl *Classifier) Matches(p perception.Perception) bool {
	wc := cl.wildcard()
	n := min(len(cl.Condition), len(p))
	for i := 0; i < n; i++ {
		if cl.Condition[i] != wc && cl.Condition[i] != p[i] {
			return false
		}
	}
	return true
}

// Specificity counts the specified condition attributes.
func (cl *Classifier) Specificity() int {
	return specificity(cl.Condition, cl.wildcard())
}

// AnticipatesChange reports whether any effect attribute is specified.
func (cl *Classifier) AnticipatesChange() bool {
	return specificity(cl.Effect, cl.wildcard()) > 0
}

// AnticipatesCorrectly reports whether the effect predicts p1 from p0:
// wildcard attributes must not change and specified ones must change into
// the predicted symbol.
func (cl *Classifier) AnticipatesCorrectly(p0, p1 perception.Perception) bool {
	wc := cl.wildcard()
	n := min(len(cl.Effect), len(p0), len(p1))
	for i := 0; i < n; i++ {
		if cl.Effect[i] == wc {
			if p0[i] != p1[i] {
				return false
			}
			continue
		}
		if p0[i] == p1[i] || cl.Effect[i] != p1[i] {
			return false
		}
	}
	return true
}

// IsMarked reports whether the rule has been marked by a failure.
func (cl *Classifier) IsMarked() bool {
	for _, m := range cl.Mark {
		if len(m) > 0 {
			return true
		}
	}
	return false
}

// SetMark records p0 on every wildcard condition attribute.
func (cl *Classifier) SetMark(p0 perception.Perception) {
	wc := cl.wildcard()
	n := min(len(cl.Condition), len(p0))
	for i := 0; i < n; i++ {
		if cl.Condition[i] != wc {
			continue
		}
		if cl.Mark[i] == nil {
			cl.Mark[i] = make(map[string]struct{})
		}
		cl.Mark[i][p0[i]] = struct{}{}
	}
}

// markDifferences returns a condition-shaped slice specifying the attributes
// that distinguish p0 from the situations recorded in the mark. Attributes
// whose symbol was never marked are unique differences and one of them is
// chosen at random; otherwise every marked attribute is specified.
func (cl *Classifier) markDifferences(p0 perception.Perception, rng *rand.Rand) []string {
	wc := cl.wildcard()
	diff := make([]string, len(cl.Condition))
	for i := range diff {
		diff[i] = wc
	}
	if !cl.IsMarked() {
		return diff
	}

	var unique, marked []int
	n := min(len(cl.Mark), len(p0))
	for i := 0; i < n; i++ {
		if len(cl.Mark[i]) == 0 {
			continue
		}
		if _, seen := cl.Mark[i][p0[i]]; !seen {
			unique = append(unique, i)
		} else {
			marked = append(marked, i)
		}
	}

	if len(unique) > 0 {
		i := unique[rng.Intn(len(unique))]
		diff[i] = p0[i]
		return diff
	}
	for _, i := range marked {
		diff[i] = p0[i]
	}
	return diff
}

// IsSubsumer reports whether the rule is experienced, reliable and unmarked.
func (cl *Classifier) IsSubsumer(thetaExp int) bool {
	return cl.Exp > thetaExp && cl.Q > cl.cfg.ThetaR && !cl.IsMarked()
}

// IsMoreGeneral reports whether cl's condition is a strict generalization of
// other's.
func (cl *Classifier) IsMoreGeneral(other *Classifier) bool {
	wc := cl.wildcard()
	more := false
	n := min(len(cl.Condition), len(other.Condition))
	for i := 0; i < n; i++ {
		self, theirs := cl.Condition[i], other.Condition[i]
		if self != wc && self != theirs {
			return false
		}
		if self != theirs {
			more = true
		}
	}
	return more
}

// DoesSubsume reports whether cl can absorb other.
func (cl *Classifier) DoesSubsume(other *Classifier, thetaExp int) bool {
	return cl.Action == other.Action &&
		cl.IsSubsumer(thetaExp) &&
		cl.IsMoreGeneral(other) &&
		equalSymbols(cl.Effect, other.Effect)
}

// Similar reports whether both rules share condition, action and effect.
func (cl *Classifier) Similar(other *Classifier) bool {
	return cl.Action == other.Action &&
		equalSymbols(cl.Condition, other.Condition) &&
		equalSymbols(cl.Effect, other.Effect)
}

func (cl *Classifier) IncreaseQuality() {
	cl.Q += cl.cfg.Beta * (1 - cl.Q)
}

func (cl *Classifier) DecreaseQuality() {
	cl.Q -= cl.cfg.Beta * cl.Q
}

// IsInadequate reports whether the quality fell below theta_i.
func (cl *Classifier) IsInadequate() bool {
	return cl.Q < cl.cfg.ThetaI
}

// IsReliable reports whether the quality exceeds theta_r.
func (cl *Classifier) IsReliable() bool {
	return cl.Q > cl.cfg.ThetaR
}

func (cl *Classifier) updateApplicationAverage(time int) {
	elapsed := float64(time - cl.TALP)
	if float64(cl.Exp) < 1/cl.cfg.Beta {
		cl.TAV += (elapsed - cl.TAV) / float64(cl.Exp)
	} else {
		cl.TAV += cl.cfg.Beta * (elapsed - cl.TAV)
	}
	cl.TALP = time
}

// isSpecializable reports whether every specified effect attribute predicts
// a change that actually happened.
func (cl *Classifier) isSpecializable(p0, p1 perception.Perception) bool {
	wc := cl.wildcard()
	n := min(len(cl.Effect), len(p0), len(p1))
	for i := 0; i < n; i++ {
		if cl.Effect[i] == wc {
			continue
		}
		if cl.Effect[i] != p1[i] || p0[i] == p1[i] {
			return false
		}
	}
	return true
}

// specialize specifies condition and effect on every attribute that changed
// between p0 and p1.
func (cl *Classifier) specialize(p0, p1 perception.Perception, leaveSpecialized bool) {
	wc := cl.wildcard()
	n := min(len(cl.Condition), len(p0), len(p1))
	for i := 0; i < n; i++ {
		if leaveSpecialized && cl.Effect[i] != wc {
			continue
		}
		if p0[i] != p1[i] {
			if cl.Effect[i] == wc {
				cl.Effect[i] = p1[i]
			}
			cl.Condition[i] = p0[i]
		}
	}
}

// specializeWithCondition copies every specified attribute of diff into the
// condition.
func (cl *Classifier) specializeWithCondition(diff []string) {
	wc := cl.wildcard()
	for i, symbol := range diff {
		if symbol != wc && i < len(cl.Condition) {
			cl.Condition[i] = symbol
		}
	}
}

// unchangingAttributes lists condition attributes that are specified while
// the effect is a wildcard.
func (cl *Classifier) unchangingAttributes() []int {
	wc := cl.wildcard()
	var idx []int
	for i := range cl.Condition {
		if cl.Condition[i] != wc && cl.Effect[i] == wc {
			idx = append(idx, i)
		}
	}
	return idx
}

// generalizeUnchangingAttribute turns one random unchanging attribute back
// into a wildcard. It reports false when there is none.
func (cl *Classifier) generalizeUnchangingAttribute(rng *rand.Rand) bool {
	idx := cl.unchangingAttributes()
	if len(idx) == 0 {
		return false
	}
	cl.Condition[idx[rng.Intn(len(idx))]] = cl.wildcard()
	return true
}

func (cl *Classifier) String() string {
	return fmt.Sprintf("%s-%d-%s q=%.3f r=%.3f ir=%.3f f=%.3f exp=%d num=%d",
		strings.Join(cl.Condition, ""), cl.Action, strings.Join(cl.Effect, ""),
		cl.Q, cl.R, cl.IR, cl.Fitness(), cl.Exp, cl.Num)
}

func specificity(attrs []string, wildcard string) int {
	n := 0
	for _, a := range attrs {
		if a != wildcard {
			n++
		}
	}
	return n
}

// generalizeRandomAttribute turns one random specified attribute of attrs
// into a wildcard.
func generalizeRandomAttribute(attrs []string, wildcard string, rng *rand.Rand) bool {
	var idx []int
	for i, a := range attrs {
		if a != wildcard {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return false
	}
	attrs[idx[rng.Intn(len(idx))]] = wildcard
	return true
}

func equalSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package acs2

import (
	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/lcs"
	"github.com/cartridge/acs2her/internal/perception"
)

// ApplyALP implements lcs.Population.
//
// Every rule of the action set gains experience. Rules that anticipated p1
// correctly are rewarded and, if marked, spawn a more specific child; rules
// that failed are punished, marked, possibly specialized and removed once
// inadequate. When no rule anticipated correctly a covering rule is created.
func (p *Population) ApplyALP(nextMatchSet lcs.MatchSet, actionSet lcs.ActionSet, p0 perception.Perception,
	action int, p1 perception.Perception, time, thetaExp int, cfg *config.Config) error {
	as, err := asList(actionSet)
	if err != nil {
		return err
	}
	if as == nil {
		return ErrNoActionSet
	}
	next, err := asList(nextMatchSet)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = p.cfg
	}

	created := NewClassifiersList()
	wasExpected := false

	for _, cl := range as.Items() {
		cl.Exp++
		cl.updateApplicationAverage(time)

		var child *Classifier
		if cl.AnticipatesCorrectly(p0, p1) {
			child = expectedCase(cl, p0, time, cfg.UMax, p.rng)
			wasExpected = true
		} else {
			child = unexpectedCase(cl, p0, p1, time)
			if cl.IsInadequate() {
				p.removeEverywhere(cl, as, next)
			}
		}
		if child != nil {
			child.TGA = time
			addALPClassifier(child, as, created, thetaExp)
		}
	}

	if !wasExpected {
		child := cover(p0, action, p1, time, cfg)
		addALPClassifier(child, as, created, thetaExp)
	}

	for _, cl := range created.items {
		p.classifiers.Append(cl)
		as.Append(cl)
		if next != nil && cl.Matches(p1) {
			next.Append(cl)
		}
	}
	return nil
}

// expectedCase handles a correct anticipation. An unmarked rule only gains
// quality; a marked one yields a child specialized on the attributes that
// tell p0 apart from the situations it failed in, respecting uMax.
func expectedCase(cl *Classifier, p0 perception.Perception, time, uMax int, rng *rand.Rand) *Classifier {
	diff := cl.markDifferences(p0, rng)
	wc := cl.wildcard()
	specNew := specificity(diff, wc)
	if specNew == 0 {
		cl.IncreaseQuality()
		return nil
	}

	child := cl.copyAt(time)
	spec := len(child.unchangingAttributes())

	if spec >= uMax {
		for spec >= uMax && child.generalizeUnchangingAttribute(rng) {
			spec--
		}
		for spec+specNew > uMax {
			if specNew > 0 && (spec == 0 || rng.Float64() < 0.5) {
				generalizeRandomAttribute(diff, wc, rng)
				specNew--
			} else if child.generalizeUnchangingAttribute(rng) {
				spec--
			} else {
				break
			}
		}
	} else {
		for spec+specNew > uMax && specNew > 0 {
			generalizeRandomAttribute(diff, wc, rng)
			specNew--
		}
	}

	child.specializeWithCondition(diff)
	if child.Q < 0.5 {
		child.Q = 0.5
	}
	return child
}

// unexpectedCase handles a wrong anticipation. The rule loses quality and is
// marked with p0; if its effect is still consistent with what changed, a
// child specialized on the observed change is returned.
func unexpectedCase(cl *Classifier, p0, p1 perception.Perception, time int) *Classifier {
	cl.DecreaseQuality()
	cl.SetMark(p0)
	if !cl.isSpecializable(p0, p1) {
		return nil
	}
	child := cl.copyAt(time)
	child.specialize(p0, p1, true)
	if child.Q < 0.5 {
		child.Q = 0.5
	}
	return child
}

// cover creates a rule that anticipates exactly the observed transition.
func cover(p0 perception.Perception, action int, p1 perception.Perception, time int, cfg *config.Config) *Classifier {
	child := NewClassifier(cfg, action)
	child.TGA = time
	child.TALP = time
	child.specialize(p0, p1, false)
	return child
}

// addALPClassifier merges child into an existing rule when one subsumes it or
// is identical to it, and otherwise queues it in created.
func addALPClassifier(child *Classifier, actionSet, created *ClassifiersList, thetaExp int) {
	old := findSubsumer(child, actionSet, thetaExp)
	if old == nil {
		old = findSubsumer(child, created, thetaExp)
	}
	if old == nil {
		old = findSimilar(child, actionSet)
	}
	if old == nil {
		old = findSimilar(child, created)
	}

	if old == nil {
		created.Append(child)
		return
	}
	if !old.IsMarked() {
		old.IncreaseQuality()
	}
}

// findSubsumer returns the most general rule of set that subsumes child.
func findSubsumer(child *Classifier, set *ClassifiersList, thetaExp int) *Classifier {
	var best *Classifier
	for _, cl := range set.items {
		if cl.DoesSubsume(child, thetaExp) && (best == nil || cl.IsMoreGeneral(best)) {
			best = cl
		}
	}
	return best
}

func findSimilar(child *Classifier, set *ClassifiersList) *Classifier {
	for _, cl := range set.items {
		if cl.Similar(child) {
			return cl
		}
	}
	return nil
}

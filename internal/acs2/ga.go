package acs2

import (
	"math"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/lcs"
	"github.com/cartridge/acs2her/internal/perception"
)

// deletionProbability is the chance that each action-set rule is considered
// as a deletion candidate in one pass.
const deletionProbability = 0.3

// ApplyGA implements lcs.Population.
//
// Two parents are drawn from the action set by roulette on q^3*num, mutated
// towards generality and optionally crossed over. Children with an empty
// condition are dropped; the others make room in the action set and are
// then inserted, subsumed or merged.
func (p *Population) ApplyGA(time int, nextMatchSet lcs.MatchSet, actionSet lcs.ActionSet,
	p1 perception.Perception, ga config.GAParams) error {
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

	if !shouldApplyGA(as, time, ga.ThetaGA) {
		return nil
	}
	for _, cl := range as.items {
		cl.TGA = time
	}

	parent1, parent2 := p.rouletteSelection(as)
	child1 := parent1.copyAt(time)
	child2 := parent2.copyAt(time)

	p.mutate(child1, ga.Mu)
	p.mutate(child2, ga.Mu)

	if p.rng.Float64() < ga.Chi && equalSymbols(child1.Effect, child2.Effect) {
		p.twoPointCrossover(child1, child2)

		q := (child1.Q + child2.Q) / 2
		child1.Q, child2.Q = q, q
		r := (child1.R + child2.R) / 2
		child1.R, child2.R = r, r
	}

	child1.Q /= 2
	child2.Q /= 2

	var children []*Classifier
	for _, child := range []*Classifier{child1, child2} {
		if child.Specificity() == 0 {
			continue
		}
		if len(children) > 0 && children[0].Similar(child) {
			continue
		}
		children = append(children, child)
	}
	if len(children) == 0 {
		return nil
	}

	p.deleteClassifiers(next, as, len(children), ga.ThetaAS)

	for _, child := range children {
		p.addGAClassifier(child, p1, next, as, ga.DoSubsumption, ga.ThetaExp)
	}
	return nil
}

// shouldApplyGA compares the numerosity-weighted mean time since the last GA
// application with thetaGA.
func shouldApplyGA(as *ClassifiersList, time, thetaGA int) bool {
	num := as.Numerosity()
	if num == 0 {
		return false
	}
	overall := 0
	for _, cl := range as.items {
		overall += cl.TGA * cl.Num
	}
	return float64(time)-float64(overall)/float64(num) > float64(thetaGA)
}

// rouletteSelection draws two parents with replacement, each with
// probability proportional to q^3*num.
func (p *Population) rouletteSelection(as *ClassifiersList) (*Classifier, *Classifier) {
	weights := make([]float64, len(as.items))
	total := 0.0
	for i, cl := range as.items {
		weights[i] = cl.Q * cl.Q * cl.Q * float64(cl.Num)
		total += weights[i]
	}
	if total <= 0 {
		return as.items[p.rng.Intn(len(weights))], as.items[p.rng.Intn(len(weights))]
	}

	w := sampleuv.NewWeighted(weights, p.src)
	first, _ := w.Take()
	w.Reweight(first, weights[first])
	second, _ := w.Take()
	return as.items[first], as.items[second]
}

// mutate turns each specified condition attribute into a wildcard with
// probability mu.
func (p *Population) mutate(cl *Classifier, mu float64) {
	wc := cl.wildcard()
	for i, symbol := range cl.Condition {
		if symbol != wc && p.rng.Float64() < mu {
			cl.Condition[i] = wc
		}
	}
}

// twoPointCrossover swaps the condition segment between two distinct cut
// points.
func (p *Population) twoPointCrossover(a, b *Classifier) {
	n := min(len(a.Condition), len(b.Condition))
	cuts := make([]int, 2)
	sampleuv.WithoutReplacement(cuts, n+1, p.src)
	left, right := min(cuts[0], cuts[1]), max(cuts[0], cuts[1])
	for i := left; i < right; i++ {
		a.Condition[i], b.Condition[i] = b.Condition[i], a.Condition[i]
	}
}

// deleteClassifiers frees room for insize new rules until the action set
// numerosity plus insize fits thetaAS. Each pass considers every rule with
// probability deletionProbability and deletes the worst candidate: lowest
// quality, ties broken by the higher application average, with marked rules
// preferred among near-equal qualities.
func (p *Population) deleteClassifiers(matchSet, as *ClassifiersList, insize, thetaAS int) {
	for insize+as.Numerosity() > thetaAS && as.Len() > 0 {
		var del *Classifier
		for _, cl := range as.items {
			if p.rng.Float64() >= deletionProbability {
				continue
			}
			if del == nil {
				del = cl
				continue
			}
			switch {
			case cl.Q-del.Q < -0.1:
				del = cl
			case math.Abs(cl.Q-del.Q) <= 0.1:
				if cl.IsMarked() && !del.IsMarked() {
					del = cl
				} else if cl.IsMarked() == del.IsMarked() && cl.TAV > del.TAV {
					del = cl
				}
			}
		}
		if del == nil {
			continue
		}
		if del.Num > 1 {
			del.Num--
		} else {
			p.removeEverywhere(del, matchSet, as)
		}
	}
}

// addGAClassifier merges child into a subsuming or identical rule of the
// action set, or inserts it into the population, the action set and, when it
// matches p1, the match set.
func (p *Population) addGAClassifier(child *Classifier, p1 perception.Perception, matchSet, as *ClassifiersList,
	doSubsumption bool, thetaExp int) {
	var old *Classifier
	if doSubsumption {
		old = findSubsumer(child, as, thetaExp)
	}
	if old == nil {
		old = findSimilar(child, as)
	}

	if old != nil {
		if !old.IsMarked() {
			old.Num++
		}
		return
	}

	p.classifiers.Append(child)
	as.Append(child)
	if matchSet != nil && child.Matches(p1) {
		matchSet.Append(child)
	}
}

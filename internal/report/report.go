// Package report renders learning curves for a finished run.
package report

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/cartridge/acs2her/internal/agent"
)

// ErrNoTrials is returned when there is nothing to draw.
var ErrNoTrials = errors.New("no trials to plot")

// StepsPerTrial builds one series per mode: the i-th point is the step count
// of the i-th trial run in that mode.
func StepsPerTrial(trials []agent.TrialMetrics) map[agent.Mode]plotter.XYs {
	series := make(map[agent.Mode]plotter.XYs)
	for _, t := range trials {
		points := series[t.Mode]
		series[t.Mode] = append(points, plotter.XY{
			X: float64(len(points)),
			Y: float64(t.Steps),
		})
	}
	return series
}

// LearningCurve saves a steps-per-trial plot to path. The image format
// follows the file extension.
func LearningCurve(path, title string, trials []agent.TrialMetrics) error {
	if len(trials) == 0 {
		return ErrNoTrials
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Trial"
	p.Y.Label.Text = "Steps"

	series := StepsPerTrial(trials)
	for i, mode := range []agent.Mode{agent.ModeExplore, agent.ModeExploit} {
		points, ok := series[mode]
		if !ok {
			continue
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("%s line: %w", mode, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(mode.String(), line)
	}

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// Package analysis collects per-episode training results and renders
// comparison plots across groups.
package analysis

import (
	"fmt"
	"os"
	"path"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type LossPoint struct {
	Episode   int
	Loss      float64
	MeanValue float64
}

// LossSeries is one group's training curve.
type LossSeries struct {
	Name   string
	Points []LossPoint
}

func NewLossSeries(name string) *LossSeries {
	return &LossSeries{Name: name, Points: make([]LossPoint, 0)}
}

func (s *LossSeries) Record(episode int, loss, meanValue float64) {
	s.Points = append(s.Points, LossPoint{Episode: episode, Loss: loss, MeanValue: meanValue})
}

// PlotSeries draws one line per group for both the loss and the mean value
// curves and saves them under plotPath.
func PlotSeries(plotPath string, series []*LossSeries) error {
	if _, err := os.Stat(plotPath); err != nil {
		if err := os.MkdirAll(plotPath, os.ModePerm); err != nil {
			return err
		}
	}
	if err := plotMetric(path.Join(plotPath, "loss.png"), "Training loss", series, func(p LossPoint) float64 { return p.Loss }); err != nil {
		return err
	}
	return plotMetric(path.Join(plotPath, "mean_value.png"), "Mean state value", series, func(p LossPoint) float64 { return p.MeanValue })
}

func plotMetric(file, title string, series []*LossSeries, value func(LossPoint) float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = title
	for i, s := range series {
		points := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			points[j] = plotter.XY{X: float64(pt.Episode), Y: value(pt)}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("plotting %s: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	return p.Save(8*vg.Inch, 8*vg.Inch, file)
}

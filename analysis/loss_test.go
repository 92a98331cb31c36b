package analysis

import (
	"os"
	"path"
	"testing"
)

func TestPlotSeriesWritesBothPlots(t *testing.T) {
	a := NewLossSeries("group-0")
	b := NewLossSeries("group-1")
	for i := 0; i < 10; i++ {
		a.Record(i, 1/float64(i+1), float64(i))
		b.Record(i, 2/float64(i+1), float64(i)/2)
	}

	dir := path.Join(t.TempDir(), "plots")
	if err := PlotSeries(dir, []*LossSeries{a, b}); err != nil {
		t.Fatalf("plotting: %v", err)
	}
	for _, name := range []string{"loss.png", "mean_value.png"} {
		if _, err := os.Stat(path.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

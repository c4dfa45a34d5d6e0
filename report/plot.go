package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const maxBins = 200

// PlotSpans saves a histogram of cycle spans to path. The image format
// follows the file extension.
func PlotSpans(path, title string, spans []int) error {
	if len(spans) == 0 {
		return fmt.Errorf("no spans to plot")
	}

	values := make(plotter.Values, len(spans))
	bins := 1
	for i, s := range spans {
		values[i] = float64(s)
		bins = max(bins, s)
	}
	bins = min(bins, maxBins)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "samples per cycle"
	p.Y.Label.Text = "symbols"

	h, err := plotter.NewHist(values, bins)
	if err != nil {
		return fmt.Errorf("could not build histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}

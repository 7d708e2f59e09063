package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"elephant-logger/models"
	"elephant-logger/utils"
)

// PlotFeatureTimeseries draws each feature column over time in a 4x2 grid,
// with positive-label samples marked.
func PlotFeatureTimeseries(samples []models.LabeledSample, positiveLabel, path string) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	names := models.FeatureNames()
	plots := make([][]*plot.Plot, 4)

	for row := 0; row < 4; row++ {
		plots[row] = make([]*plot.Plot, 2)
		for col := 0; col < 2; col++ {
			idx := row*2 + col
			p := plot.New()
			p.Title.Text = names[idx]
			p.X.Label.Text = "time"
			p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}

			line := make(plotter.XYs, len(samples))
			var marks plotter.XYs
			for i, sample := range samples {
				x := float64(sample.Timestamp.Unix())
				y := sample.Features.Values()[idx]
				line[i] = plotter.XY{X: x, Y: y}
				if sample.Label == positiveLabel {
					marks = append(marks, plotter.XY{X: x, Y: y})
				}
			}

			l, err := plotter.NewLine(line)
			if err != nil {
				return fmt.Errorf("timeseries line for %s: %w", names[idx], err)
			}
			l.Color = plotutil.Color(0)
			p.Add(l)

			if len(marks) > 0 {
				s, err := plotter.NewScatter(marks)
				if err != nil {
					return fmt.Errorf("timeseries marks for %s: %w", names[idx], err)
				}
				s.GlyphStyle.Color = plotutil.Color(3)
				s.GlyphStyle.Radius = vg.Points(2)
				p.Add(s)
			}

			plots[row][col] = p
		}
	}

	return saveGrid(plots, 4, 2, 12*vg.Inch, 16*vg.Inch, path)
}

// PlotPCA draws the first two principal components as a label-colored scatter
// next to the explained-variance bars.
func PlotPCA(samples []models.LabeledSample, result *PCAResult, positiveLabel, path string) error {
	scatter := plot.New()
	scatter.Title.Text = "PCA: first two components"
	scatter.X.Label.Text = fmt.Sprintf("PC1 (%.1f%%)", result.VarianceRatios[0]*100)
	scatter.Y.Label.Text = fmt.Sprintf("PC2 (%.1f%%)", result.VarianceRatios[1]*100)

	var positives, negatives plotter.XYs
	for i, sample := range samples {
		xy := plotter.XY{X: result.Scores.At(i, 0), Y: result.Scores.At(i, 1)}
		if sample.Label == positiveLabel {
			positives = append(positives, xy)
		} else {
			negatives = append(negatives, xy)
		}
	}
	for i, group := range []struct {
		name string
		xys  plotter.XYs
	}{{positiveLabel, positives}, {"other", negatives}} {
		if len(group.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(group.xys)
		if err != nil {
			return fmt.Errorf("pca scatter: %w", err)
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Radius = vg.Points(2)
		scatter.Add(s)
		scatter.Legend.Add(group.name, s)
	}

	bars := plot.New()
	bars.Title.Text = "Explained variance by component"
	bars.X.Label.Text = "component"
	bars.Y.Label.Text = "variance ratio"

	values := make(plotter.Values, len(result.VarianceRatios))
	labels := make([]string, len(result.VarianceRatios))
	for i, ratio := range result.VarianceRatios {
		values[i] = ratio
		labels[i] = fmt.Sprintf("PC%d", i+1)
	}
	chart, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return fmt.Errorf("variance bars: %w", err)
	}
	chart.Color = plotutil.Color(0)
	bars.Add(chart)
	bars.NominalX(labels...)

	return saveGrid([][]*plot.Plot{{scatter, bars}}, 1, 2, 12*vg.Inch, 5*vg.Inch, path)
}

// corrGrid adapts a correlation matrix to the heat map interface.
type corrGrid struct {
	matrix [][]float64
}

func (g corrGrid) Dims() (int, int)   { return len(g.matrix), len(g.matrix) }
func (g corrGrid) Z(c, r int) float64 { return g.matrix[r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// PlotCorrelationHeatmap draws the feature correlation matrix.
func PlotCorrelationHeatmap(matrix [][]float64, path string) error {
	p := plot.New()
	p.Title.Text = "Feature correlation matrix"

	pal := moreland.SmoothBlueRed().Palette(255)
	heat := plotter.NewHeatMap(corrGrid{matrix: matrix}, pal)
	heat.Min = -1
	heat.Max = 1
	p.Add(heat)

	names := models.FeatureNames()
	ticks := make([]plot.Tick, len(names))
	for i, name := range names {
		ticks[i] = plot.Tick{Value: float64(i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = draw.XRight
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)

	return p.Save(8*vg.Inch, 7*vg.Inch, path)
}

// PlotDetectionAnalysis draws the confidence distribution of positive samples
// and the detection count per hour of day.
func PlotDetectionAnalysis(samples []models.LabeledSample, summary DetectionSummary, positiveLabel, path string) error {
	hist := plot.New()
	hist.Title.Text = "Confidence score distribution"
	hist.X.Label.Text = "confidence"

	var confidences plotter.Values
	for _, sample := range samples {
		if sample.Label == positiveLabel {
			confidences = append(confidences, sample.Confidence)
		}
	}
	if len(confidences) > 0 {
		h, err := plotter.NewHist(confidences, 20)
		if err != nil {
			return fmt.Errorf("confidence histogram: %w", err)
		}
		h.FillColor = plotutil.Color(0)
		hist.Add(h)
	}

	hourly := plot.New()
	hourly.Title.Text = "Detections by hour"
	hourly.X.Label.Text = "hour of day"
	hourly.Y.Label.Text = "count"

	values := make(plotter.Values, 24)
	labels := make([]string, 24)
	for hour := 0; hour < 24; hour++ {
		values[hour] = float64(summary.ByHour[hour])
		labels[hour] = fmt.Sprintf("%02d", hour)
	}
	chart, err := plotter.NewBarChart(values, vg.Points(8))
	if err != nil {
		return fmt.Errorf("hourly bars: %w", err)
	}
	chart.Color = plotutil.Color(2)
	hourly.Add(chart)
	hourly.NominalX(labels...)

	return saveGrid([][]*plot.Plot{{hist, hourly}}, 1, 2, 12*vg.Inch, 5*vg.Inch, path)
}

// saveGrid renders a grid of plots into one PNG.
func saveGrid(plots [][]*plot.Plot, rows, cols int, width, height vg.Length, path string) error {
	img := vgimg.New(width, height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows: rows,
		Cols: cols,
		PadX: vg.Points(8),
		PadY: vg.Points(8),
	}

	canvases := plot.Align(plots, tiles, dc)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if plots[r][c] != nil {
				plots[r][c].Draw(canvases[r][c])
			}
		}
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

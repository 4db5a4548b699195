// Package render draws historical rate series into chart images.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const dateLayout = "2006-01-02"

// Point is one day of a rate series.
type Point struct {
	Date time.Time
	Rate float64
}

// Renderer turns an ordered series into an image file and returns its path.
type Renderer interface {
	Render(ctx context.Context, name string, points []Point) (string, error)
}

// ChartRenderer draws PNG line charts with gonum/plot.
type ChartRenderer struct {
	outputDir string
	width     vg.Length
	height    vg.Length
}

// NewChartRenderer creates a renderer writing <name>.png files into outputDir.
func NewChartRenderer(outputDir string, widthInch, heightInch float64) (*ChartRenderer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	if widthInch <= 0 {
		widthInch = 8
	}
	if heightInch <= 0 {
		heightInch = 4.5
	}
	return &ChartRenderer{
		outputDir: outputDir,
		width:     vg.Length(widthInch) * vg.Inch,
		height:    vg.Length(heightInch) * vg.Inch,
	}, nil
}

// Path returns where a chart with the given name is written.
func (r *ChartRenderer) Path(name string) string {
	return filepath.Join(r.outputDir, name+".png")
}

// Render plots the series titled with name. Points must already be in chronological order.
func (r *ChartRenderer) Render(_ context.Context, name string, points []Point) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("render %s: empty series", name)
	}

	p := plot.New()
	p.Title.Text = name
	p.X.Tick.Marker = plot.TimeTicks{Format: dateLayout}
	p.Y.Label.Text = "rate"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.Date.Unix())
		xys[i].Y = pt.Rate
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return "", fmt.Errorf("render %s: build line: %w", name, err)
	}
	line.LineStyle.Width = vg.Points(2)
	p.Add(line)

	wt, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	// write to a temp file and rename so readers never see a half-written chart
	tmp, err := os.CreateTemp(r.outputDir, name+"-*.png.tmp")
	if err != nil {
		return "", fmt.Errorf("render %s: create temp file: %w", name, err)
	}
	if _, err := wt.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("render %s: write png: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("render %s: close png: %w", name, err)
	}

	path := r.Path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("render %s: publish png: %w", name, err)
	}
	return path, nil
}

var _ Renderer = (*ChartRenderer)(nil)

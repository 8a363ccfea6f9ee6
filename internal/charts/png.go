package charts

import (
	"fmt"
	"image/color"
	"io"

	"github.com/banshee-data/clusterview/internal/fsutil"
	"github.com/banshee-data/clusterview/internal/kmeans"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	pngWidth  = 8 * vg.Inch
	pngHeight = 6 * vg.Inch
)

var centroidColor = color.RGBA{R: 220, A: 255}

// WritePNG renders the scatter plot as a PNG image into w.
func (s Scatter) WritePNG(w io.Writer) error {
	p, err := s.plot()
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePNG renders the scatter plot to path, creating parent directories.
func (s Scatter) SavePNG(fsys fsutil.FileSystem, path string) error {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	if err := s.WritePNG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s Scatter) plot() (*plot.Plot, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = s.title()
	p.X.Label.Text = s.XLabel
	p.Y.Label.Text = s.YLabel
	p.Add(plotter.NewGrid())

	colors := palette(s.Result.K())
	for c, members := range s.clusterPoints() {
		if len(members) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(toXYs(members))
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", c, err)
		}
		sc.GlyphStyle.Color = colors[c]
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(seriesName(c), sc)
	}

	centroids, err := plotter.NewScatter(toXYs(s.Result.Centroids))
	if err != nil {
		return nil, fmt.Errorf("centroids: %w", err)
	}
	centroids.GlyphStyle.Color = centroidColor
	centroids.GlyphStyle.Shape = draw.CrossGlyph{}
	centroids.GlyphStyle.Radius = vg.Points(6)
	p.Add(centroids)
	p.Legend.Add(CentroidsLabel, centroids)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

func toXYs(pts []kmeans.Point) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	return xys
}

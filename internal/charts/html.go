package charts

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders the scatter plot as a self-contained go-echarts page.
func (s Scatter) WriteHTML(w io.Writer) error {
	if err := s.validate(); err != nil {
		return err
	}

	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.title(), Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    s.title(),
			Subtitle: fmt.Sprintf("points=%d k=%d iterations=%d", len(s.Points), s.Result.K(), s.Result.Iterations),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: s.XLabel, NameLocation: "middle", NameGap: 25, Min: "dataMin", Max: "dataMax"}),
		charts.WithYAxisOpts(opts.YAxis{Name: s.YLabel, NameLocation: "middle", NameGap: 30, Min: "dataMin", Max: "dataMax"}),
	)

	colors := palette(s.Result.K())
	for c, members := range s.clusterPoints() {
		data := make([]opts.ScatterData, 0, len(members))
		for _, pt := range members {
			data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y}})
		}
		sc.AddSeries(seriesName(c), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colors[c])}),
		)
	}

	centroids := make([]opts.ScatterData, 0, s.Result.K())
	for c, pt := range s.Result.Centroids {
		centroids = append(centroids, opts.ScatterData{
			Name:   seriesName(c),
			Value:  []interface{}{pt.X, pt.Y},
			Symbol: "diamond",
		})
	}
	sc.AddSeries(CentroidsLabel, centroids,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 16}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(centroidColor)}),
	)

	return sc.Render(w)
}

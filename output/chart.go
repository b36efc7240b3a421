package output

import (
	"fmt"
	"os"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/toolkits/pkg/logger"

	"github.com/ChristianF88/pradix/bench"
)

// PlotPerformance writes an interactive log-log chart of sort time over
// input size, one line per mode.
func PlotPerformance(results []bench.Measurement, filename string) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(performanceChart(results))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create chart file %s: %w", filename, err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	logger.Infof("performance chart saved to %s", filename)
	return nil
}

func performanceChart(results []bench.Measurement) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Radix sort performance",
			Width:     "1200px",
			Height:    "700px",
			Theme:     types.ThemeVintage,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Sort time by input size",
			Subtitle: "log-log scale",
			Left:     "center",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "bottom",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Trigger: "item",
			Formatter: opts.FuncOpts(`function (params) {
		return params.seriesName + '<br />n = ' + params.value[0] + '<br />' + params.value[1].toFixed(6) + ' s';
	}`),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "elements",
			Type: "log",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "seconds",
			Type: "log",
		}),
	)

	for _, mode := range modesOf(results) {
		line.AddSeries(string(mode), seriesFor(results, mode),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		)
	}
	return line
}

// modesOf returns the modes present in results in first-seen order.
func modesOf(results []bench.Measurement) []bench.Mode {
	var modes []bench.Mode
	for _, m := range results {
		if !slices.Contains(modes, m.Mode) {
			modes = append(modes, m.Mode)
		}
	}
	return modes
}

// seriesFor returns the points of one mode ordered by size. Zero sizes and
// zero times have no place on a log axis and are skipped.
func seriesFor(results []bench.Measurement, mode bench.Mode) []opts.LineData {
	var pts []bench.Measurement
	for _, m := range results {
		if m.Mode == mode && m.Size > 0 && m.Elapsed > 0 {
			pts = append(pts, m)
		}
	}
	slices.SortFunc(pts, func(a, b bench.Measurement) int { return a.Size - b.Size })

	data := make([]opts.LineData, len(pts))
	for i, m := range pts {
		data[i] = opts.LineData{Value: []interface{}{m.Size, m.Elapsed.Seconds()}}
	}
	return data
}

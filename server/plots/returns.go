// plots renders batch sampling results as standalone echarts pages.
package plots

import (
	"errors"
	"fmt"
	"io"

	"gridworld/reinforcement"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var ErrNoEpisodes = errors.New("no episodes to plot")

// window is the number of episodes averaged by the running-mean series.
const window = 10

// RenderReturns writes a page plotting each episode's discounted return and
// their running mean, in episode order.
func RenderReturns(w io.Writer, title string, result *reinforcement.BatchResult) error {
	if result == nil || len(result.Episodes) == 0 {
		return ErrNoEpisodes
	}
	returns := result.Returns()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Subtitle: fmt.Sprintf("%d episodes, mean %.3f, std %.3f, goal rate %.2f",
				result.Stats.Count(), result.Stats.Mean(), result.Stats.StdDev(), result.Stats.GoalRate()),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "episode",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "return",
		}),
	)

	episodes := make([]string, 0, len(returns))
	for _, ep := range result.Episodes {
		episodes = append(episodes, fmt.Sprintf("%d", ep.Index))
	}

	line = line.SetXAxis(episodes)
	line.AddSeries("return", lineData(returns))
	line.AddSeries(fmt.Sprintf("mean of last %d", window), lineData(RunningMean(returns, window)))

	page := components.NewPage()
	page.AddCharts(
		line,
	)
	return page.Render(w)
}

// RunningMean averages each value with up to size-1 of its predecessors.
func RunningMean(vals []float64, size int) []float64 {
	means := make([]float64, len(vals))
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= size {
			sum -= vals[i-size]
		}
		n := i + 1
		if n > size {
			n = size
		}
		means[i] = sum / float64(n)
	}
	return means
}

func lineData(vals []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(vals))
	for _, v := range vals {
		items = append(items, opts.LineData{Value: v})
	}
	return items
}

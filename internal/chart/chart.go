// Package chart renders an alert's fare history as a PNG line chart for
// the /api/alerts/{id}/history/chart endpoint.
package chart

import (
	"bytes"
	"fmt"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"travelfolio/internal/database"
	"travelfolio/lib/helpers"
)

var (
	backgroundColor = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	textColor       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	fareColor       = drawing.Color{R: 0, G: 122, B: 255, A: 255}
	fareFillColor   = drawing.Color{R: 0, G: 122, B: 255, A: 25}
	targetColor     = drawing.Color{R: 255, G: 159, B: 10, A: 255}
)

// Options tunes the rendered image. Zero values pick the defaults.
type Options struct {
	Width  int
	Height int
	Font   *truetype.Font
}

// Render draws the observed fares of one route over time, with the alert's
// target price as a dashed reference line. At least two observations are
// required; a single point has no trend to draw.
func Render(route string, obs []database.Observation, target float64, opts Options) ([]byte, error) {
	if len(obs) < 2 {
		return nil, errors.Errorf("not enough history for %s: %d observations", route, len(obs))
	}
	if opts.Width <= 0 {
		opts.Width = 1200
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}
	font := opts.Font
	if font == nil {
		f, err := chart.GetDefaultFont()
		if err != nil {
			return nil, errors.Wrap(err, "could not load chart font")
		}
		font = f
	}

	times := make([]float64, len(obs))
	fares := make([]float64, len(obs))
	targets := make([]float64, len(obs))
	for i, o := range obs {
		times[i] = chart.TimeToFloat64(o.CheckedAt)
		fares[i] = o.Price
		targets[i] = target
	}

	minFare, maxFare := minMax(fares)
	if target > 0 && target < minFare {
		minFare = target
	}
	if target > maxFare {
		maxFare = target
	}
	padding := (maxFare - minFare) * 0.1
	if padding == 0 {
		padding = 1
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("%s fare history", route),
		TitleStyle: chart.Style{FontColor: textColor, FontSize: 14},
		Width:      opts.Width,
		Height:     opts.Height,
		Font:       font,
		Background: chart.Style{FillColor: backgroundColor},
		Canvas:     chart.Style{FillColor: backgroundColor},
		XAxis: chart.XAxis{
			Style:          chart.Style{FontColor: textColor, FontSize: 12},
			ValueFormatter: chart.TimeValueFormatterWithFormat("02-Jan"),
		},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: textColor, FontSize: 12},
			Range: &chart.ContinuousRange{Min: minFare - padding, Max: maxFare + padding},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return helpers.FormatFareRounded(f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name: "Fare",
				Style: chart.Style{
					StrokeColor: fareColor,
					StrokeWidth: 2,
					FillColor:   fareFillColor,
				},
				XValues: times,
				YValues: fares,
			},
			chart.ContinuousSeries{
				Name: "Target",
				Style: chart.Style{
					StrokeColor:     targetColor,
					StrokeWidth:     1,
					StrokeDashArray: []float64{5, 5},
				},
				XValues: times,
				YValues: targets,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "could not render chart")
	}
	return buf.Bytes(), nil
}

func minMax(values []float64) (min, max float64) {
	min, max = values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

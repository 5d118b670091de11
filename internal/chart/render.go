package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	chartlib "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	seriesColor = drawing.ColorFromHex("f59e0b")
	targetColor = drawing.ColorFromHex("10b981")
	panelColor  = drawing.ColorFromHex("151922")
)

// Render draws the plot as a PNG-backed image.
func Render(p Plot, width, height int) (image.Image, error) {
	series := []chartlib.Series{
		chartlib.ContinuousSeries{
			Name:    "target",
			XValues: []float64{0, p.XMax()},
			YValues: []float64{p.Target, p.Target},
			Style: chartlib.Style{
				StrokeColor:     targetColor,
				StrokeWidth:     1,
				StrokeDashArray: []float64{4, 4},
			},
		},
	}
	if len(p.Y) > 0 {
		series = append(series, chartlib.ContinuousSeries{
			Name:    "current_gv",
			XValues: p.X,
			YValues: p.Y,
			Style: chartlib.Style{
				StrokeColor: seriesColor,
				StrokeWidth: 2,
			},
		})
	}

	c := chartlib.Chart{
		Width:      width,
		Height:     height,
		Background: chartlib.Style{FillColor: panelColor, Padding: chartlib.Box{Top: 8, Left: 8, Right: 8, Bottom: 8}},
		Canvas:     chartlib.Style{FillColor: panelColor},
		XAxis:      chartlib.XAxis{Range: &chartlib.ContinuousRange{Min: 0, Max: p.XMax()}},
		YAxis:      chartlib.YAxis{Range: &chartlib.ContinuousRange{Min: p.YMin, Max: p.YMax}},
		Series:     series,
	}

	var buf bytes.Buffer
	if err := c.Render(chartlib.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	return img, nil
}

// Blank is the fallback shown when rendering fails.
func Blank(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = panelColor.R, panelColor.G, panelColor.B, 255
	}
	return img
}

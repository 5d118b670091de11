// Package chart derives the convergence plot from a calibration step log.
package chart

import (
	"aca-console/internal/models"

	"gonum.org/v1/gonum/floats"
)

const (
	targetMargin = 10.0
	floorGV      = 40.0
	ceilingGV    = 180.0
)

// Plot is the bounded series shown in the metrics card.
type Plot struct {
	X      []float64
	Y      []float64
	Target float64
	YMin   float64
	YMax   float64
}

// Point is a plot coordinate projected onto a width x height surface.
type Point struct {
	X float64
	Y float64
}

// Build maps step index to current_gv; the y range always brackets the target.
func Build(steps []models.CalibrationStep, target float64) Plot {
	p := Plot{
		X:      make([]float64, len(steps)),
		Y:      make([]float64, len(steps)),
		Target: target,
		YMin:   min(target-targetMargin, floorGV),
		YMax:   max(target+targetMargin, ceilingGV),
	}
	for i, s := range steps {
		p.X[i] = float64(i)
		p.Y[i] = s.CurrentGV
	}

	if len(p.Y) > 0 {
		p.YMin = min(p.YMin, floats.Min(p.Y))
		p.YMax = max(p.YMax, floats.Max(p.Y))
	}
	return p
}

// XMax is the right edge of the x axis; at least 1 so a single step still spans it.
func (p Plot) XMax() float64 {
	return max(1, float64(len(p.X)-1))
}

// Project places the series on a surface with y growing downwards.
func (p Plot) Project(width, height float64) []Point {
	points := make([]Point, len(p.Y))
	for i, v := range p.Y {
		points[i] = Point{
			X: p.X[i] / p.XMax() * width,
			Y: p.projectY(v, height),
		}
	}
	return points
}

// TargetY is the surface y of the reference line.
func (p Plot) TargetY(height float64) float64 {
	return p.projectY(p.Target, height)
}

func (p Plot) projectY(v, height float64) float64 {
	return height - (v-p.YMin)/(p.YMax-p.YMin)*height
}

// Progress reports the latest step number against the iteration budget, capped at 1.
func Progress(steps []models.CalibrationStep, maxIterations int) (int, float64) {
	latest := 0
	if len(steps) > 0 {
		latest = steps[len(steps)-1].Step
	}
	if maxIterations <= 0 {
		return latest, 0
	}
	return latest, min(1, float64(latest)/float64(maxIterations))
}

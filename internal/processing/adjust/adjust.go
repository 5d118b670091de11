// Package adjust applies the operator's gain and black-level preview to raw frames.
package adjust

import (
	"math"

	"aca-console/internal/models"
)

const gainSpan = 24.0

// Params are trusted as given: gain in [0,24], black level in [0,255].
type Params struct {
	Gain       float64
	BlackLevel float64
}

// Channel maps one 8-bit channel value through the gain/black transform.
func Channel(v byte, p Params) byte {
	out := clamp(float64(v)*(1+p.Gain/gainSpan)) + p.BlackLevel
	return byte(math.RoundToEven(clamp(out)))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// Apply returns a new frame; raw is never written to. Alpha passes through.
func Apply(raw *models.Frame, p Params) *models.Frame {
	var lut [256]byte
	for i := range lut {
		lut[i] = Channel(byte(i), p)
	}

	pix := make([]byte, len(raw.Pix))
	for i := 0; i+3 < len(raw.Pix); i += 4 {
		pix[i] = lut[raw.Pix[i]]
		pix[i+1] = lut[raw.Pix[i+1]]
		pix[i+2] = lut[raw.Pix[i+2]]
		pix[i+3] = raw.Pix[i+3]
	}

	return &models.Frame{Width: raw.Width, Height: raw.Height, Pix: pix}
}

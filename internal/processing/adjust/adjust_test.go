package adjust

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"aca-console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reference(v byte, gain, black float64) float64 {
	inner := math.Min(255, math.Max(0, float64(v)*(1+gain/24)))
	return math.Min(255, math.Max(0, inner+black))
}

func TestChannelMatchesFormula(t *testing.T) {
	for _, gain := range []float64{0, 0.1, 6, 8, 12.5, 24} {
		for _, black := range []float64{0, 1, 10, 128, 255} {
			for v := 0; v <= 255; v++ {
				got := Channel(byte(v), Params{Gain: gain, BlackLevel: black})
				want := reference(byte(v), gain, black)
				assert.InDelta(t, want, float64(got), 0.5, "v=%d gain=%v black=%v", v, gain, black)
			}
		}
	}
}

func TestChannelKnownValues(t *testing.T) {
	assert.Equal(t, byte(100), Channel(100, Params{}))
	assert.Equal(t, byte(200), Channel(100, Params{Gain: 24}))
	assert.Equal(t, byte(255), Channel(200, Params{Gain: 24}))
	assert.Equal(t, byte(255), Channel(250, Params{BlackLevel: 10}))
	assert.Equal(t, byte(10), Channel(0, Params{Gain: 24, BlackLevel: 10}))
}

func randomFrame(rng *rand.Rand, w, h int) *models.Frame {
	pix := make([]byte, w*h*4)
	rng.Read(pix)
	return &models.Frame{Width: w, Height: h, Pix: pix}
}

func TestApplyLeavesSourceUntouchedAndKeepsAlpha(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	raw := randomFrame(rng, 17, 9)
	pristine := append([]byte(nil), raw.Pix...)

	out := Apply(raw, Params{Gain: 12, BlackLevel: 30})

	require.Equal(t, raw.Width, out.Width)
	require.Equal(t, raw.Height, out.Height)
	require.Len(t, out.Pix, len(raw.Pix))
	assert.Equal(t, pristine, raw.Pix)
	assert.NotSame(t, &raw.Pix[0], &out.Pix[0])

	for i := 0; i < len(out.Pix); i += 4 {
		assert.Equal(t, raw.Pix[i+3], out.Pix[i+3])
		assert.Equal(t, Channel(raw.Pix[i], Params{Gain: 12, BlackLevel: 30}), out.Pix[i])
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	raw := randomFrame(rng, 32, 32)
	p := Params{Gain: 7.3, BlackLevel: 42}

	first := Apply(raw, p)
	second := Apply(raw, p)
	assert.True(t, bytes.Equal(first.Pix, second.Pix))
}

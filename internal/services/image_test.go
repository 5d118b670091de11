package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"aca-console/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	img.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeFrameKeepsRGBOrder(t *testing.T) {
	frame, err := DecodeFrame(encodePNG(t))
	require.NoError(t, err)

	assert.Equal(t, 3, frame.Width)
	assert.Equal(t, 2, frame.Height)
	assert.Equal(t, []byte{200, 100, 50, 255}, frame.Pix[0:4])
	off := frame.Offset(2, 1)
	assert.Equal(t, []byte{10, 20, 30, 255}, frame.Pix[off:off+4])
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := DecodeFrame([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeFrame(nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestLoadFetchesAndDecodes(t *testing.T) {
	payload := encodePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/a.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	fs := NewFrameService(srv.Client(), logger.Nop{})

	frame, err := fs.Load(context.Background(), srv.URL+"/images/a.png?t=1")
	require.NoError(t, err)
	assert.Equal(t, 3, frame.Width)

	_, err = fs.Load(context.Background(), srv.URL+"/images/missing.png")
	assert.Error(t, err)
}

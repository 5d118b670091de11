package models

import (
	"errors"
	"image"
	"image/draw"
)

// Frame is an immutable interleaved RGBA pixel buffer.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

var ErrFrameSize = errors.New("pixel buffer does not match frame dimensions")

// NewFrame wraps pix, which must hold exactly width*height*4 bytes.
func NewFrame(width, height int, pix []byte) (*Frame, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return nil, ErrFrameSize
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// FrameFromImage copies any image into a fresh RGBA frame.
func FrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return &Frame{Width: bounds.Dx(), Height: bounds.Dy(), Pix: rgba.Pix}
}

// Offset returns the index of the red byte at (x, y).
func (f *Frame) Offset(x, y int) int {
	return (y*f.Width + x) * 4
}

func (f *Frame) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// Image views the buffer as an *image.RGBA without copying.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

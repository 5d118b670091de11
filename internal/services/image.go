package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"aca-console/internal/logger"
	"aca-console/internal/models"

	"gocv.io/x/gocv"
)

var ErrDecode = errors.New("image decode failed")

const (
	maxImageBytes = 64 << 20
	maxDimension  = 32768
)

// FrameService fetches rig images over HTTP and decodes them into RGBA frames
type FrameService struct {
	client *http.Client
	logger logger.Logger
}

// NewFrameService creates a new frame service
func NewFrameService(client *http.Client, log logger.Logger) *FrameService {
	if client == nil {
		client = http.DefaultClient
	}
	return &FrameService{client: client, logger: log}
}

// Load fetches url and decodes it; satisfies viewport.Loader
func (fs *FrameService) Load(ctx context.Context, url string) (*models.Frame, error) {
	startTime := time.Now()

	data, err := fs.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		return nil, err
	}

	fs.logger.Debug("FrameService", "frame decoded", map[string]interface{}{
		"url":         url,
		"width":       frame.Width,
		"height":      frame.Height,
		"bytes":       len(data),
		"duration_ms": time.Since(startTime).Milliseconds(),
	})

	return frame, nil
}

func (fs *FrameService) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := fs.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// DecodeFrame decodes encoded image bytes (PNG, JPEG, BMP, TIFF) into opaque RGBA
func DecodeFrame(data []byte) (*models.Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	// IMReadColor normalises grayscale and 16-bit inputs to 8-bit BGR
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("%w: unrecognised format", ErrDecode)
	}
	if mat.Cols() > maxDimension || mat.Rows() > maxDimension {
		return nil, fmt.Errorf("%w: dimensions %dx%d exceed maximum", ErrDecode, mat.Cols(), mat.Rows())
	}
	if mat.Channels() != 3 {
		return nil, fmt.Errorf("%w: unsupported channel count %d", ErrDecode, mat.Channels())
	}

	rgba := gocv.NewMat()
	defer rgba.Close()
	gocv.CvtColor(mat, &rgba, gocv.ColorBGRToRGBA)

	return models.NewFrame(rgba.Cols(), rgba.Rows(), rgba.ToBytes())
}

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aca-console/internal/calibration"
	"aca-console/internal/chart"
	"aca-console/internal/config"
	"aca-console/internal/events"
	"aca-console/internal/logger"
	"aca-console/internal/models"
	"aca-console/internal/processing/adjust"
	"aca-console/internal/rig"
)

const (
	BannerHealth  = "Health check failed. Backend or DB is not ready."
	BannerParams  = "Failed to set camera parameters."
	BannerCapture = "Failed to capture image."
	BannerSave    = "Failed to save adjusted image."
	BannerSelect  = "Select a dataset image first."
	BannerSession = "Calibration stream ended without a result."
)

type Rig interface {
	SetParameters(ctx context.Context, p models.CameraParams) error
	Capture(ctx context.Context) (models.CaptureResponse, error)
	DatasetImages(ctx context.Context, q models.DatasetQuery) ([]models.DatasetImage, error)
	DatasetFilters(ctx context.Context) (models.DatasetFilters, error)
	SaveDataset(ctx context.Context, req models.SaveDatasetRequest) (models.SaveDatasetResponse, error)
	ResolveURL(ref string) string
}

type Session interface {
	Start(ctx context.Context, params models.CalibrationParams) error
	Snapshot() calibration.Snapshot
	Running() bool
}

type Viewer interface {
	LoadImage(url string) <-chan struct{}
	Clear()
	SetAdjustment(enabled bool, p adjust.Params)
}

type ManualLoop interface {
	Submit(p models.CameraParams)
	Cancel()
}

type Publisher interface {
	Publish(topic events.Topic, data map[string]interface{})
}

// DatasetState is the browser pane: query, results and load status.
type DatasetState struct {
	Query   models.DatasetQuery
	Images  []models.DatasetImage
	Filters models.DatasetFilters
	Loading bool
	Err     error
}

// View is what the window renders besides the viewport itself.
type View struct {
	Knobs          config.Knobs
	Banner         string
	PreviewActive  bool
	SelectedID     int
	HasSelection   bool
	AutoResult     bool
	Note           string
	DisplayedURL   string
	Session        calibration.Snapshot
	Iteration      int
	Progress       float64
	LogLines       []string
	Dataset        DatasetState
	ManualDisabled bool
}

// Console owns operator state and decides what the viewer shows.
// Image precedence is dataset preview, then manual capture, then the latest live step.
type Console struct {
	rig     Rig
	session Session
	viewer  Viewer
	manual  ManualLoop
	bus     Publisher
	logger  logger.Logger
	now     func() time.Time

	// refreshMu orders viewer updates; taken before mu, never while holding it.
	refreshMu sync.Mutex

	mu         sync.Mutex
	knobs      config.Knobs
	banner     string
	previewURL string
	manualURL  string
	selectedID int
	selected   bool
	autoResult bool
	note       string
	displayed  string
	dataset    DatasetState
}

func NewConsole(r Rig, session Session, viewer Viewer, bus Publisher, knobs config.Knobs, datasetLimit int, log logger.Logger) *Console {
	return &Console{
		rig:     r,
		session: session,
		viewer:  viewer,
		bus:     bus,
		logger:  log,
		now:     time.Now,
		knobs:   knobs,
		dataset: DatasetState{Query: models.DatasetQuery{Limit: datasetLimit}},
	}
}

func (c *Console) SetManualLoop(l ManualLoop) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manual = l
}

// StartCalibration clears the banner, drops any pending manual push and opens a session.
func (c *Console) StartCalibration(ctx context.Context) error {
	c.mu.Lock()
	c.banner = ""
	params := models.CalibrationParams{
		TargetGV:      c.knobs.TargetGV,
		Tolerance:     c.knobs.Tolerance,
		MaxIterations: c.knobs.MaxIterations,
	}
	manual := c.manual
	c.mu.Unlock()
	c.bus.Publish(events.BannerChanged, nil)

	if manual != nil {
		manual.Cancel()
	}
	err := c.session.Start(ctx, params)
	switch {
	case errors.Is(err, calibration.ErrHealthCheck):
		c.setBanner(BannerHealth)
		return err
	case err != nil:
		c.logger.Error("Console", err, map[string]interface{}{"operation": "start_calibration"})
	}

	// Drops pushes scheduled by knob changes made during the health check.
	if manual != nil {
		manual.Cancel()
	}
	return err
}

// SessionChanged is the session's change callback.
func (c *Console) SessionChanged(snap calibration.Snapshot) {
	if snap.Abnormal() {
		c.logger.Warning("Console", "calibration ended abnormally", map[string]interface{}{
			"session_id": snap.ID,
			"error":      snap.LastError.Error(),
		})
		c.setBanner(BannerSession)
	}
	c.refreshDisplay()
	c.bus.Publish(events.SessionChanged, map[string]interface{}{
		"state": string(snap.State),
		"steps": len(snap.Steps),
	})
}

func (c *Console) SetGain(v float64) {
	c.setKnob(func(k *config.Knobs) { k.Gain = v })
}

func (c *Console) SetBlackLevel(v float64) {
	c.setKnob(func(k *config.Knobs) { k.BlackLevel = v })
}

func (c *Console) setKnob(update func(*config.Knobs)) {
	c.mu.Lock()
	before := c.knobs
	update(&c.knobs)
	after := c.knobs
	manual := c.manual
	c.mu.Unlock()

	if before == after {
		return
	}

	c.refreshDisplay()
	c.bus.Publish(events.KnobsChanged, nil)
	if manual != nil {
		manual.Submit(models.CameraParams{Gain: after.Gain, BlackLevel: after.BlackLevel})
	}
}

// SetTarget updates the parameters of the next session.
func (c *Console) SetTarget(targetGV, tolerance float64, maxIterations int) {
	c.mu.Lock()
	c.knobs.TargetGV = targetGV
	c.knobs.Tolerance = tolerance
	c.knobs.MaxIterations = maxIterations
	c.mu.Unlock()
	c.bus.Publish(events.KnobsChanged, nil)
}

func (c *Console) ApplyParams(ctx context.Context) error {
	p := c.cameraParams()
	if err := c.rig.SetParameters(ctx, p); err != nil {
		c.logger.Error("Console", err, map[string]interface{}{"operation": "apply_params"})
		c.setBanner(BannerParams)
		return err
	}
	return nil
}

func (c *Console) Capture(ctx context.Context) error {
	c.setBanner("")

	res, err := c.rig.Capture(ctx)
	if err != nil {
		c.logger.Error("Console", err, map[string]interface{}{"operation": "capture"})
		c.setBanner(BannerCapture)
		return err
	}
	if res.ImageURL != "" {
		c.ShowManual(rig.CacheBust(c.rig.ResolveURL(res.ImageURL), c.now()))
	}
	return nil
}

// ShowManual replaces the manual frame.
func (c *Console) ShowManual(url string) {
	c.mu.Lock()
	c.manualURL = url
	c.mu.Unlock()
	c.refreshDisplay()
}

// ClearPreview drops the dataset preview but keeps the selection for saving.
func (c *Console) ClearPreview() {
	c.mu.Lock()
	had := c.previewURL != ""
	c.previewURL = ""
	c.mu.Unlock()
	if had {
		c.refreshDisplay()
	}
}

// PickDataset previews a stored image with the adjustment applied.
func (c *Console) PickDataset(img models.DatasetImage) {
	c.mu.Lock()
	c.selectedID = img.ID
	c.selected = true
	c.previewURL = rig.CacheBust(c.rig.ResolveURL(img.FileURL), c.now())
	c.mu.Unlock()

	c.logger.Debug("Console", "dataset preview selected", map[string]interface{}{
		"dataset_image_id": img.ID,
	})
	c.refreshDisplay()
	c.bus.Publish(events.DatasetChanged, nil)
}

func (c *Console) SetDatasetQuery(q models.DatasetQuery) {
	c.mu.Lock()
	c.dataset.Query = q
	c.mu.Unlock()
}

// LoadDataset refreshes both the listing and the filter options.
func (c *Console) LoadDataset(ctx context.Context) error {
	c.mu.Lock()
	q := c.dataset.Query
	c.dataset.Loading = true
	c.dataset.Err = nil
	c.mu.Unlock()
	c.bus.Publish(events.DatasetChanged, nil)

	images, err := c.rig.DatasetImages(ctx, q)
	var filters models.DatasetFilters
	if err == nil {
		filters, err = c.rig.DatasetFilters(ctx)
	}

	c.mu.Lock()
	c.dataset.Loading = false
	if err != nil {
		c.dataset.Err = err
	} else {
		c.dataset.Images = images
		c.dataset.Filters = filters
	}
	c.mu.Unlock()
	c.bus.Publish(events.DatasetChanged, nil)

	if err != nil {
		c.logger.Error("Console", err, map[string]interface{}{"operation": "load_dataset"})
	}
	return err
}

func (c *Console) SetSaveOptions(autoResult bool, note string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoResult = autoResult
	c.note = note
}

// SaveDataset stores the selected image with the current knobs applied.
func (c *Console) SaveDataset(ctx context.Context) error {
	c.mu.Lock()
	if !c.selected {
		c.mu.Unlock()
		c.setBanner(BannerSelect)
		return errors.New("no dataset image selected")
	}
	req := models.SaveDatasetRequest{
		DatasetImageID:    c.selectedID,
		Gain:              c.knobs.Gain,
		BlackLevel:        c.knobs.BlackLevel,
		IsAutoCalibration: c.autoResult,
		Note:              c.note,
	}
	c.mu.Unlock()

	res, err := c.rig.SaveDataset(ctx, req)
	if err != nil {
		c.logger.Error("Console", err, map[string]interface{}{
			"operation":        "save_dataset",
			"dataset_image_id": req.DatasetImageID,
		})
		c.setBanner(BannerSave)
		return err
	}

	c.logger.Info("Console", "adjusted image saved", map[string]interface{}{
		"dataset_image_id": req.DatasetImageID,
		"saved_image_id":   res.SavedImageID,
	})
	if res.ImageURL != "" {
		c.ShowManual(rig.CacheBust(c.rig.ResolveURL(res.ImageURL), c.now()))
	}
	return nil
}

func (c *Console) DismissBanner() {
	c.setBanner("")
}

func (c *Console) setBanner(text string) {
	c.mu.Lock()
	changed := c.banner != text
	c.banner = text
	c.mu.Unlock()
	if changed {
		c.bus.Publish(events.BannerChanged, map[string]interface{}{"banner": text})
	}
}

func (c *Console) cameraParams() models.CameraParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CameraParams{Gain: c.knobs.Gain, BlackLevel: c.knobs.BlackLevel}
}

func (c *Console) liveURL(snap calibration.Snapshot) string {
	if len(snap.Steps) == 0 {
		return ""
	}
	return c.rig.ResolveURL(snap.Steps[len(snap.Steps)-1].ImageURL)
}

// refreshDisplay pushes the winning URL and the adjustment flag to the viewer.
// Concurrent refreshes reach the viewer one at a time, each from fresh state.
func (c *Console) refreshDisplay() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	live := c.liveURL(c.session.Snapshot())

	c.mu.Lock()
	url := c.previewURL
	if url == "" {
		url = c.manualURL
	}
	if url == "" {
		url = live
	}
	adjusting := c.previewURL != ""
	params := adjust.Params{Gain: c.knobs.Gain, BlackLevel: c.knobs.BlackLevel}
	changed := url != c.displayed
	c.displayed = url
	c.mu.Unlock()

	c.viewer.SetAdjustment(adjusting, params)
	if changed {
		if url == "" {
			c.viewer.Clear()
		} else {
			c.viewer.LoadImage(url)
		}
	}
	c.bus.Publish(events.DisplayChanged, map[string]interface{}{"url": url})
}

// View snapshots everything the window renders.
func (c *Console) View() View {
	snap := c.session.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()

	iteration, progress := chart.Progress(snap.Steps, c.knobs.MaxIterations)
	lines := make([]string, len(snap.Steps))
	for i, s := range snap.Steps {
		lines[i] = s.LogLine()
	}

	dataset := c.dataset
	dataset.Images = append([]models.DatasetImage(nil), c.dataset.Images...)

	return View{
		Knobs:          c.knobs,
		Banner:         c.banner,
		PreviewActive:  c.previewURL != "",
		SelectedID:     c.selectedID,
		HasSelection:   c.selected,
		AutoResult:     c.autoResult,
		Note:           c.note,
		DisplayedURL:   c.displayed,
		Session:        snap,
		Iteration:      iteration,
		Progress:       progress,
		LogLines:       lines,
		Dataset:        dataset,
		ManualDisabled: snap.State == calibration.StateRunning,
	}
}

// ProgressLabel renders "Iteration: n / max".
func (v View) ProgressLabel() string {
	return fmt.Sprintf("Iteration: %d / %d", v.Iteration, v.Knobs.MaxIterations)
}

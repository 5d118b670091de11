// Package rigtest runs an in-process fake of the vision service for tests.
package rigtest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"aca-console/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Script produces the steps streamed back for a calibration request.
type Script func(params models.CalibrationParams) []models.CalibrationStep

type Server struct {
	*httptest.Server

	mu             sync.Mutex
	systemDown     bool
	cameraDown     bool
	failParams     bool
	failCapture    bool
	failSave       bool
	params         []models.CameraParams
	captures       int
	saves          []models.SaveDatasetRequest
	streamRequests []models.CalibrationParams
	datasetQueries []map[string]string
	images         []models.DatasetImage
	script         Script
	stepDelay      time.Duration
	holdOpen       bool
	frame          []byte

	upgrader websocket.Upgrader
}

func New() *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		script: Converging,
		frame:  SolidPNG(4, 4, color.RGBA{R: 120, G: 130, B: 140, A: 255}),
		images: []models.DatasetImage{
			{ID: 1, Item: "bottle", Split: "test", DefectType: "good", FileURL: "/dataset/image/1"},
			{ID: 2, Item: "bottle", Split: "test", DefectType: "crack", FileURL: "/dataset/image/2"},
			{ID: 3, Item: "screw", Split: "train", DefectType: "good", FileURL: "/dataset/image/3", IsMask: true},
		},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health/system", s.health(func() bool { return s.systemDown }, gin.H{"status": "ok", "db": "ok"}))
	router.GET("/health/camera", s.health(func() bool { return s.cameraDown }, gin.H{"status": "ok", "camera": gin.H{"connected": true}}))
	router.POST("/camera/parameters", s.setParameters)
	router.GET("/camera/capture", s.capture)
	router.GET("/dataset/images", s.datasetImages)
	router.GET("/dataset/filters", s.datasetFilters)
	router.POST("/dataset/save", s.save)
	router.GET("/dataset/image/:id", s.serveFrame)
	router.GET("/captures/:name", s.serveFrame)
	router.GET("/ws/calibration", s.stream)

	return router
}

func (s *Server) health(down func() bool, body gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		failing := down()
		s.mu.Unlock()

		if failing {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "not ready"})
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

func (s *Server) setParameters(c *gin.Context) {
	var p models.CameraParams
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failParams {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "camera offline"})
		return
	}
	s.params = append(s.params, p)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "gain": p.Gain, "black_level": p.BlackLevel})
}

func (s *Server) capture(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCapture {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "capture failed"})
		return
	}

	s.captures++
	var last models.CameraParams
	if len(s.params) > 0 {
		last = s.params[len(s.params)-1]
	}
	c.JSON(http.StatusOK, models.CaptureResponse{
		ImageURL: "/captures/latest.png",
		Metadata: models.CaptureMetadata{
			Gain:       last.Gain,
			BlackLevel: last.BlackLevel,
			GVMean:     130,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			RawImageID: s.captures,
		},
	})
}

func (s *Server) datasetImages(c *gin.Context) {
	query := map[string]string{}
	for _, key := range []string{"item", "split", "defect_type", "limit", "offset"} {
		if v, ok := c.GetQuery(key); ok {
			query[key] = v
		}
	}

	s.mu.Lock()
	s.datasetQueries = append(s.datasetQueries, query)
	images := append([]models.DatasetImage(nil), s.images...)
	s.mu.Unlock()

	out := make([]models.DatasetImage, 0, len(images))
	for _, img := range images {
		if (query["item"] == "" || query["item"] == img.Item) &&
			(query["split"] == "" || query["split"] == img.Split) &&
			(query["defect_type"] == "" || query["defect_type"] == img.DefectType) {
			out = append(out, img)
		}
	}

	offset, _ := strconv.Atoi(query["offset"])
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit, err := strconv.Atoi(query["limit"]); err == nil && limit < len(out) {
		out = out[:limit]
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) datasetFilters(c *gin.Context) {
	c.JSON(http.StatusOK, models.DatasetFilters{
		Items:       []string{"bottle", "screw"},
		Splits:      []string{"test", "train"},
		DefectTypes: []string{"crack", "good"},
	})
}

func (s *Server) save(c *gin.Context) {
	var req models.SaveDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}
	s.saves = append(s.saves, req)
	c.JSON(http.StatusOK, models.SaveDatasetResponse{
		SavedImageID: len(s.saves),
		ImageURL:     "/captures/saved-" + strconv.Itoa(len(s.saves)) + ".png",
		GVMean:       128,
	})
}

func (s *Server) serveFrame(c *gin.Context) {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()
	c.Data(http.StatusOK, "image/png", frame)
}

func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var params models.CalibrationParams
	if err := conn.ReadJSON(&params); err != nil {
		return
	}

	s.mu.Lock()
	s.streamRequests = append(s.streamRequests, params)
	steps := s.script(params)
	delay := s.stepDelay
	hold := s.holdOpen
	s.mu.Unlock()

	for _, step := range steps {
		if delay > 0 {
			time.Sleep(delay)
		}
		if err := conn.WriteJSON(step); err != nil {
			return
		}
	}

	if hold {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// StreamURL is the websocket endpoint of the fake.
func (s *Server) StreamURL() string {
	return "ws" + s.URL[len("http"):] + "/ws/calibration"
}

func (s *Server) SetHealth(systemUp, cameraUp bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemDown = !systemUp
	s.cameraDown = !cameraUp
}

func (s *Server) FailParameters(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failParams = fail
}

func (s *Server) FailCapture(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCapture = fail
}

func (s *Server) FailSave(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = fail
}

// SetScript replaces the calibration stream; holdOpen keeps the socket open after the last step.
func (s *Server) SetScript(script Script, stepDelay time.Duration, holdOpen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
	s.stepDelay = stepDelay
	s.holdOpen = holdOpen
}

func (s *Server) SetFrame(png []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = png
}

func (s *Server) Parameters() []models.CameraParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CameraParams(nil), s.params...)
}

func (s *Server) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

func (s *Server) Saves() []models.SaveDatasetRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SaveDatasetRequest(nil), s.saves...)
}

func (s *Server) StreamRequests() []models.CalibrationParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CalibrationParams(nil), s.streamRequests...)
}

func (s *Server) DatasetQueries() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.datasetQueries...)
}

// Converging adjusts once and then converges on the requested target.
func Converging(p models.CalibrationParams) []models.CalibrationStep {
	return []models.CalibrationStep{
		{Step: 0, CurrentGV: 100, TargetGV: p.TargetGV, AppliedGain: 8, AppliedBlackLevel: 10, Status: models.StatusAdjusting, ImageURL: "/captures/step-0.png"},
		{Step: 1, CurrentGV: p.TargetGV - 1, TargetGV: p.TargetGV, AppliedGain: 9.5, AppliedBlackLevel: 10, Status: models.StatusConverged, ImageURL: "/captures/step-1.png"},
	}
}

// SolidPNG encodes a single-colour image.
func SolidPNG(width, height int, c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

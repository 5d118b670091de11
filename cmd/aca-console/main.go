package main

import (
	"context"
	"log"
	"net/http"
	"runtime"

	"aca-console/internal/app"
	"aca-console/internal/calibration"
	"aca-console/internal/config"
	"aca-console/internal/events"
	"aca-console/internal/gui"
	"aca-console/internal/layout"
	"aca-console/internal/logger"
	"aca-console/internal/manual"
	"aca-console/internal/rig"
	"aca-console/internal/services"
	"aca-console/internal/shutdown"
	"aca-console/internal/viewport"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
)

const (
	AppName    = "ACA Console"
	AppID      = "com.aca.console"
	AppVersion = "1.0.0"

	windowPadding = 24
)

// Application wires the rig client, the session, the viewer and the window together.
type Application struct {
	fyneApp fyne.App
	window  fyne.Window
	logger  logger.Logger
	config  config.Config

	shutdown   *shutdown.Manager
	console    *app.Console
	guiManager *gui.Manager
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Configuration invalid: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Configuration invalid: %v", err)
	}
	appLogger := logger.New(level, cfg.JSONLogs)

	application, err := NewApplication(cfg, appLogger)
	if err != nil {
		log.Fatalf("Application initialization failed: %v", err)
	}

	application.Run()
}

func NewApplication(cfg config.Config, appLogger logger.Logger) (*Application, error) {
	fyneApp := fyneapp.NewWithID(AppID)
	window := fyneApp.NewWindow(AppName)

	appLogger.Info("Application", "starting application", map[string]interface{}{
		"version":        AppVersion,
		"backend_origin": cfg.BackendOrigin,
		"stream_url":     cfg.StreamURL(),
		"go_version":     runtime.Version(),
	})

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	rigClient, err := rig.NewClient(cfg.BackendOrigin, httpClient, appLogger)
	if err != nil {
		return nil, err
	}

	frames := services.NewFrameService(httpClient, appLogger)
	vp := viewport.New(frames, appLogger)
	bus := events.NewBus(appLogger)

	session := calibration.NewSession(calibration.WebSocketDialer{URL: cfg.StreamURL()}, rigClient, appLogger)
	console := app.NewConsole(rigClient, session, vp, bus, cfg.Knobs, cfg.DatasetLimit, appLogger)
	session.SetOnChange(console.SessionChanged)

	loop := manual.New(rigClient, console, session, cfg.Debounce, appLogger)
	console.SetManualLoop(loop)

	layouts := layout.NewStore(fyneApp.Preferences(), config.LayoutKey)
	guiManager := gui.NewManager(window, console, vp, bus, layouts, cfg.DatasetLimit, appLogger)

	sm := shutdown.NewManager(appLogger, shutdown.DefaultTimeout)
	sm.Register("event bus", bus)
	sm.Register("viewport", vp)
	sm.Register("calibration session", session)
	sm.Register("manual adjust", loop)
	sm.Register("gui", guiManager)

	window.SetContent(guiManager.GetMainContainer())
	window.Resize(initialWindowSize(layouts))
	window.CenterOnScreen()
	window.SetMaster()

	application := &Application{
		fyneApp:    fyneApp,
		window:     window,
		logger:     appLogger,
		config:     cfg,
		shutdown:   sm,
		console:    console,
		guiManager: guiManager,
	}
	application.setupWindowEvents()

	return application, nil
}

// Run blocks until the window closes.
func (a *Application) Run() {
	a.shutdown.Listen(func() {
		fyne.Do(a.fyneApp.Quit)
	})

	go func() {
		ctx, cancel := context.WithTimeout(a.shutdown.Context(), a.config.RequestTimeout)
		defer cancel()
		a.console.LoadDataset(ctx)
	}()

	a.window.ShowAndRun()
	a.shutdown.Shutdown()
	a.logger.Info("Application", "terminated", nil)
}

func (a *Application) setupWindowEvents() {
	a.window.SetCloseIntercept(func() {
		a.logger.Info("Application", "window close requested", nil)
		go func() {
			a.shutdown.Shutdown()
			fyne.Do(a.window.Close)
		}()
	})
}

// initialWindowSize fits the stored or default panel layout.
func initialWindowSize(layouts *layout.Store) fyne.Size {
	l := layout.Default()
	if stored := layouts.Load(); stored != nil {
		l = *stored
	}

	width, height := 0.0, 0.0
	for _, r := range []layout.Rect{l.Controls, l.Viewer, l.Right} {
		width = max(width, r.X+r.W)
		height = max(height, r.Y+r.H)
	}
	return fyne.NewSize(float32(width+windowPadding), float32(height+4*windowPadding))
}

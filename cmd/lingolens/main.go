package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/lingolens/internal/app"
	"github.com/ayusman/lingolens/internal/capture"
	"github.com/ayusman/lingolens/internal/config"
	"github.com/ayusman/lingolens/internal/detector"
	"github.com/ayusman/lingolens/internal/mode"
	"github.com/ayusman/lingolens/internal/server"
	"github.com/ayusman/lingolens/internal/store"
	"github.com/ayusman/lingolens/internal/translate"
	"github.com/ayusman/lingolens/internal/translate/gemini"
	"github.com/ayusman/lingolens/internal/tray"
)

func main() {
	configPath := flag.String("config", filepath.Join(config.DefaultDataDir(), "config.yaml"), "Path to configuration file")
	flag.Parse()

	fmt.Println("LingoLens - Live Camera Translation")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Translation backend
	var (
		identifier translate.Identifier
		backend    translate.Backend = translate.Unavailable{}
	)
	if cfg.Gemini.APIKey != "" {
		engine, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Fatalf("Failed to create translator: %v", err)
		}
		defer engine.Close()
		identifier, backend = engine, engine
		fmt.Printf("Translating with %s\n", engine.Model())
	} else {
		log.Printf("No %s set, labels will show the original text", config.APIKeyEnv)
	}

	initial, _ := mode.Parse(cfg.Mode)

	camera := capture.NewCamera(cfg.Camera.Device, cfg.Camera.Rotation)
	camera.SetFPS(cfg.Camera.FPS)

	application, err := app.New(app.Config{
		Store:          st,
		Camera:         camera,
		Detectors:      newDetectors(cfg.Detection),
		Identifier:     identifier,
		Backend:        backend,
		Mode:           initial,
		TargetLanguage: cfg.TargetLanguage,
		SourceLanguage: cfg.SourceLanguage,
		MinInterval:    cfg.Pipeline.MinInterval,
		ShakeThreshold: cfg.Pipeline.ShakeThreshold,
		CycleTimeout:   cfg.Pipeline.CycleTimeout,
		MinConfidence:  cfg.Detection.MinConfidence,
		View:           cfg.Screen.View,
		Guide:          cfg.Screen.Guide,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	defer application.Close()

	if err := application.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Pipeline:  application,
	})
	defer srv.Close()

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv}
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server failed: %v", err)
		}
	}()
	defer httpServer.Shutdown(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if !cfg.Tray {
		sig := <-sigChan
		log.Printf("Received %s, shutting down", sig)
		return
	}

	// The tray owns the main thread until Quit.
	t := tray.New(application.Mode().String())
	t.OnToggle(application.SetEnabled)
	t.OnToggleMode(func() string {
		return application.ToggleMode().To.String()
	})
	t.OnPreview(func() {
		openBrowser("http://localhost" + cfg.Server.Addr)
	})
	application.OnResult(func(r app.Result) {
		t.SetLastTranslation(r.SourceText, r.TranslatedText)
	})
	go func() {
		<-sigChan
		t.Quit()
	}()
	t.Run()
}

// newDetectors starts a detector service per mode, falling back to the mock
// detector when the service scripts are not installed.
func newDetectors(dc config.DetectionConfig) map[mode.Mode]detector.Detector {
	dcfg := detector.Config{
		MinConfidence: dc.MinConfidence,
		MaxResults:    dc.MaxResults,
		IdleTimeout:   dc.IdleTimeout,
	}

	kinds := map[mode.Mode]detector.Kind{
		mode.Object: detector.Object,
		mode.Text:   detector.TextBlock,
	}

	dets := make(map[mode.Mode]detector.Detector, len(kinds))
	for m, kind := range kinds {
		if dc.UseMock {
			dets[m] = detector.NewMockDetector()
			continue
		}
		d, err := detector.NewServiceDetector(kind, dcfg)
		if err != nil {
			log.Printf("Warning: %s detector unavailable, using mock: %v", m, err)
			dets[m] = detector.NewMockDetector()
			continue
		}
		dets[m] = d
	}
	return dets
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.lingolens/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DefaultDataDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

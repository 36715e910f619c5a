package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kestrel-optics/exposure.report/db"
	"github.com/kestrel-optics/exposure.report/internal/config"
	"github.com/kestrel-optics/exposure.report/internal/monitoring"
	"github.com/kestrel-optics/exposure.report/internal/timeutil"
	"github.com/kestrel-optics/exposure.report/internal/version"
	"github.com/kestrel-optics/exposure.report/internal/vision/l1tensor"
	"github.com/kestrel-optics/exposure.report/internal/vision/l5meter"
	"github.com/kestrel-optics/exposure.report/internal/vision/monitor"
	"github.com/kestrel-optics/exposure.report/internal/vision/pipeline"
)

var (
	configPath = flag.String("config", "", "Path to tuning config JSON (defaults apply when empty)")
	listen     = flag.String("listen", "", "Monitor HTTP listen address (overrides config)")
	dbPath     = flag.String("db", "", "Path to sqlite database (overrides config)")
	labelsPath = flag.String("labels", "", "Path to class label file, one name per line")
	notes      = flag.String("notes", "", "Free-form note stored with the analysis session")
	width      = flag.Int("width", 320, "Synthetic source frame width")
	height     = flag.Int("height", 240, "Synthetic source frame height")
	fps        = flag.Float64("fps", 10, "Synthetic source frame rate")
	debugLog   = flag.Bool("debug", false, "Enable pipeline diagnostic logging")
)

// loadLabels reads one class name per line. Blank lines are skipped.
func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := l1tensor.CleanLabel(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names, scanner.Err()
}

func main() {
	flag.Parse()
	log.Printf("exposure %s", version.Banner())

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	addr := cfg.GetMonitorAddr()
	if *listen != "" {
		addr = *listen
	}
	databasePath := cfg.GetDBPath()
	if *dbPath != "" {
		databasePath = *dbPath
	}

	if *debugLog {
		pipeline.SetLegacyLogger(os.Stderr)
		monitoring.SetFrameLogger(log.Printf)
	} else {
		pipeline.SetLogWriters(os.Stderr, nil, nil)
	}

	labelNames := SyntheticLabels()
	if *labelsPath != "" {
		var err error
		labelNames, err = loadLabels(*labelsPath)
		if err != nil {
			log.Fatalf("Failed to load labels: %v", err)
		}
	}

	store, err := db.NewDB(databasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	params := cfg.MeterParams()
	sessionID, err := store.StartSession(params.TargetISO, params.ZoneRows, params.ZoneCols, *notes)
	if err != nil {
		log.Fatalf("Failed to start analysis session: %v", err)
	}
	monitoring.Logf("[Main] Analysis session %s started (db=%s)", sessionID, databasePath)

	plotter := monitor.NewMeterPlotter(0)
	analyzer, err := pipeline.NewAnalyzer(pipeline.Config{
		Engine:       l5meter.NewEngine(params),
		Labels:       l1tensor.NewLabelTable(labelNames),
		Augmentation: cfg.GetAugmentation(),
		Denoise:      cfg.GetDenoise(),
		OnResult: func(res *pipeline.FrameAnalysis) {
			plotter.Record(res)
			if err := store.RecordFrame(sessionID, res); err != nil {
				monitoring.Logf("[Main] Failed to record frame %d: %v", res.Seq, err)
			}
		},
	})
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}

	source := &SyntheticSource{
		Width:  *width,
		Height: *height,
		FPS:    *fps,
		Crop:   cfg.GetCrop(),
		Clock:  timeutil.RealClock{},
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer.Start(ctx)

	// Capture loop: feed source frames into the analyzer.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := source.Run(ctx, analyzer.Submit); err != nil && err != context.Canceled {
			log.Printf("frame source terminated: %v", err)
		}
		log.Print("capture routine terminated")
	}()

	// Monitor HTTP server.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address:   addr,
			Analyzer:  analyzer,
			Plotter:   plotter,
			DB:        store,
			SessionID: sessionID,
		})
		if err := ws.Start(ctx); err != nil {
			log.Printf("monitor server error: %v", err)
		}
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	analyzer.Wait()

	if summary, err := store.SummarizeSession(sessionID); err == nil {
		monitoring.Logf("[Main] Session %s: %d frames, avg EV100 %.2f, top subject %q",
			sessionID, summary.FrameCount, summary.AvgSceneEV, summary.TopSubject)
	}
	log.Printf("Graceful shutdown complete")
}

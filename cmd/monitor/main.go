// Command monitor runs one occupancy scenario against a frame source and
// reports events to the collector.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/occupancy.report/internal/api"
	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/journal"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/pipeline"
	"github.com/banshee-data/occupancy.report/internal/scenario"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
	"github.com/banshee-data/occupancy.report/internal/tracking"
	"github.com/banshee-data/occupancy.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON site configuration")
	scenarioArg = flag.String("scenario", "", "Scenario to run: waiting, vaccination or posture (overrides config)")
	listen      = flag.String("listen", ":8080", "Listen address for the status API")
	dbPath      = flag.String("db", "occupancy_journal.db", "Event journal path; empty disables the journal")
	framesDir   = flag.String("frames", "", "Directory of PNG/JPEG frames to process")
	loopFrames  = flag.Bool("loop", false, "Restart the frame directory when exhausted")
	replayPath  = flag.String("replay", "", "JSONL file of recorded detector output")
	detectorURL = flag.String("detector-url", "", "Object detector endpoint (overrides config)")
	maskURL     = flag.String("mask-url", "", "Mask classifier endpoint (overrides config)")
	poseURL     = flag.String("pose-url", "", "Pose estimator endpoint (overrides config)")
	maxFPS      = flag.Float64("max-fps", 0, "Cap on frames captured per second; 0 uses the config value")
	once        = flag.Bool("once", false, "Exit once a finite source is exhausted")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig(*configPath, overrides{
		Scenario:    *scenarioArg,
		DetectorURL: *detectorURL,
		MaskURL:     *maskURL,
		PoseURL:     *poseURL,
		MaxFPS:      *maxFPS,
	})
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	log.Printf("occupancy monitor %s, scenario %s, device %s", version.Current(), cfg.GetScenario(), cfg.GetDeviceID())

	in, err := buildInputs(cfg, *framesDir, *replayPath, *loopFrames)
	if err != nil {
		log.Fatalf("inputs: %v", err)
	}

	m := metrics.New()
	clock := timeutil.RealClock{}

	var jr *journal.Journal
	var sink events.Journal
	if *dbPath != "" {
		jr, err = journal.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open event journal: %v", err)
		}
		defer jr.Close()
		sink = jr
	}

	emitter := events.New(events.Config{
		BaseURL:   cfg.GetServerURL(),
		QueueSize: cfg.GetQueueSize(),
		Clock:     clock,
		Journal:   sink,
		Metrics:   m,
	})

	scn, err := scenario.New(cfg, scenario.Deps{
		Detector:  in.Detector,
		Secondary: in.Secondary,
		Poses:     in.Poses,
		Emitter:   emitter,
		Clock:     clock,
		Metrics:   m,
	})
	if err != nil {
		log.Fatalf("scenario: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if jr != nil {
		if err := jr.StartRun(ctx, emitter.RunID(), scn.Name(), cfg.GetDeviceID(), version.Version, clock.Now()); err != nil {
			log.Printf("journal: %v", err)
		}
	}

	opts := api.Options{
		Scenario: scn.Name(),
		DeviceID: cfg.GetDeviceID(),
		Metrics:  m,
		Emitter:  emitter,
	}
	if ts, ok := scn.(interface{ Tracker() *tracking.Tracker }); ok {
		opts.Tracks = ts.Tracker()
	}
	if jr != nil {
		opts.Journal = jr
	}
	server := api.NewServer(opts)

	mux := server.ServeMux()
	mux.Handle("/metrics", m.Handler())
	server.AttachDebugRoutes(mux)
	if jr != nil {
		if err := jr.AttachAdminRoutes(mux); err != nil {
			log.Printf("journal admin routes: %v", err)
		}
	}

	runner := &pipeline.Runner{
		Source:       in.Source,
		Processor:    scn,
		Sink:         server,
		Metrics:      m,
		Clock:        clock,
		MaxFrameRate: cfg.GetMaxFrameRate(),
		Backpressure: in.Finite,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// Events are delivered until shutdown, then whatever is still queued
	// gets one last attempt.
	g.Go(func() error {
		err := emitter.Run(gctx)
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		emitter.Flush(flushCtx)
		log.Print("event routine terminated")
		return err
	})

	g.Go(func() error {
		scn.Setup(gctx)
		if err := runner.Run(gctx); err != nil {
			return err
		}
		log.Printf("frame source finished")
		if *once {
			cancel()
		}
		return nil
	})

	g.Go(func() error {
		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}
		errc := make(chan error, 1)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			if err != nil {
				return err
			}
		case <-gctx.Done():
		}
		log.Println("shutting down HTTP server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := httpServer.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		monitoring.Logf("monitor stopped with error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/kwv/riglocate/pose"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *pose.Config
	Tracker    *pose.PoseTracker
	MQTTClient *pose.Client
	Publisher  *pose.Publisher
	Solver     pose.MinimalSolver

	// estimators holds one estimator per rig. Estimators carry per-run
	// sampler state and are not safe for concurrent Estimate calls, so
	// estMu serializes estimation across rigs.
	estimators map[string]*pose.Estimator
	estMu      sync.Mutex

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	OutputFile   string
	RenderFormat string
	SeedOverride int64
	HTTPPort     int
	MQTTMode     bool
	HTTPMode     bool
}

// AppOptions carries the parsed CLI flags.
type AppOptions struct {
	ConfigFile   string
	OutputFile   string
	RenderFormat string
	SeedOverride int64
	HTTPPort     int
	MQTTMode     bool
	HTTPMode     bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Tracker:    pose.NewPoseTracker(),
		Solver:     pose.NewObjectSpaceSolver(),
		estimators: make(map[string]*pose.Estimator),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
	a.SeedOverride = opts.SeedOverride
	a.HTTPPort = opts.HTTPPort
	a.MQTTMode = opts.MQTTMode
	a.HTTPMode = opts.HTTPMode
}

// loadConfig loads and caches the configuration file.
func (a *App) loadConfig() error {
	if a.Config != nil {
		return nil
	}
	config, err := pose.LoadConfig(a.ConfigFile)
	if err != nil {
		return err
	}
	a.Config = config
	log.Printf("Loaded config from %s", a.ConfigFile)
	return nil
}

// estimatorFor returns the estimator for a rig, creating it on first use.
// Callers must hold estMu.
func (a *App) estimatorFor(rigID string) (*pose.Estimator, error) {
	if est, ok := a.estimators[rigID]; ok {
		return est, nil
	}

	params := a.Config.Estimator.Params()
	if a.SeedOverride != 0 {
		params.Seed = a.SeedOverride
	}

	est, err := pose.NewEstimator(params, a.Solver)
	if err != nil {
		return nil, fmt.Errorf("estimator for rig %s: %w", rigID, err)
	}
	a.estimators[rigID] = est
	return est, nil
}

// estimateSet runs robust estimation on one observation set and records the
// result in the tracker. Cameras come from the rig config; inline camera
// definitions in the payload take precedence.
func (a *App) estimateSet(rigID string, set *pose.ObservationSet) (*pose.RigEstimate, error) {
	var cameras map[string]*pose.PinholeCamera
	if a.Config.GetRigByID(rigID) != nil {
		var err error
		cameras, err = a.Config.CamerasForRig(rigID)
		if err != nil {
			return nil, err
		}
	} else if len(set.Cameras) == 0 {
		return nil, fmt.Errorf("unknown rig %q and no inline cameras in payload", rigID)
	}

	correspondences, err := pose.BuildCorrespondences(set, cameras)
	if err != nil {
		return nil, err
	}

	a.estMu.Lock()
	defer a.estMu.Unlock()

	est, err := a.estimatorFor(rigID)
	if err != nil {
		return nil, err
	}

	var summary pose.Summary
	solution, err := est.Estimate(set.Priors, correspondences, &summary)
	if err != nil {
		return nil, err
	}

	a.Tracker.Update(rigID, solution, summary, correspondences)
	result, _ := a.Tracker.Get(rigID)
	return result, nil
}

// RunEstimateOnly loads an observation export, runs estimation once, prints
// the result as JSON, and optionally renders the residual image.
func (a *App) RunEstimateOnly(observationFile string, render bool) {
	if err := a.loadConfig(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	set, err := pose.ParseObservationFile(observationFile)
	if err != nil {
		log.Fatalf("Failed to load observations from %s: %v", observationFile, err)
	}
	if set.RigID == "" {
		log.Fatalf("Observation file %s has no rigId", observationFile)
	}

	estimate, err := a.estimateSet(set.RigID, set)
	if err != nil {
		log.Fatalf("Estimation failed for rig %s: %v", set.RigID, err)
	}

	fmt.Printf("Rig %s: %d iterations, %d hypotheses, %d/%d inliers, confidence %.3f\n",
		estimate.RigID, estimate.Summary.Iterations, estimate.Summary.Hypotheses,
		len(estimate.Summary.Inliers), len(estimate.Correspondences), estimate.Summary.Confidence)

	out, err := json.MarshalIndent(estimate, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode estimate: %v", err)
	}
	fmt.Println(string(out))

	if render {
		if err := a.renderEstimate(estimate, a.OutputFile); err != nil {
			log.Fatalf("Failed to render residuals: %v", err)
		}
		fmt.Printf("Created %s: %s\n", a.RenderFormat, a.OutputFile)
	}
}

// renderEstimate writes the residual view for an estimate to a file, using
// the configured render format.
func (a *App) renderEstimate(estimate *pose.RigEstimate, outputPath string) error {
	switch a.RenderFormat {
	case "raster":
		return pose.NewResidualRenderer(estimate).SavePNG(outputPath)
	case "vector":
		outFile, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output file %s: %w", outputPath, err)
		}
		defer func() {
			if err := outFile.Close(); err != nil {
				log.Printf("Warning: error closing output file %s: %v", outputPath, err)
			}
		}()

		renderer := pose.NewVectorResidualRenderer(estimate)
		if strings.EqualFold(filepath.Ext(outputPath), ".png") {
			return renderer.RenderToPNG(outFile)
		}
		return renderer.RenderToSVG(outFile)
	default:
		return fmt.Errorf("invalid format: %s (must be raster or vector)", a.RenderFormat)
	}
}

// RunService starts the combined MQTT and/or HTTP service
func (a *App) RunService() {
	fmt.Println("Starting riglocate service...")

	if err := a.loadConfig(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Start MQTT if enabled
	if a.MQTTMode {
		handler := func(rigID string, rawPayload []byte, set *pose.ObservationSet, err error) {
			if err != nil {
				log.Printf("Error receiving observations for %s: %v", rigID, err)
				return
			}

			// Topic routing wins over a rigId embedded in the payload.
			if set.RigID == "" {
				set.RigID = rigID
			}

			estimate, err := a.estimateSet(rigID, set)
			if err != nil {
				log.Printf("Estimation failed for %s: %v", rigID, err)
				return
			}

			log.Printf("%s: %d iterations -> %d/%d inliers, confidence %.3f",
				rigID, estimate.Summary.Iterations,
				len(estimate.Summary.Inliers), len(estimate.Correspondences),
				estimate.Summary.Confidence)

			if a.Publisher != nil {
				if err := a.Publisher.PublishEstimate(rigID, estimate.Solution, estimate.Summary); err != nil {
					log.Printf("Error publishing pose for %s: %v", rigID, err)
				}
			}
		}

		mqttClient, err := pose.InitMQTT(a.Config, handler)
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		if mqttClient == nil {
			log.Fatal("MQTT broker not configured in config file or MQTT_BROKER")
		}
		a.MQTTClient = mqttClient

		a.Publisher = pose.NewPublisher(mqttClient.GetClient())
		if a.Config.MQTT.PublishPrefix != "" {
			a.Publisher.SetPrefix(a.Config.MQTT.PublishPrefix)
		}
		fmt.Println("MQTT pose publisher initialized")
	}

	// Start HTTP server if enabled
	if a.HTTPMode {
		httpServer := newHTTPServer(a)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HTTPPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	// Print service info
	fmt.Println("\nService Running")
	fmt.Println("===============")

	if a.MQTTMode {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed topics:")
		for _, rig := range a.Config.Rigs {
			fmt.Printf("    - %s (%s)\n", rig.Topic, rig.ID)
		}
		publishPrefix := a.Config.MQTT.PublishPrefix
		if publishPrefix == "" {
			publishPrefix = "riglocate"
		}
		fmt.Printf("  Publishing to: %s/{rigID}\n", publishPrefix)
		fmt.Printf("  Combined poses: %s/poses\n", publishPrefix)
	}

	if a.HTTPMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.HTTPPort)
		fmt.Println("  GET  /health               - Health check")
		fmt.Println("  GET  /poses                - All rig estimates")
		fmt.Println("  GET  /pose/{rigID}         - Single rig estimate")
		fmt.Println("  POST /estimate             - Run estimation on a posted observation set")
		fmt.Println("  GET  /residuals/{rigID}.png - Residual image (raster)")
		fmt.Println("  GET  /residuals/{rigID}.svg - Residual image (vector)")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
}

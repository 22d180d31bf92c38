package main

import (
	"flag"
	"fmt"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile   = flag.String("config", "config.yaml", "Path to configuration file")
	estimateFile = flag.String("estimate", "", "Run estimation on an observation JSON export and exit")
	renderOnly   = flag.Bool("render", false, "With -estimate, also render the residual image")
	outputFile   = flag.String("output", "residuals.png", "Output file for rendered residuals")
	renderFormat = flag.String("format", "raster", "Render format: raster or vector")
	seed         = flag.Int64("seed", 0, "Override the estimator random seed (0 = use config)")
	mqttMode     = flag.Bool("mqtt", false, "Run MQTT service mode for live observation streams")
	httpMode     = flag.Bool("http", false, "Enable HTTP server for poses and residual images")
	httpPort     = flag.Int("http-port", 8080, "HTTP server port (default 8080)")
)

func main() {
	flag.Parse()
	fmt.Printf("riglocate version: %s\n", Version)

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile:   *configFile,
		OutputFile:   *outputFile,
		RenderFormat: *renderFormat,
		SeedOverride: *seed,
		HTTPPort:     *httpPort,
		MQTTMode:     *mqttMode,
		HTTPMode:     *httpMode,
	})

	if *estimateFile != "" {
		app.RunEstimateOnly(*estimateFile, *renderOnly)
		return
	}

	if *mqttMode || *httpMode {
		app.RunService()
		return
	}

	fmt.Println("riglocate service starting...")
	fmt.Println("Use -estimate FILE to run estimation on a JSON export")
	fmt.Println("Use -estimate FILE -render to also write the residual image")
	fmt.Println("Use -mqtt to run MQTT service mode")
	fmt.Println("Use -http to run HTTP server mode")
	fmt.Println("Use -mqtt -http to run both MQTT and HTTP together")
	fmt.Println("\nConfiguration:")
	fmt.Println("  config.yaml - MQTT settings, estimator parameters, and rig cameras")
	fmt.Println("\nNo mode selected, exiting")
}

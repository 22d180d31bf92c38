package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kwv/riglocate/pose"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(a *App) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status       string    `json:"status"`
			Timestamp    time.Time `json:"timestamp"`
			HasEstimates bool      `json:"hasEstimates"`
			MQTTActive   bool      `json:"mqttActive"`
		}{
			Status:       "ok",
			Timestamp:    time.Now(),
			HasEstimates: a.Tracker.HasEstimates(),
			MQTTActive:   a.MQTTClient != nil && a.MQTTClient.IsConnected(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// All rig estimates
	mux.HandleFunc("/poses", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(a.Tracker.All()); err != nil {
			log.Printf("Error encoding poses: %v", err)
		}
	})

	// Single rig estimate
	mux.HandleFunc("/pose/", func(w http.ResponseWriter, r *http.Request) {
		rigID := strings.TrimPrefix(r.URL.Path, "/pose/")
		if rigID == "" {
			http.Error(w, "Missing rig ID", http.StatusBadRequest)
			return
		}

		estimate, ok := a.Tracker.Get(rigID)
		if !ok {
			http.Error(w, fmt.Sprintf("No estimate for rig %q", rigID), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(estimate); err != nil {
			log.Printf("Error encoding pose for %s: %v", rigID, err)
		}
	})

	// Run estimation on a posted observation set (raw JSON or zlib-compressed)
	mux.HandleFunc("/estimate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 16<<20))
		if err != nil {
			http.Error(w, fmt.Sprintf("Reading body: %v", err), http.StatusBadRequest)
			return
		}

		set, err := pose.DecodeObservations(payload)
		if err != nil {
			http.Error(w, fmt.Sprintf("Decoding observations: %v", err), http.StatusBadRequest)
			return
		}
		if set.RigID == "" {
			http.Error(w, "Observation set has no rigId", http.StatusBadRequest)
			return
		}

		estimate, err := a.estimateSet(set.RigID, set)
		if err != nil {
			http.Error(w, fmt.Sprintf("Estimation failed: %v", err), http.StatusUnprocessableEntity)
			return
		}

		if a.Publisher != nil {
			if err := a.Publisher.PublishEstimate(estimate.RigID, estimate.Solution, estimate.Summary); err != nil {
				log.Printf("Error publishing pose for %s: %v", estimate.RigID, err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(estimate); err != nil {
			log.Printf("Error encoding estimate for %s: %v", estimate.RigID, err)
		}
	})

	// Residual images: /residuals/{rigID}.png or /residuals/{rigID}.svg
	mux.HandleFunc("/residuals/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/residuals/")

		var rigID, format string
		switch {
		case strings.HasSuffix(name, ".png"):
			rigID, format = strings.TrimSuffix(name, ".png"), "png"
		case strings.HasSuffix(name, ".svg"):
			rigID, format = strings.TrimSuffix(name, ".svg"), "svg"
		default:
			http.Error(w, "Expected {rigID}.png or {rigID}.svg", http.StatusBadRequest)
			return
		}
		if rigID == "" {
			http.Error(w, "Missing rig ID", http.StatusBadRequest)
			return
		}

		estimate, ok := a.Tracker.Get(rigID)
		if !ok {
			http.Error(w, fmt.Sprintf("No estimate for rig %q", rigID), http.StatusNotFound)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		switch format {
		case "png":
			w.Header().Set("Content-Type", "image/png")
			renderer := pose.NewVectorResidualRenderer(estimate)
			if err := renderer.RenderToPNG(w); err != nil {
				log.Printf("Error encoding residual PNG for %s: %v", rigID, err)
			}
		case "svg":
			w.Header().Set("Content-Type", "image/svg+xml")
			renderer := pose.NewVectorResidualRenderer(estimate)
			if err := renderer.RenderToSVG(w); err != nil {
				log.Printf("Error encoding residual SVG for %s: %v", rigID, err)
			}
		}
	})

	// Default route serves an HTML page embedding the residual views
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		var imgs strings.Builder
		for _, est := range a.Tracker.All() {
			fmt.Fprintf(&imgs, `<figure><img src="/residuals/%s.svg" alt="%s residuals"><figcaption>%s</figcaption></figure>`,
				est.RigID, est.RigID, est.RigID)
		}
		if imgs.Len() == 0 {
			imgs.WriteString("<p>No estimates yet</p>")
		}

		_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>riglocate</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
body{background:#1a1a1a;color:#ddd;font-family:sans-serif;padding:1rem}
figure{margin:1rem 0}
img{display:block;max-width:100%%;background:#fff}
figcaption{padding:.25rem 0}
</style>
</head>
<body>
<h1>riglocate</h1>
%s
</body>
</html>`, imgs.String())
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

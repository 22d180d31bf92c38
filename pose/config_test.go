package pose

import (
	"os"
	"path/filepath"
	"testing"
)

const validRigYAML = `
mqtt:
  broker: tcp://localhost:1883
  publishPrefix: riglocate
estimator:
  reprojectionErrorThresh: 4.0
  maxIterations: 500
rigs:
  - id: rover
    topic: sensors/rover/observations
    cameras:
      - id: front
        fx: 500
        fy: 500
        ppx: 320
        ppy: 240
        width: 640
        height: 480
        position: [0.1, 0, 0]
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, validRigYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("Broker = %q", config.MQTT.Broker)
	}
	if len(config.Rigs) != 1 || config.Rigs[0].ID != "rover" {
		t.Fatalf("Rigs = %+v", config.Rigs)
	}
	if len(config.Rigs[0].Cameras) != 1 || config.Rigs[0].Cameras[0].Fx != 500 {
		t.Errorf("Cameras = %+v", config.Rigs[0].Cameras)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no rigs", "mqtt:\n  broker: tcp://localhost:1883\n"},
		{"missing rig id", "rigs:\n  - cameras:\n      - {id: a, fx: 500, fy: 500}\n"},
		{"rig without cameras", "rigs:\n  - id: rover\n"},
		{"missing camera id", "rigs:\n  - id: rover\n    cameras:\n      - {fx: 500, fy: 500}\n"},
		{"bad focal length", "rigs:\n  - id: rover\n    cameras:\n      - {id: a, fx: 0, fy: 500}\n"},
		{"bad estimator params", "estimator:\n  failureProbability: 2.0\nrigs:\n  - id: rover\n    cameras:\n      - {id: a, fx: 500, fy: 500}\n"},
		{"malformed yaml", ": not yaml ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveConfigRoundtrip(t *testing.T) {
	original, err := LoadConfig(writeConfig(t, validRigYAML))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}
	if reloaded.Rigs[0].ID != original.Rigs[0].ID {
		t.Errorf("rig ID = %q, want %q", reloaded.Rigs[0].ID, original.Rigs[0].ID)
	}
	if reloaded.Estimator.MaxIterations != 500 {
		t.Errorf("MaxIterations = %d, want 500", reloaded.Estimator.MaxIterations)
	}
}

func TestCameraConfigCamera(t *testing.T) {
	cc := CameraConfig{
		ID: "front", Fx: 500, Fy: 480, Ppx: 320, Ppy: 240,
		Width: 640, Height: 480,
		Position: [3]float64{0.1, -0.2, 0},
	}

	cam, err := cc.Camera()
	if err != nil {
		t.Fatalf("Camera() error = %v", err)
	}
	if cam.Rotation != IdentityQuat() {
		t.Errorf("zero rotation should default to identity, got %+v", cam.Rotation)
	}
	if (cam.Position != Vec3{X: 0.1, Y: -0.2}) {
		t.Errorf("Position = %+v", cam.Position)
	}

	// Unnormalized quaternions are normalized on load.
	cc.Rotation = [4]float64{2, 0, 0, 0}
	cam, err = cc.Camera()
	if err != nil {
		t.Fatal(err)
	}
	if cam.Rotation != IdentityQuat() {
		t.Errorf("Rotation = %+v, want normalized identity", cam.Rotation)
	}
}

func TestConfigLookups(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, validRigYAML))
	if err != nil {
		t.Fatal(err)
	}

	if rig := config.GetRigByID("rover"); rig == nil || rig.ID != "rover" {
		t.Errorf("GetRigByID(rover) = %+v", rig)
	}
	if rig := config.GetRigByID("ghost"); rig != nil {
		t.Errorf("GetRigByID(ghost) = %+v, want nil", rig)
	}

	if id, ok := config.GetRigByTopic("sensors/rover/observations"); !ok || id != "rover" {
		t.Errorf("GetRigByTopic = %q, %v", id, ok)
	}
	if _, ok := config.GetRigByTopic("sensors/other"); ok {
		t.Error("GetRigByTopic should miss for unknown topic")
	}

	cameras, err := config.CamerasForRig("rover")
	if err != nil {
		t.Fatalf("CamerasForRig() error = %v", err)
	}
	if cameras["front"] == nil || cameras["front"].Fx != 500 {
		t.Errorf("cameras = %+v", cameras)
	}
	if _, err := config.CamerasForRig("ghost"); err == nil {
		t.Error("expected error for unknown rig")
	}
}

func TestEstimatorConfigParams(t *testing.T) {
	defaults := EstimatorConfig{}.Params()
	if defaults != DefaultParams() {
		t.Errorf("zero config should yield defaults, got %+v", defaults)
	}

	partial := EstimatorConfig{MaxIterations: 250, Seed: 42}.Params()
	if partial.MaxIterations != 250 || partial.Seed != 42 {
		t.Errorf("overrides not applied: %+v", partial)
	}
	if partial.FailureProbability != DefaultParams().FailureProbability {
		t.Errorf("unset fields should keep defaults: %+v", partial)
	}
}

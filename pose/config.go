package pose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the unified configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if len(config.Rigs) == 0 {
		return nil, fmt.Errorf("at least one rig must be defined")
	}
	for i, rig := range config.Rigs {
		if rig.ID == "" {
			return nil, fmt.Errorf("rig[%d].id is required", i)
		}
		if len(rig.Cameras) == 0 {
			return nil, fmt.Errorf("rig[%d] (%s) must define at least one camera", i, rig.ID)
		}
		for j, cc := range rig.Cameras {
			if _, err := cc.Camera(); err != nil {
				return nil, fmt.Errorf("rig[%d].cameras[%d]: %w", i, j, err)
			}
		}
	}

	// Fail on bad estimator parameters up front rather than at first use.
	params := config.Estimator.Params()
	if _, err := NewEstimator(params, SolverFunc(func(Input) (Solution, bool) { return Solution{}, false })); err != nil {
		return nil, fmt.Errorf("estimator config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Camera builds the pinhole camera model from a config entry.
func (cc CameraConfig) Camera() (*PinholeCamera, error) {
	if cc.ID == "" {
		return nil, fmt.Errorf("camera id is required")
	}
	if cc.Fx <= 0 || cc.Fy <= 0 {
		return nil, fmt.Errorf("camera %q focal lengths must be positive", cc.ID)
	}
	rotation := Quat{W: cc.Rotation[0], X: cc.Rotation[1], Y: cc.Rotation[2], Z: cc.Rotation[3]}
	if rotation == (Quat{}) {
		rotation = IdentityQuat()
	}
	return &PinholeCamera{
		ID:       cc.ID,
		Fx:       cc.Fx,
		Fy:       cc.Fy,
		Ppx:      cc.Ppx,
		Ppy:      cc.Ppy,
		Width:    cc.Width,
		Height:   cc.Height,
		Rotation: rotation.Normalize(),
		Position: Vec3{X: cc.Position[0], Y: cc.Position[1], Z: cc.Position[2]},
	}, nil
}

// CamerasForRig builds the camera lookup for a configured rig.
func (c *Config) CamerasForRig(rigID string) (map[string]*PinholeCamera, error) {
	rig := c.GetRigByID(rigID)
	if rig == nil {
		return nil, fmt.Errorf("unknown rig %q", rigID)
	}
	cameras := make(map[string]*PinholeCamera, len(rig.Cameras))
	for _, cc := range rig.Cameras {
		cam, err := cc.Camera()
		if err != nil {
			return nil, err
		}
		cameras[cc.ID] = cam
	}
	return cameras, nil
}

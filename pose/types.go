package pose

import "github.com/paulmach/orb"

// Vec3 represents a 3D point or direction.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a rotation quaternion, scalar part first. Rotation operations
// assume it is normalized; constructors and config loading enforce that.
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Correspondence pairs a 3D landmark (in the map/body frame) with its pixel
// observation in one of the rig's cameras. Immutable once built.
type Correspondence struct {
	Point       Vec3
	Observation orb.Point
	Camera      *PinholeCamera
}

// Priors carries auxiliary constraints for the minimal solver. The robust
// estimator forwards them unmodified and never interprets their content.
type Priors struct {
	Scale      float64 `json:"scale,omitempty"`
	HasScale   bool    `json:"hasScale,omitempty"`
	Gravity    Vec3    `json:"gravity,omitempty"`
	HasGravity bool    `json:"hasGravity,omitempty"`
}

// Solution holds one or more similarity-transform hypotheses as parallel
// sequences. Index i of each slice jointly describes one transform mapping a
// body-frame point p into the generalized rig frame via (R·p + t) / s.
// The three slices always have equal length.
type Solution struct {
	Rotations    []Quat    `json:"rotations"`
	Translations []Vec3    `json:"translations"`
	Scales       []float64 `json:"scales"`
}

// IdentitySolution returns a single-hypothesis solution holding the identity
// transform. It is the safe fallback when no hypothesis beats it.
func IdentitySolution() Solution {
	return Solution{
		Rotations:    []Quat{IdentityQuat()},
		Translations: []Vec3{{}},
		Scales:       []float64{1.0},
	}
}

// NumHypotheses returns the number of hypotheses stored in the solution.
func (s Solution) NumHypotheses() int {
	return len(s.Rotations)
}

// Summary records the statistics of one Estimate run. It is owned by the
// caller and written incrementally during the call.
type Summary struct {
	Iterations int     `json:"iterations"`
	Hypotheses int     `json:"hypotheses"`
	Inliers    []int   `json:"inliers"`
	Confidence float64 `json:"confidence"`
}

// RigPose is the published pose of a rig in map coordinates.
type RigPose struct {
	RigID       string  `json:"rigId"`
	Rotation    Quat    `json:"rotation"`
	Translation Vec3    `json:"translation"`
	Scale       float64 `json:"scale"`
	Confidence  float64 `json:"confidence"`
	Inliers     int     `json:"inliers"`
	Timestamp   int64   `json:"timestamp"`
}

// CameraConfig defines one rig camera from the config file or an inline
// observation payload: pinhole intrinsics plus the camera's pose within the
// rig (rotation maps rig-frame vectors into the camera frame).
type CameraConfig struct {
	ID       string     `yaml:"id" json:"id"`
	Fx       float64    `yaml:"fx" json:"fx"`
	Fy       float64    `yaml:"fy" json:"fy"`
	Ppx      float64    `yaml:"ppx" json:"ppx"`
	Ppy      float64    `yaml:"ppy" json:"ppy"`
	Width    int        `yaml:"width" json:"width"`
	Height   int        `yaml:"height" json:"height"`
	Rotation [4]float64 `yaml:"rotation" json:"rotation"` // w, x, y, z
	Position [3]float64 `yaml:"position" json:"position"`
}

// RigConfig defines a camera rig from the config file.
type RigConfig struct {
	ID      string         `yaml:"id" json:"id"`
	Topic   string         `yaml:"topic,omitempty" json:"topic,omitempty"`
	Cameras []CameraConfig `yaml:"cameras" json:"cameras"`
}

// EstimatorConfig holds the RANSAC parameters from the config file.
type EstimatorConfig struct {
	FailureProbability      float64 `yaml:"failureProbability" json:"failureProbability"`
	ReprojectionErrorThresh float64 `yaml:"reprojectionErrorThresh" json:"reprojectionErrorThresh"`
	MinIterations           int     `yaml:"minIterations" json:"minIterations"`
	MaxIterations           int     `yaml:"maxIterations" json:"maxIterations"`
	Seed                    int64   `yaml:"seed" json:"seed"`
}

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Estimator EstimatorConfig `yaml:"estimator" json:"estimator"`
	Rigs      []RigConfig     `yaml:"rigs" json:"rigs"`
}

// GetRigByID returns the rig config for the given ID.
func (c *Config) GetRigByID(id string) *RigConfig {
	for i := range c.Rigs {
		if c.Rigs[i].ID == id {
			return &c.Rigs[i]
		}
	}
	return nil
}

// GetRigByTopic returns the rig ID for a given observation topic.
func (c *Config) GetRigByTopic(topic string) (string, bool) {
	for _, rig := range c.Rigs {
		if rig.Topic == topic {
			return rig.ID, true
		}
	}
	return "", false
}

// Params converts the config section into estimator parameters, filling in
// defaults for unset fields.
func (ec EstimatorConfig) Params() Params {
	p := DefaultParams()
	if ec.FailureProbability != 0 {
		p.FailureProbability = ec.FailureProbability
	}
	if ec.ReprojectionErrorThresh != 0 {
		p.ReprojectionErrorThresh = ec.ReprojectionErrorThresh
	}
	if ec.MinIterations != 0 {
		p.MinIterations = ec.MinIterations
	}
	if ec.MaxIterations != 0 {
		p.MaxIterations = ec.MaxIterations
	}
	if ec.Seed != 0 {
		p.Seed = ec.Seed
	}
	return p
}

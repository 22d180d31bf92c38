package pose

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
)

// Observation is one 2D-3D measurement on the wire: a pixel seen by a named
// rig camera, paired with the 3D landmark it observes.
type Observation struct {
	Camera string     `json:"camera"`
	Pixel  [2]float64 `json:"pixel"`
	Point  [3]float64 `json:"point"`
}

// ObservationSet is a snapshot of measurements for one rig, as received
// over MQTT or read from a JSON export. Cameras may be defined inline; when
// absent, they are resolved against the rig's configured cameras.
type ObservationSet struct {
	RigID        string         `json:"rigId"`
	Cameras      []CameraConfig `json:"cameras,omitempty"`
	Priors       Priors         `json:"priors,omitempty"`
	Observations []Observation  `json:"observations"`
}

// ParseObservationJSON parses an observation set from raw JSON.
func ParseObservationJSON(data []byte) (*ObservationSet, error) {
	var set ObservationSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return &set, nil
}

// ParseObservationFile reads and parses an observation set JSON file.
func ParseObservationFile(path string) (*ObservationSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseObservationJSON(data)
}

// DecodeObservations decodes an observation payload from either raw JSON or
// zlib-compressed JSON (the compact form used on MQTT).
func DecodeObservations(data []byte) (*ObservationSet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	jsonBytes := data
	if data[0] != '{' {
		inflated, err := inflateZlib(data)
		if err != nil {
			return nil, fmt.Errorf("unknown payload format: not JSON or zlib-compressed")
		}
		jsonBytes = inflated
	}

	return ParseObservationJSON(jsonBytes)
}

// inflateZlib decompresses a zlib stream.
func inflateZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflating zlib stream: %w", err)
	}
	return out, nil
}

// BuildCorrespondences resolves an observation set against a camera lookup.
// Inline camera definitions in the set take precedence over the provided
// map (typically the rig's configured cameras). Unknown camera references
// are an error.
func BuildCorrespondences(set *ObservationSet, cameras map[string]*PinholeCamera) ([]Correspondence, error) {
	lookup := make(map[string]*PinholeCamera, len(cameras)+len(set.Cameras))
	for id, cam := range cameras {
		lookup[id] = cam
	}
	for _, cc := range set.Cameras {
		cam, err := cc.Camera()
		if err != nil {
			return nil, fmt.Errorf("inline camera %q: %w", cc.ID, err)
		}
		lookup[cc.ID] = cam
	}

	correspondences := make([]Correspondence, 0, len(set.Observations))
	for i, obs := range set.Observations {
		cam, ok := lookup[obs.Camera]
		if !ok {
			return nil, fmt.Errorf("observation[%d] references unknown camera %q", i, obs.Camera)
		}
		correspondences = append(correspondences, Correspondence{
			Point:       Vec3{X: obs.Point[0], Y: obs.Point[1], Z: obs.Point[2]},
			Observation: orb.Point{obs.Pixel[0], obs.Pixel[1]},
			Camera:      cam,
		})
	}
	return correspondences, nil
}

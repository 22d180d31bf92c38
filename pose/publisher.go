package pose

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes estimated rig poses to MQTT.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	poses         map[string]*RigPose
	mu            sync.RWMutex
}

// NewPublisher creates a pose publisher. If client is nil, publishing is
// disabled (for testing).
func NewPublisher(client mqtt.Client) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = "riglocate"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // fire and forget for pose updates
		retain:        true, // retain the latest pose
		poses:         make(map[string]*RigPose),
	}
}

// SetPrefix overrides the topic prefix (normally from config).
func (p *Publisher) SetPrefix(prefix string) {
	if prefix != "" {
		p.publishPrefix = prefix
	}
}

// PublishEstimate publishes a rig's estimated pose to its individual topic
// and to the combined poses topic.
func (p *Publisher) PublishEstimate(rigID string, solution Solution, summary Summary) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if solution.NumHypotheses() == 0 {
		return fmt.Errorf("solution has no hypothesis to publish")
	}

	pose := &RigPose{
		RigID:       rigID,
		Rotation:    solution.Rotations[0],
		Translation: solution.Translations[0],
		Scale:       solution.Scales[0],
		Confidence:  summary.Confidence,
		Inliers:     len(summary.Inliers),
		Timestamp:   time.Now().Unix(),
	}

	p.mu.Lock()
	p.poses[rigID] = pose
	p.mu.Unlock()

	if err := p.publishIndividual(pose); err != nil {
		log.Printf("Error publishing pose for %s: %v", rigID, err)
		return err
	}

	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined poses: %v", err)
		return err
	}

	return nil
}

// publishIndividual publishes a single rig pose to {prefix}/{rigID}.
func (p *Publisher) publishIndividual(pose *RigPose) error {
	topic := fmt.Sprintf("%s/%s", p.publishPrefix, pose.RigID)

	payload, err := json.Marshal(pose)
	if err != nil {
		return fmt.Errorf("marshaling pose: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published pose for %s: scale=%.4f inliers=%d confidence=%.3f",
		pose.RigID, pose.Scale, pose.Inliers, pose.Confidence)
	return nil
}

// publishCombined publishes all rig poses to {prefix}/poses.
func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	poses := make([]*RigPose, 0, len(p.poses))
	for _, pose := range p.poses {
		poses = append(poses, pose)
	}
	p.mu.RUnlock()

	if len(poses) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/poses", p.publishPrefix)

	message := map[string]interface{}{
		"rigs":      poses,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined poses: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// GetPose returns the last published pose for a rig.
func (p *Publisher) GetPose(rigID string) (*RigPose, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pose, ok := p.poses[rigID]
	return pose, ok
}

// ClearPose removes a rig's pose (e.g. when it goes offline).
func (p *Publisher) ClearPose(rigID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.poses, rigID)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2).
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained.
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

package pose

import (
	"sort"
	"sync"
	"time"
)

// RigEstimate is the latest accepted estimate for one rig, kept for HTTP
// serving and debug rendering.
type RigEstimate struct {
	RigID           string    `json:"rigId"`
	Solution        Solution  `json:"solution"`
	Summary         Summary   `json:"summary"`
	Correspondences []Correspondence `json:"-"`
	Timestamp       time.Time `json:"timestamp"`
}

// PoseTracker tracks the latest estimate per rig.
type PoseTracker struct {
	mu        sync.RWMutex
	estimates map[string]*RigEstimate
}

// NewPoseTracker creates an empty tracker.
func NewPoseTracker() *PoseTracker {
	return &PoseTracker{
		estimates: make(map[string]*RigEstimate),
	}
}

// Update stores a new estimate for a rig, replacing any previous one.
func (t *PoseTracker) Update(rigID string, solution Solution, summary Summary, correspondences []Correspondence) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.estimates[rigID] = &RigEstimate{
		RigID:           rigID,
		Solution:        solution,
		Summary:         summary,
		Correspondences: correspondences,
		Timestamp:       time.Now(),
	}
}

// Get returns a copy of the latest estimate for a rig.
func (t *PoseTracker) Get(rigID string) (*RigEstimate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	est, ok := t.estimates[rigID]
	if !ok {
		return nil, false
	}
	cp := *est
	return &cp, true
}

// All returns copies of every rig's latest estimate, ordered by rig ID.
func (t *PoseTracker) All() []*RigEstimate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := make([]*RigEstimate, 0, len(t.estimates))
	for _, est := range t.estimates {
		cp := *est
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RigID < all[j].RigID })
	return all
}

// HasEstimates reports whether any rig has produced an estimate yet.
func (t *PoseTracker) HasEstimates() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.estimates) > 0
}

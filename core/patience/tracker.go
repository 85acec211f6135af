package patience

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/pborman/uuid"
	"github.com/patience-network/patience-go/log"
	"sync"
)

type Record struct {
	NodeId             peer.ID `json:"node_id"`
	AccumulatedSeconds uint64  `json:"accumulated_seconds"`
	Progress           float64 `json:"progress"`
}

type record struct {
	accumulated uint64
	completed   bool
	session     string
}

// Tracker accumulates verified participation time per node. Patience cannot be
// carried across sessions: Reset drops everything accumulated so far.
type Tracker struct {
	required uint64
	records  map[peer.ID]*record
	mutex    sync.RWMutex
	log      log.Logger
}

func NewTracker(requiredSeconds uint64) *Tracker {
	if requiredSeconds == 0 {
		requiredSeconds = 1
	}
	return &Tracker{
		required: requiredSeconds,
		records:  make(map[peer.ID]*record),
		log:      log.New("component", "patience"),
	}
}

func (t *Tracker) RequiredSeconds() uint64 {
	return t.required
}

func (t *Tracker) get(id peer.ID) *record {
	r, ok := t.records[id]
	if !ok {
		r = &record{session: uuid.New()}
		t.records[id] = r
	}
	return r
}

// OnSecondElapsed credits one second to id when it is eligible. It returns true
// exactly once per session: on the call that makes progress reach 1.
func (t *Tracker) OnSecondElapsed(id peer.ID, eligible bool) (completed bool) {
	if !eligible {
		return false
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	r := t.get(id)
	r.accumulated++
	if !r.completed && r.accumulated >= t.required {
		r.completed = true
		t.log.Debug("Patience completed", "node", id, "session", r.session, "seconds", r.accumulated)
		return true
	}
	return false
}

// Reset starts a new session for id with zero accumulated time.
func (t *Tracker) Reset(id peer.ID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if r, ok := t.records[id]; ok && r.accumulated > 0 {
		t.log.Debug("Patience reset", "node", id, "session", r.session, "lost", r.accumulated)
	}
	t.records[id] = &record{session: uuid.New()}
}

func (t *Tracker) Forget(id peer.ID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(t.records, id)
}

func (t *Tracker) Record(id peer.ID) Record {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	result := Record{NodeId: id}
	if r, ok := t.records[id]; ok {
		result.AccumulatedSeconds = r.accumulated
	}
	result.Progress = t.progress(result.AccumulatedSeconds)
	return result
}

func (t *Tracker) Completed(id peer.ID) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	r, ok := t.records[id]
	return ok && r.completed
}

func (t *Tracker) Session(id peer.ID) string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if r, ok := t.records[id]; ok {
		return r.session
	}
	return ""
}

// RemainingSeconds is required minus accumulated, never below zero.
func (t *Tracker) RemainingSeconds(id peer.ID) uint64 {
	accumulated := t.Record(id).AccumulatedSeconds
	if accumulated >= t.required {
		return 0
	}
	return t.required - accumulated
}

func (t *Tracker) progress(accumulated uint64) float64 {
	if accumulated >= t.required {
		return 1
	}
	return float64(accumulated) / float64(t.required)
}

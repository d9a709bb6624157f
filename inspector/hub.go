package inspector

import (
	"sync"
	"time"

	"github.com/aukilabs/ingwaz/octree"
	"github.com/aukilabs/ingwaz/scene"
)

// Snapshot is the state of a scene index at the end of a frame.
type Snapshot struct {
	Report      scene.FrameReport `json:"report"`
	Octree      octree.DebugInfo  `json:"octree"`
	PublishedAt time.Time         `json:"published_at"`
}

// Hub shares the reports produced on the frame goroutine with HTTP and
// WebSocket clients. Published values are never modified afterward.
type Hub struct {
	// The number of reports buffered for each subscriber. Reports are dropped
	// for subscribers that lag behind.
	BufferSize int

	mutex       sync.RWMutex
	latest      *Snapshot
	ids         scene.IDGenerator
	subscribers map[uint32]chan scene.FrameReport
}

// Publish records the latest report and debug info, and forwards the report
// to subscribers.
func (h *Hub) Publish(report scene.FrameReport, info octree.DebugInfo) {
	snapshot := &Snapshot{
		Report:      report,
		Octree:      info,
		PublishedAt: time.Now(),
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.latest = snapshot
	for _, c := range h.subscribers {
		select {
		case c <- report:
		default:
			instrumentDroppedReport()
		}
	}
}

// PublishReport records report without refreshing the octree debug info of
// the latest snapshot.
func (h *Hub) PublishReport(report scene.FrameReport) {
	var info octree.DebugInfo
	if latest, ok := h.Latest(); ok {
		info = latest.Octree
	}
	h.Publish(report, info)
}

// Latest returns the last published snapshot.
func (h *Hub) Latest() (Snapshot, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.latest == nil {
		return Snapshot{}, false
	}
	return *h.latest, true
}

// Subscribe returns a channel receiving the published reports. Unsubscribe
// must be called with the returned id once done.
func (h *Hub) Subscribe() (uint32, <-chan scene.FrameReport) {
	size := h.BufferSize
	if size <= 0 {
		size = 64
	}
	c := make(chan scene.FrameReport, size)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.subscribers == nil {
		h.subscribers = make(map[uint32]chan scene.FrameReport)
	}

	id := h.ids.New()
	h.subscribers[id] = c
	instrumentSubscribersChanged(len(h.subscribers))
	return id, c
}

func (h *Hub) Unsubscribe(id uint32) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.subscribers[id]; !ok {
		return
	}

	delete(h.subscribers, id)
	h.ids.Release(id)
	instrumentSubscribersChanged(len(h.subscribers))
}

func (h *Hub) SubscriberCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.subscribers)
}

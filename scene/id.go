package scene

import "sync"

// IDGenerator hands out the arena ids that identify objects in a scene. Ids
// start at 1 so that 0 always means "not attached".
type IDGenerator struct {
	mutex    sync.Mutex
	last     uint32
	released []uint32
}

// New returns an id, preferring the most recently released one.
func (g *IDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if n := len(g.released); n > 0 {
		id := g.released[n-1]
		g.released = g.released[:n-1]
		return id
	}

	g.last++
	return g.last
}

// Release makes id available to New again. Releasing an id that is still in
// use leads to two objects sharing it.
func (g *IDGenerator) Release(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.released = append(g.released, id)
}

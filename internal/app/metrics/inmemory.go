package metrics

import (
	"sync"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	LinksCreated      uint64
	LinksDeduplicated uint64
	LinksUpdated      uint64
	LinksDeleted      uint64
	Collisions        map[string]uint64
	Escalations       uint64
	Fallbacks         uint64
	ClicksRecorded    uint64
	ClicksFailed      uint64
	Redirects         map[string]uint64
	CacheHits         uint64
	CacheMisses       uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu sync.Mutex
	s  Snapshot
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{s: Snapshot{
		Collisions: make(map[string]uint64),
		Redirects:  make(map[string]uint64),
	}}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.s
	out.Collisions = make(map[string]uint64, len(m.s.Collisions))
	for k, v := range m.s.Collisions {
		out.Collisions[k] = v
	}
	out.Redirects = make(map[string]uint64, len(m.s.Redirects))
	for k, v := range m.s.Redirects {
		out.Redirects[k] = v
	}
	return out
}

func (m *InMemoryRecorder) update(fn func(s *Snapshot)) {
	m.mu.Lock()
	fn(&m.s)
	m.mu.Unlock()
}

func (m *InMemoryRecorder) IncLinkCreated()      { m.update(func(s *Snapshot) { s.LinksCreated++ }) }
func (m *InMemoryRecorder) IncLinkDeduplicated() { m.update(func(s *Snapshot) { s.LinksDeduplicated++ }) }
func (m *InMemoryRecorder) IncLinkUpdated()      { m.update(func(s *Snapshot) { s.LinksUpdated++ }) }
func (m *InMemoryRecorder) IncLinkDeleted()      { m.update(func(s *Snapshot) { s.LinksDeleted++ }) }

func (m *InMemoryRecorder) IncCodeCollision(stage string) {
	m.update(func(s *Snapshot) { s.Collisions[stage]++ })
}

func (m *InMemoryRecorder) IncCodeEscalation(length int) { m.update(func(s *Snapshot) { s.Escalations++ }) }
func (m *InMemoryRecorder) IncCodeFallback()             { m.update(func(s *Snapshot) { s.Fallbacks++ }) }
func (m *InMemoryRecorder) IncClickRecorded()            { m.update(func(s *Snapshot) { s.ClicksRecorded++ }) }
func (m *InMemoryRecorder) IncClickFailed()              { m.update(func(s *Snapshot) { s.ClicksFailed++ }) }

func (m *InMemoryRecorder) IncRedirect(result string) {
	m.update(func(s *Snapshot) { s.Redirects[result]++ })
}

func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {}
func (m *InMemoryRecorder) IncRedirectCacheHit()                           { m.update(func(s *Snapshot) { s.CacheHits++ }) }
func (m *InMemoryRecorder) IncRedirectCacheMiss()                          { m.update(func(s *Snapshot) { s.CacheMisses++ }) }

package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncLinkCreated()                                {}
func (n *NoopRecorder) IncLinkDeduplicated()                           {}
func (n *NoopRecorder) IncLinkUpdated()                                {}
func (n *NoopRecorder) IncLinkDeleted()                                {}
func (n *NoopRecorder) IncCodeCollision(stage string)                  {}
func (n *NoopRecorder) IncCodeEscalation(length int)                   {}
func (n *NoopRecorder) IncCodeFallback()                               {}
func (n *NoopRecorder) IncClickRecorded()                              {}
func (n *NoopRecorder) IncClickFailed()                                {}
func (n *NoopRecorder) IncRedirect(result string)                      {}
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration) {}
func (n *NoopRecorder) IncRedirectCacheHit()                           {}
func (n *NoopRecorder) IncRedirectCacheMiss()                          {}

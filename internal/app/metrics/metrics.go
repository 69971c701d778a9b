// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// Link lifecycle
	IncLinkCreated()
	IncLinkDeduplicated()
	IncLinkUpdated()
	IncLinkDeleted()

	// Code allocation; stage is "precheck" or "insert"
	IncCodeCollision(stage string)
	IncCodeEscalation(length int)
	IncCodeFallback()

	// Click tracking
	IncClickRecorded()
	IncClickFailed()

	// Redirects; result is "ok", "not_found", "expired" or "error"
	IncRedirect(result string)
	ObserveRedirectDuration(duration time.Duration)
	IncRedirectCacheHit()
	IncRedirectCacheMiss()
}

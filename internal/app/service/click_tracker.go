package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/metrics"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/repository"
	"go.uber.org/zap"
)

// ClickSink accepts visit events from the redirect path.
type ClickSink interface {
	Submit(ctx context.Context, event model.ClickEvent) error
}

// ClickTracker appends clicks to the link's log and bumps its counter in one store call.
type ClickTracker struct {
	links   repository.LinkRepository
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewClickTracker returns a tracker writing through links.
func NewClickTracker(links repository.LinkRepository, recorder metrics.Recorder, logger *zap.Logger) *ClickTracker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickTracker{links: links, metrics: recorder, logger: logger.Named("clicks")}
}

// RecordClick stores a click for code observed at at.
func (t *ClickTracker) RecordClick(ctx context.Context, code, ip, userAgent string, at time.Time) error {
	return t.Record(ctx, model.NewClickEvent(code, ip, userAgent, at))
}

// Record stores event. An event already recorded under the same id is not counted twice.
func (t *ClickTracker) Record(ctx context.Context, event model.ClickEvent) error {
	err := t.links.AppendClick(ctx, event.LinkCode, event.Click())
	switch {
	case err == nil:
		t.metrics.IncClickRecorded()
		t.logger.Debug("click recorded",
			zap.String("code", event.LinkCode),
			zap.String("event_id", event.ID),
		)
		return nil
	case errors.Is(err, repository.ErrDuplicateClick):
		t.logger.Debug("duplicate click ignored", zap.String("event_id", event.ID))
		return nil
	case errors.Is(err, repository.ErrLinkNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("append click: %w", err)
	}
}

// Submit records event synchronously.
func (t *ClickTracker) Submit(ctx context.Context, event model.ClickEvent) error {
	return t.Record(ctx, event)
}

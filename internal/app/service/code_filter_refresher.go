package service

import (
	"context"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/repository"
	"github.com/sifan077/LinkPulse/internal/app/shortcode"
	"go.uber.org/zap"
)

// CodeFilterRefresher periodically loads every stored code into the generator's
// filter so codes issued by other instances also skip the store pre-check.
type CodeFilterRefresher struct {
	logger    *zap.Logger
	links     repository.LinkRepository
	generator *shortcode.Generator
	interval  time.Duration
	stopChan  chan struct{}
}

// NewCodeFilterRefresher creates a refresher running every interval.
func NewCodeFilterRefresher(logger *zap.Logger, links repository.LinkRepository, generator *shortcode.Generator, interval time.Duration) *CodeFilterRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &CodeFilterRefresher{
		logger:    logger.Named("code_filter"),
		links:     links,
		generator: generator,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start loads the filter once, then keeps refreshing it in the background.
func (r *CodeFilterRefresher) Start(ctx context.Context) error {
	if _, err := r.Refresh(ctx); err != nil {
		return err
	}
	go r.run()
	return nil
}

// Stop stops the periodic refresh.
func (r *CodeFilterRefresher) Stop() {
	close(r.stopChan)
}

func (r *CodeFilterRefresher) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.Refresh(context.Background()); err != nil {
				r.logger.Error("failed to refresh code filter", zap.Error(err))
			}
		case <-r.stopChan:
			r.logger.Info("code filter refresher stopped")
			return
		}
	}
}

// Refresh adds every stored code, deleted ones included, to the filter.
func (r *CodeFilterRefresher) Refresh(ctx context.Context) (int, error) {
	codes, err := r.links.ListCodes(ctx)
	if err != nil {
		return 0, err
	}
	r.generator.Remember(codes...)
	r.logger.Debug("code filter refreshed", zap.Int("codes", len(codes)))
	return len(codes), nil
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sortmark/internal/logger"
	"github.com/MrSnakeDoc/sortmark/internal/seed"
)

// CategorySeeder creates missing categories. Existing ones are left alone.
type CategorySeeder interface {
	EnsureCategories(ctx context.Context, names []string) error
}

// SeedReloader keeps the category table in line with the seed file
type SeedReloader struct {
	loader        *seed.Loader
	store         CategorySeeder
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

// NewSeedReloader creates a new seed reloader. A non-positive interval
// disables periodic reloads; manual triggers still work.
func NewSeedReloader(
	seedFile string,
	store CategorySeeder,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SeedReloader {
	return &SeedReloader{
		loader:        seed.NewLoader(seedFile),
		store:         store,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start seeds once, then reloads on every tick or manual trigger
func (sr *SeedReloader) Start(ctx context.Context) error {
	if err := sr.Reload(ctx); err != nil {
		return fmt.Errorf("initial seed failed: %w", err)
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if sr.interval > 0 {
		ticker = time.NewTicker(sr.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload category seed",
						logger.Error(err))
				}
			case <-sr.manualTrigger:
				sr.logger.Info("manual seed reload triggered")
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload category seed",
						logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader. Safe to call more than once.
func (sr *SeedReloader) Stop() {
	sr.stopOnce.Do(func() {
		close(sr.stopCh)
	})
}

// Reload reads the seed file and ensures every listed category exists
func (sr *SeedReloader) Reload(ctx context.Context) error {
	names, err := sr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}

	if err := sr.store.EnsureCategories(ctx, names); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	sr.logger.Info("category seed applied",
		logger.Int("count", len(names)))
	return nil
}

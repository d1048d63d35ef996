package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/sortmark/internal/dify"
	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

// Classifier runs the remote categorize workflow for one bookmark.
type Classifier interface {
	RunCategorize(ctx context.Context, bookmarkJSON string) (*dify.WorkflowResponse, error)
}

// Store persists a fully classified batch atomically.
type Store interface {
	SaveBatch(ctx context.Context, entries []domain.BookmarkEntry) error
}

// LabelCache remembers labels by canonical payload. GetLabel returns "" on a miss.
type LabelCache interface {
	GetLabel(ctx context.Context, canonicalPayload string) (string, error)
	SetLabel(ctx context.Context, canonicalPayload, label string) error
}

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	Workers   int    // concurrent workflow runs per batch (default 1: sequential)
	OutputKey string // default DefaultOutputKey
	LabelKey  string // default DefaultLabelKey
	Cache     LabelCache
	NewID     func() string // bookmark id generator (default uuid.NewString)
}

// Pipeline turns an uploaded export into classified, persisted bookmarks.
type Pipeline struct {
	classifier Classifier
	store      Store
	cache      LabelCache
	log        logger.Logger
	workers    int
	outputKey  string
	labelKey   string
	newID      func() string
}

// New creates a Pipeline.
func New(classifier Classifier, store Store, log logger.Logger, opts Options) *Pipeline {
	p := &Pipeline{
		classifier: classifier,
		store:      store,
		cache:      opts.Cache,
		log:        log,
		workers:    opts.Workers,
		outputKey:  opts.OutputKey,
		labelKey:   opts.LabelKey,
		newID:      opts.NewID,
	}
	if p.workers < 1 {
		p.workers = 1
	}
	if p.outputKey == "" {
		p.outputKey = DefaultOutputKey
	}
	if p.labelKey == "" {
		p.labelKey = DefaultLabelKey
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// Ingest parses raw and processes the resulting batch.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte) ([]domain.CategorizedBookmark, error) {
	tweets, err := ParseBatch(raw)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, tweets)
}

// Process classifies every tweet, then writes the whole batch in one
// transaction. The result keeps input order.
//
// Any classification failure aborts the batch with a *domain.BatchError
// before anything is written.
func (p *Pipeline) Process(ctx context.Context, tweets []domain.Tweet) ([]domain.CategorizedBookmark, error) {
	batchID := ulid.Make().String()
	log := p.log.With(logger.String("batch_id", batchID))
	start := time.Now()

	log.Info("ingesting batch",
		logger.Int("items", len(tweets)),
		logger.Int("workers", p.workers))

	labels, err := p.classifyAll(ctx, tweets, log)
	if err != nil {
		log.Warn("batch aborted during classification", logger.Error(err))
		return nil, err
	}

	entries := make([]domain.BookmarkEntry, len(tweets))
	result := make([]domain.CategorizedBookmark, len(tweets))
	for i, tweet := range tweets {
		entries[i] = domain.BookmarkEntry{
			ID:       p.newID(),
			Category: labels[i],
			Tweet:    tweet,
		}
		result[i] = domain.CategorizedBookmark{
			Category:     labels[i],
			TweetContent: tweet,
		}
	}

	if err := p.store.SaveBatch(ctx, entries); err != nil {
		log.Error("batch aborted during storage", logger.Error(err))
		return nil, err
	}

	log.Info("batch ingested",
		logger.Int("items", len(tweets)),
		logger.Duration("duration", time.Since(start)))
	return result, nil
}

// classifyAll returns one label per tweet, in input order.
// The first failure cancels the remaining workflow runs.
func (p *Pipeline) classifyAll(ctx context.Context, tweets []domain.Tweet, log logger.Logger) ([]string, error) {
	labels := make([]string, len(tweets))
	errs := make([]error, len(tweets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, tweet := range tweets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return err
			}
			label, err := p.classifyOne(gctx, tweet, log)
			if err != nil {
				if gctx.Err() != nil {
					// Another item failed first; this run was cut short.
					err = fmt.Errorf("%w: %w", context.Canceled, err)
				}
				errs[i] = err
				return err
			}
			labels[i] = label
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Report the earliest item that failed on its own, not one cancelled because of it.
	var cancelled *domain.BatchError
	for i, err := range errs {
		if err == nil {
			continue
		}
		be := &domain.BatchError{Index: i + 1, Err: err}
		if !errors.Is(err, context.Canceled) {
			return nil, be
		}
		if cancelled == nil {
			cancelled = be
		}
	}
	if cancelled != nil {
		return nil, cancelled
	}
	return labels, nil
}

func (p *Pipeline) classifyOne(ctx context.Context, tweet domain.Tweet, log logger.Logger) (string, error) {
	payload, err := domain.CanonicalJSON(tweet)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}

	if label := p.cachedLabel(ctx, payload, log); label != "" {
		return label, nil
	}

	resp, err := p.classifier.RunCategorize(ctx, payload)
	if err != nil {
		return "", err
	}
	label, err := ExtractLabel(resp, p.outputKey, p.labelKey)
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		if err := p.cache.SetLabel(ctx, payload, label); err != nil {
			log.Warn("failed to cache label", logger.Error(err))
		}
	}
	return label, nil
}

// cachedLabel returns "" on a miss or when the cache is unavailable.
func (p *Pipeline) cachedLabel(ctx context.Context, payload string, log logger.Logger) string {
	if p.cache == nil {
		return ""
	}
	label, err := p.cache.GetLabel(ctx, payload)
	if err != nil {
		log.Warn("label cache lookup failed, calling workflow", logger.Error(err))
		return ""
	}
	if label != "" {
		log.Debug("label cache hit", logger.String("label", label))
	}
	return label
}

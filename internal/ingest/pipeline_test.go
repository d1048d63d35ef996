package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sortmark/internal/dify"
	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

// fakeClassifier labels a payload by its "id" field.
type fakeClassifier struct {
	labels map[string]string
	fail   map[string]error
	delay  map[string]time.Duration
	calls  atomic.Int32

	mu       sync.Mutex
	payloads []string
}

func (f *fakeClassifier) RunCategorize(ctx context.Context, bookmarkJSON string) (*dify.WorkflowResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.payloads = append(f.payloads, bookmarkJSON)
	f.mu.Unlock()

	var tweet struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(bookmarkJSON), &tweet); err != nil {
		return nil, err
	}

	if d := f.delay[tweet.ID]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", domain.ErrRemoteService, ctx.Err())
		}
	}
	if err := f.fail[tweet.ID]; err != nil {
		return nil, err
	}

	inner, _ := json.Marshal(map[string]string{DefaultLabelKey: f.labels[tweet.ID]})
	raw, _ := json.Marshal(string(inner))
	return &dify.WorkflowResponse{Data: dify.WorkflowData{
		Status:  "succeeded",
		Outputs: map[string]json.RawMessage{DefaultOutputKey: raw},
	}}, nil
}

type fakeStore struct {
	err     error
	batches [][]domain.BookmarkEntry
}

func (s *fakeStore) SaveBatch(_ context.Context, entries []domain.BookmarkEntry) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, entries)
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	labels map[string]string
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{labels: map[string]string{}}
}

func (c *fakeCache) GetLabel(_ context.Context, payload string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.labels[payload], nil
}

func (c *fakeCache) SetLabel(_ context.Context, payload, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels[payload] = label
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("bm-%d", n)
	}
}

func newTestPipeline(c Classifier, s Store, opts Options) *Pipeline {
	if opts.NewID == nil {
		opts.NewID = sequentialIDs()
	}
	return New(c, s, logger.NewNop(), opts)
}

func TestIngestSingleBookmark(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]string{"t1": "Tech"}}
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{})

	got, err := p.Ingest(context.Background(), []byte(`[{"id":"t1","text":"hello"}]`))
	require.NoError(t, err)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"category":"Tech","tweet_content":{"id":"t1","text":"hello"}}]`, string(out))

	require.Len(t, store.batches, 1)
	assert.Equal(t, []domain.BookmarkEntry{{
		ID:       "bm-1",
		Category: "Tech",
		Tweet:    domain.Tweet{"id": "t1", "text": "hello"},
	}}, store.batches[0])

	assert.Equal(t, []string{`{"id":"t1","text":"hello"}`}, classifier.payloads)
}

func TestIngestEmptyBatch(t *testing.T) {
	classifier := &fakeClassifier{}
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{})

	got, err := p.Ingest(context.Background(), []byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, classifier.calls.Load())
}

func TestIngestMalformedInputSkipsClassifier(t *testing.T) {
	classifier := &fakeClassifier{}
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{})

	_, err := p.Ingest(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
	assert.Zero(t, classifier.calls.Load())
	assert.Empty(t, store.batches)
}

func TestProcessTransportErrorAbortsBatch(t *testing.T) {
	classifier := &fakeClassifier{
		labels: map[string]string{"a": "Tech", "c": "News"},
		fail:   map[string]error{"b": fmt.Errorf("%w: connection refused", domain.ErrRemoteService)},
	}
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{})

	_, err := p.Ingest(context.Background(), []byte(`[{"id":"a"},{"id":"b"},{"id":"c"}]`))
	require.Error(t, err)

	var be *domain.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 2, be.Index)
	assert.ErrorIs(t, err, domain.ErrRemoteService)
	assert.Empty(t, store.batches, "nothing may be written when classification fails")
}

func TestProcessUpstreamShapeErrorAbortsBatch(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]string{"a": "Tech", "b": ""}}
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{})

	_, err := p.Ingest(context.Background(), []byte(`[{"id":"a"},{"id":"b"}]`))

	var be *domain.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 2, be.Index)
	assert.ErrorIs(t, err, domain.ErrUpstreamResponse)
	assert.Empty(t, store.batches)
}

func TestProcessStorageErrorIsReturned(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]string{"a": "Tech"}}
	store := &fakeStore{err: fmt.Errorf("%w: disk full", domain.ErrStorage)}
	p := newTestPipeline(classifier, store, Options{})

	_, err := p.Ingest(context.Background(), []byte(`[{"id":"a"}]`))
	assert.ErrorIs(t, err, domain.ErrStorage)

	var be *domain.BatchError
	assert.False(t, errors.As(err, &be))
}

func TestProcessConcurrentKeepsInputOrder(t *testing.T) {
	classifier := &fakeClassifier{
		labels: map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"},
		delay: map[string]time.Duration{
			"a": 40 * time.Millisecond,
			"b": 10 * time.Millisecond,
			"c": 30 * time.Millisecond,
		},
	}
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{Workers: 4})

	got, err := p.Ingest(context.Background(), []byte(`[{"id":"a"},{"id":"b"},{"id":"c"},{"id":"d"}]`))
	require.NoError(t, err)

	require.Len(t, got, 4)
	for i, want := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, want, got[i].Category)
	}
	require.Len(t, store.batches, 1)
	assert.Equal(t, "A", store.batches[0][0].Category)
	assert.Equal(t, "D", store.batches[0][3].Category)
}

func TestProcessConcurrentReportsFailingItem(t *testing.T) {
	classifier := &fakeClassifier{
		labels: map[string]string{"a": "A", "c": "C"},
		delay:  map[string]time.Duration{"a": time.Second},
		fail:   map[string]error{"b": fmt.Errorf("%w: status 500", domain.ErrRemoteService)},
	}
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{Workers: 3})

	_, err := p.Ingest(context.Background(), []byte(`[{"id":"a"},{"id":"b"},{"id":"c"}]`))

	// "a" is still running when "b" fails; it is cancelled, not blamed.
	var be *domain.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 2, be.Index)
	assert.Empty(t, store.batches)
}

func TestProcessCancelledContext(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]string{"a": "Tech"}}
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ingest(ctx, []byte(`[{"id":"a"}]`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.batches)
}

func TestProcessUsesLabelCache(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]string{"a": "Tech", "b": "News"}}
	cache := newFakeCache()
	cache.labels[`{"id":"a"}`] = "Cached"
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{Cache: cache})

	got, err := p.Ingest(context.Background(), []byte(`[{"id":"a"},{"id":"b"}]`))
	require.NoError(t, err)

	assert.Equal(t, "Cached", got[0].Category)
	assert.Equal(t, "News", got[1].Category)
	assert.Equal(t, int32(1), classifier.calls.Load(), "only the miss reaches the workflow")
	assert.Equal(t, "News", cache.labels[`{"id":"b"}`], "misses are written back")
}

func TestProcessCacheFailureFallsBackToWorkflow(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]string{"a": "Tech"}}
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	store := &fakeStore{}
	p := newTestPipeline(classifier, store, Options{Cache: cache})

	got, err := p.Ingest(context.Background(), []byte(`[{"id":"a"}]`))
	require.NoError(t, err)
	assert.Equal(t, "Tech", got[0].Category)
	assert.Equal(t, int32(1), classifier.calls.Load())
}

func TestNewAppliesDefaults(t *testing.T) {
	p := New(&fakeClassifier{}, &fakeStore{}, logger.NewNop(), Options{Workers: -3})

	assert.Equal(t, 1, p.workers)
	assert.Equal(t, DefaultOutputKey, p.outputKey)
	assert.Equal(t, DefaultLabelKey, p.labelKey)
	assert.NotEmpty(t, p.newID())
}

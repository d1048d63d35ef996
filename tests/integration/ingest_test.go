package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrSnakeDoc/sortmark/internal/dify"
	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/ingest"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
	"github.com/MrSnakeDoc/sortmark/internal/store/sqlite"
)

// fakeDify classifies by keyword, the way a prompt-driven workflow would.
func fakeDify(t *testing.T, runs *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runs.Add(1)
		if r.URL.Path != "/workflows/run" || r.Header.Get("Authorization") != "Bearer app-categorize" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Inputs struct {
				BookmarkJSON string `json:"bookmark_json"`
			} `json:"inputs"`
			ResponseMode string `json:"response_mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.ResponseMode != "blocking" {
			t.Errorf("response_mode = %q", req.ResponseMode)
		}

		label := "Other"
		switch {
		case strings.Contains(req.Inputs.BookmarkJSON, "golang"):
			label = "Tech"
		case strings.Contains(req.Inputs.BookmarkJSON, "ラーメン"):
			label = "Food"
		}
		inner, _ := json.Marshal(map[string]string{"分類項目": label})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"workflow_run_id": "run-1",
			"data": map[string]any{
				"status":  "succeeded",
				"outputs": map[string]string{"categorized_bookmark_json": string(inner)},
			},
		})
	}))
}

func TestIngestEndToEnd(t *testing.T) {
	ctx := context.Background()
	var runs atomic.Int32
	ts := fakeDify(t, &runs)
	defer ts.Close()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "sortmark.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	client := dify.New(dify.Options{
		BaseURL:          ts.URL + "/",
		CategorizeAPIKey: "app-categorize",
		User:             "integration",
	})
	pipeline := ingest.New(client, store, logger.NewNop(), ingest.Options{Workers: 3})

	export := `[
		{"id": 1790000000000000001, "text": "golang 1.25 released"},
		{"id": 1790000000000000002, "text": "今日のラーメン"},
		{"id": 1790000000000000003, "text": "weekend plans"},
		{"id": 1790000000000000004, "text": "golang generics tips"}
	]`

	got, err := pipeline.Ingest(ctx, []byte(export))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	wantLabels := []string{"Tech", "Food", "Other", "Tech"}
	if len(got) != len(wantLabels) {
		t.Fatalf("got %d results, want %d", len(got), len(wantLabels))
	}
	for i, want := range wantLabels {
		if got[i].Category != want {
			t.Errorf("result[%d].Category = %q, want %q", i, got[i].Category, want)
		}
	}
	if runs.Load() != 4 {
		t.Errorf("workflow runs = %d, want 4", runs.Load())
	}

	cats, err := store.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("categories = %v, want 3 distinct", cats)
	}

	var total int
	for _, c := range cats {
		id := c.ID
		bookmarks, err := store.ListBookmarks(ctx, &id)
		if err != nil {
			t.Fatalf("ListBookmarks(%d) error = %v", id, err)
		}
		for _, b := range bookmarks {
			if b.Category != c.Name {
				t.Errorf("bookmark %s listed under %q has category %q", b.ID, c.Name, b.Category)
			}
		}
		total += len(bookmarks)
	}
	if total != 4 {
		t.Errorf("bookmarks across categories = %d, want 4", total)
	}

	all, err := store.ListBookmarks(ctx, nil)
	if err != nil {
		t.Fatalf("ListBookmarks(nil) error = %v", err)
	}
	for _, b := range all {
		if _, ok := b.Tweet["id"].(json.Number); !ok {
			t.Errorf("tweet id should survive as an exact number, got %#v", b.Tweet["id"])
		}
	}
}

func TestIngestWorkflowOutageWritesNothing(t *testing.T) {
	ctx := context.Background()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"code":"provider_quota_exceeded"}`)
	}))
	defer ts.Close()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "sortmark.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	pipeline := ingest.New(dify.New(dify.Options{BaseURL: ts.URL}), store, logger.NewNop(), ingest.Options{})

	_, err = pipeline.Ingest(ctx, []byte(`[{"id":"a"},{"id":"b"}]`))

	var be *domain.BatchError
	if !errors.As(err, &be) || be.Index != 1 {
		t.Fatalf("Ingest() error = %v, want BatchError at item 1", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should carry the upstream status: %v", err)
	}

	all, err := store.ListBookmarks(ctx, nil)
	if err != nil {
		t.Fatalf("ListBookmarks() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("stored %d bookmarks after a failed batch", len(all))
	}
}

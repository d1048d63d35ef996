package deps

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

// Store is the read side of the bookmark database plus category creation.
type Store interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	GetOrCreateCategory(ctx context.Context, name string) (int64, error)
	ListBookmarks(ctx context.Context, categoryID *int64) ([]domain.Bookmark, error)
	Ping(ctx context.Context) error
}

// Ingester classifies and stores a batch of bookmarks.
type Ingester interface {
	Ingest(ctx context.Context, raw []byte) ([]domain.CategorizedBookmark, error)
	Process(ctx context.Context, tweets []domain.Tweet) ([]domain.CategorizedBookmark, error)
}

// Converter turns an uploaded CSV export into bookmark objects.
type Converter interface {
	ConvertCSV(ctx context.Context, name, contentType string, r io.Reader) ([]domain.Tweet, error)
}

// XAuth runs the X login and reads the signed-in user's bookmarks.
type XAuth interface {
	LoginURL() string
	Exchange(ctx context.Context, state, code string) (*oauth2.Token, error)
	Bookmarks(ctx context.Context, tok *oauth2.Token) ([]domain.Tweet, error)
}

// LabelCache is the optional classification cache.
type LabelCache interface {
	Ping(ctx context.Context) error
	FlushLabels(ctx context.Context) error
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	AllowedHosts   []string                        // Host headers allowed to reach the API
	AllowedCIDRS   []string                        // IPs allowed to reach /readyz and /reload
	TrustProxy     bool                            // true behind a trusted reverse proxy
	MaxUploadBytes int64                           // multipart upload cap
	RateLimit      func(http.Handler) http.Handler // shared limiter for routes that cost LLM calls
	Store          Store                           // SQLite store
	Ingester       Ingester                        // classification pipeline
	Converter      Converter                       // nil when the CSV workflow is not configured
	XAuth          XAuth                           // nil when X import is not configured
	LabelCache     LabelCache                      // nil when Redis is not configured
	SeedTrigger    chan struct{}                   // nil when no seed file is configured
}

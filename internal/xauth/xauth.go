package xauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
)

const (
	DefaultAuthURL    = "https://twitter.com/i/oauth2/authorize"
	DefaultTokenURL   = "https://api.twitter.com/2/oauth2/token"
	DefaultAPIBaseURL = "https://api.twitter.com"
	DefaultStateTTL   = 10 * time.Minute
	DefaultMaxPages   = 8

	pageSize     = 100
	maxErrorBody = 4 << 10
)

// DefaultScopes are the scopes needed to read the signed-in user's bookmarks.
var DefaultScopes = []string{"bookmark.read", "tweet.read", "users.read", "offline.access"}

// ErrInvalidState is returned when a callback carries an unknown, reused or expired state.
var ErrInvalidState = errors.New("invalid oauth state")

// Options configures the X login flow.
type Options struct {
	ClientID     string
	ClientSecret string // optional; public clients rely on PKCE only
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	StateTTL     time.Duration
	MaxPages     int          // bookmark pages fetched per import
	HTTPClient   *http.Client // used for token exchange and API calls
}

// Flow runs the OAuth 2.0 authorization code flow with PKCE against X and
// reads the bookmarks of the user who completed it.
type Flow struct {
	cfg      *oauth2.Config
	apiBase  string
	maxPages int
	states   *stateStore
	http     *http.Client
}

// New creates a Flow.
func New(opts Options) *Flow {
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	authURL := opts.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	apiBase := opts.APIBaseURL
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	ttl := opts.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	style := oauth2.AuthStyleInParams
	if opts.ClientSecret != "" {
		style = oauth2.AuthStyleInHeader
	}

	return &Flow{
		cfg: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: style,
			},
		},
		apiBase:  strings.TrimRight(apiBase, "/"),
		maxPages: maxPages,
		states:   newStateStore(ttl),
		http:     opts.HTTPClient,
	}
}

// LoginURL starts a login: it remembers a fresh PKCE verifier under a random
// state and returns the X authorize URL to redirect the user to.
func (f *Flow) LoginURL() string {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	f.states.put(state, verifier)
	return f.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades the callback code for a token. The state must come from
// LoginURL and can only be used once.
func (f *Flow) Exchange(ctx context.Context, state, code string) (*oauth2.Token, error) {
	verifier, ok := f.states.take(state)
	if !ok {
		return nil, ErrInvalidState
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrInvalidState)
	}

	tok, err := f.cfg.Exchange(f.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %w", domain.ErrRemoteService, err)
	}
	return tok, nil
}

// Bookmarks returns the bookmarked posts of the token's owner, newest first.
func (f *Flow) Bookmarks(ctx context.Context, tok *oauth2.Token) ([]domain.Tweet, error) {
	hc := f.cfg.Client(f.clientContext(ctx), tok)

	userID, err := f.userID(ctx, hc)
	if err != nil {
		return nil, err
	}
	return f.bookmarks(ctx, hc, userID)
}

func (f *Flow) clientContext(ctx context.Context) context.Context {
	if f.http == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.http)
}

type userResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

func (f *Flow) userID(ctx context.Context, hc *http.Client) (string, error) {
	var out userResponse
	if err := f.get(ctx, hc, f.apiBase+"/2/users/me", &out); err != nil {
		return "", fmt.Errorf("get current user: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("%w: /2/users/me returned no id", domain.ErrUpstreamResponse)
	}
	return out.Data.ID, nil
}

type bookmarksResponse struct {
	Data []json.RawMessage `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

func (f *Flow) bookmarks(ctx context.Context, hc *http.Client, userID string) ([]domain.Tweet, error) {
	var tweets []domain.Tweet
	next := ""

	for page := 0; page < f.maxPages; page++ {
		q := url.Values{}
		q.Set("max_results", fmt.Sprint(pageSize))
		if next != "" {
			q.Set("pagination_token", next)
		}
		endpoint := fmt.Sprintf("%s/2/users/%s/bookmarks?%s", f.apiBase, url.PathEscape(userID), q.Encode())

		var out bookmarksResponse
		if err := f.get(ctx, hc, endpoint, &out); err != nil {
			return nil, fmt.Errorf("get bookmarks: %w", err)
		}
		for _, raw := range out.Data {
			tweet, err := domain.DecodeTweet(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: bookmark entry: %v", domain.ErrUpstreamResponse, err)
			}
			tweets = append(tweets, tweet)
		}

		next = out.Meta.NextToken
		if next == "" {
			break
		}
	}
	return tweets, nil
}

func (f *Flow) get(ctx context.Context, hc *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrRemoteService, err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteService, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", domain.ErrRemoteService, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrUpstreamResponse, err)
	}
	return nil
}

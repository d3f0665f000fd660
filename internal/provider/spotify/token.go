package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"tagmatch/internal/provider/apiclient"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/oauth2"
)

const (
	defaultTokenURL = "https://open.spotify.com/"
	browserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	tokenFetchLimit = 10 * time.Second
)

var accessTokenPattern = regexp.MustCompile(`accessToken":"(.*?)"`)

// webTokenSource scrapes the anonymous bearer token the Spotify web player
// embeds in its landing page.
type webTokenSource struct {
	page     *apiclient.Client
	tokenURL string
}

type sessionData struct {
	AccessToken                      string `json:"accessToken"`
	AccessTokenExpirationTimestampMs int64  `json:"accessTokenExpirationTimestampMs"`
	IsAnonymous                      bool   `json:"isAnonymous"`
}

func (s *webTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenFetchLimit)
	defer cancel()

	body, err := s.page.Do(ctx, http.MethodGet, s.tokenURL, nil, http.Header{"Accept": {"text/html"}})
	if err != nil {
		return nil, fmt.Errorf("failed to load web player: %w", err)
	}
	return parseToken(body)
}

// parseToken reads the session JSON from script#session, falling back to a
// raw scan of the page when the markup changes.
func parseToken(page []byte) (*oauth2.Token, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err == nil {
		raw := strings.TrimSpace(doc.Find("script#session").First().Text())
		var session sessionData
		if raw != "" && json.Unmarshal([]byte(raw), &session) == nil && session.AccessToken != "" {
			tok := &oauth2.Token{AccessToken: session.AccessToken, TokenType: "Bearer"}
			if session.AccessTokenExpirationTimestampMs > 0 {
				tok.Expiry = time.UnixMilli(session.AccessTokenExpirationTimestampMs)
			}
			return tok, nil
		}
	}

	if m := accessTokenPattern.FindSubmatch(page); m != nil && len(m[1]) > 0 {
		return &oauth2.Token{AccessToken: string(m[1]), TokenType: "Bearer"}, nil
	}
	return nil, errors.New("no access token in web player page")
}

// tokenCache hands out the cached token and can drop it after a 401.
type tokenCache struct {
	src oauth2.TokenSource

	mu sync.Mutex
	ts oauth2.TokenSource
}

func newTokenCache(src oauth2.TokenSource) *tokenCache {
	return &tokenCache{src: src, ts: oauth2.ReuseTokenSource(nil, src)}
}

func (c *tokenCache) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	ts := c.ts
	c.mu.Unlock()
	return ts.Token()
}

func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.ts = oauth2.ReuseTokenSource(nil, c.src)
	c.mu.Unlock()
}

// authorize sets the bearer header on every API request.
func (c *tokenCache) authorize(_ context.Context, req *http.Request) error {
	tok, err := c.Token()
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return nil
}

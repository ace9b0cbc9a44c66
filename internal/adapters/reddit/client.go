// Package reddit implements ports.ForumClient over Reddit's OAuth REST API.
//
// Only the handful of endpoints threadmirror needs are covered. Every failure
// that the poll loop should back off on is returned as a *domain.TransportError:
//
//   - network failures                       -> domain.KindRequest
//   - 5xx responses                          -> domain.KindServer
//   - other non-2xx, API errors, bad JSON    -> domain.KindResponse
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
	"github.com/bft-labs/threadmirror/internal/ports"
)

const (
	DefaultAPIURL   = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// refresh this long before the token actually expires
	tokenSlack = time.Minute

	maxErrorBody = 512
)

// Credentials identify the script application and the account it acts for.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	UserAgent    string
}

// Client talks to Reddit on behalf of one account.
type Client struct {
	http     ports.HTTPDoer
	creds    Credentials
	apiURL   string
	tokenURL string
	logger   ports.Logger
	now      func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the OAuth API base URL.
func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = strings.TrimRight(u, "/") }
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(u string) Option {
	return func(c *Client) { c.tokenURL = u }
}

// WithLogger sets the logger used for token refresh messages.
func WithLogger(l ports.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client. httpClient is typically an *http.Client with a timeout.
func New(httpClient ports.HTTPDoer, creds Credentials, opts ...Option) *Client {
	c := &Client{
		http:     httpClient,
		creds:    creds,
		apiURL:   DefaultAPIURL,
		tokenURL: DefaultTokenURL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me returns the authenticated account name.
func (c *Client) Me(ctx context.Context) (string, error) {
	var me struct {
		Name string `json:"name"`
	}
	if err := c.get(ctx, "me", "/api/v1/me", nil, &me); err != nil {
		return "", err
	}
	if me.Name == "" {
		return "", domain.NewTransportError(domain.KindResponse, "me", errors.New("empty account name"))
	}
	return me.Name, nil
}

// NewPosts lists the newest submissions of a community.
func (c *Client) NewPosts(ctx context.Context, community string, limit int) ([]domain.Post, error) {
	q := url.Values{"limit": {fmt.Sprint(limit)}}
	return c.posts(ctx, "new posts", "/r/"+community+"/new", q)
}

// Search runs a restricted-to-community search.
func (c *Client) Search(ctx context.Context, community, query, sort string, limit int) ([]domain.Post, error) {
	q := url.Values{
		"q":           {query},
		"sort":        {sort},
		"restrict_sr": {"1"},
		"limit":       {fmt.Sprint(limit)},
	}
	return c.posts(ctx, "search", "/r/"+community+"/search", q)
}

// UserSubmissions lists a user's submissions, newest first.
func (c *Client) UserSubmissions(ctx context.Context, user string, limit int) ([]domain.Post, error) {
	q := url.Values{"sort": {"new"}, "limit": {fmt.Sprint(limit)}}
	return c.posts(ctx, "user submissions", "/user/"+user+"/submitted", q)
}

func (c *Client) posts(ctx context.Context, op, path string, q url.Values) ([]domain.Post, error) {
	var l listing
	if err := c.get(ctx, op, path, q, &l); err != nil {
		return nil, err
	}
	out := make([]domain.Post, 0, len(l.Data.Children))
	for _, th := range l.Data.Children {
		if th.Kind != "t3" {
			continue
		}
		var p postData
		if err := json.Unmarshal(th.Data, &p); err != nil {
			return nil, domain.NewTransportError(domain.KindResponse, op, err)
		}
		out = append(out, p.toDomain())
	}
	return out, nil
}

// Reply comments on a post or comment.
func (c *Client) Reply(ctx context.Context, parentFullname, body string) (domain.Comment, error) {
	form := url.Values{
		"api_type": {"json"},
		"thing_id": {parentFullname},
		"text":     {body},
	}
	var resp struct {
		JSON struct {
			Errors [][]interface{} `json:"errors"`
			Data   struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.post(ctx, "reply", "/api/comment", form, &resp); err != nil {
		return domain.Comment{}, err
	}
	if len(resp.JSON.Errors) > 0 {
		return domain.Comment{}, domain.NewTransportError(domain.KindResponse, "reply", fmt.Errorf("api errors: %v", resp.JSON.Errors))
	}
	for _, th := range resp.JSON.Data.Things {
		if th.Kind != "t1" {
			continue
		}
		var cd commentData
		if err := json.Unmarshal(th.Data, &cd); err != nil {
			return domain.Comment{}, domain.NewTransportError(domain.KindResponse, "reply", err)
		}
		return cd.toDomain(), nil
	}
	return domain.Comment{}, domain.NewTransportError(domain.KindResponse, "reply", errors.New("no comment in response"))
}

// Comment re-fetches a comment and its direct replies.
// Reddit needs the submission id to load a comment tree, so the comment's
// link id is resolved first through /api/info.
func (c *Client) Comment(ctx context.Context, commentID string) (domain.Comment, error) {
	var info listing
	q := url.Values{"id": {domain.CommentFullname(commentID)}}
	if err := c.get(ctx, "comment info", "/api/info", q, &info); err != nil {
		return domain.Comment{}, err
	}
	if len(info.Data.Children) == 0 {
		return domain.Comment{}, domain.NewTransportError(domain.KindResponse, "comment info", fmt.Errorf("comment %s not found", commentID))
	}
	var meta commentData
	if err := json.Unmarshal(info.Data.Children[0].Data, &meta); err != nil {
		return domain.Comment{}, domain.NewTransportError(domain.KindResponse, "comment info", err)
	}

	var tree []listing
	path := "/comments/" + domain.StripFullname(meta.LinkID)
	q = url.Values{"comment": {domain.StripFullname(commentID)}, "depth": {"2"}, "limit": {"500"}}
	if err := c.get(ctx, "comment tree", path, q, &tree); err != nil {
		return domain.Comment{}, err
	}
	if len(tree) < 2 || len(tree[1].Data.Children) == 0 {
		return domain.Comment{}, domain.NewTransportError(domain.KindResponse, "comment tree", errors.New("empty comment tree"))
	}
	var cd commentData
	if err := json.Unmarshal(tree[1].Data.Children[0].Data, &cd); err != nil {
		return domain.Comment{}, domain.NewTransportError(domain.KindResponse, "comment tree", err)
	}
	return cd.toDomain(), nil
}

// Remove removes a comment as moderator. Reddit answers 200 for comments
// that are already removed, so repeated calls are harmless.
func (c *Client) Remove(ctx context.Context, commentID string) error {
	form := url.Values{"id": {domain.CommentFullname(commentID)}, "spam": {"false"}}
	return c.post(ctx, "remove", "/api/remove", form, nil)
}

// UnreadMessages lists unread inbox items.
func (c *Client) UnreadMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	var l listing
	q := url.Values{"limit": {fmt.Sprint(limit)}, "mark": {"false"}}
	if err := c.get(ctx, "unread", "/message/unread", q, &l); err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(l.Data.Children))
	for _, th := range l.Data.Children {
		var m messageData
		if err := json.Unmarshal(th.Data, &m); err != nil {
			return nil, domain.NewTransportError(domain.KindResponse, "unread", err)
		}
		out = append(out, m.toDomain(th.Kind))
	}
	return out, nil
}

// MarkRead marks inbox items read.
func (c *Client) MarkRead(ctx context.Context, fullnames ...string) error {
	if len(fullnames) == 0 {
		return nil
	}
	form := url.Values{"id": {strings.Join(fullnames, ",")}}
	return c.post(ctx, "mark read", "/api/read_message", form, nil)
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out interface{}) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("raw_json", "1")
	return c.do(ctx, op, http.MethodGet, path+"?"+q.Encode(), nil, out)
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values, out interface{}) error {
	return c.do(ctx, op, http.MethodPost, path, form, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewTransportError(domain.KindRequest, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidate()
	}
	if err := statusError(op, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewTransportError(domain.KindResponse, op, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// statusError maps a non-2xx response onto the transport taxonomy.
func statusError(op string, resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	if resp.StatusCode >= 500 {
		return domain.NewTransportError(domain.KindServer, op, err)
	}
	return domain.NewTransportError(domain.KindResponse, op, err)
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// accessToken returns a cached token, refreshing it when close to expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry.Add(-tokenSlack)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.creds.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token: create request: %w", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("User-Agent", c.creds.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", domain.NewTransportError(domain.KindRequest, "token", err)
	}
	defer resp.Body.Close()
	if err := statusError("token", resp); err != nil {
		return "", err
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", domain.NewTransportError(domain.KindResponse, "token", fmt.Errorf("decode: %w", err))
	}
	if tok.AccessToken == "" {
		return "", domain.NewTransportError(domain.KindResponse, "token", fmt.Errorf("no access token (error %q)", tok.Error))
	}

	c.token = tok.AccessToken
	c.expiry = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if c.logger != nil {
		c.logger.Debug("refreshed access token", ports.Time("expires", c.expiry))
	}
	return c.token, nil
}

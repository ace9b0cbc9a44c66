package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
)

// fakeReddit serves the token endpoint and a table of API routes.
type fakeReddit struct {
	mu         sync.Mutex
	tokenCalls int
	requests   []*http.Request
	forms      []string
	routes     map[string]http.HandlerFunc
}

func newFakeReddit(t *testing.T, routes map[string]http.HandlerFunc) (*fakeReddit, *Client) {
	t.Helper()
	f := &fakeReddit{routes: routes}
	ts := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(ts.Close)

	c := New(ts.Client(), Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		UserAgent:    "linux:threadmirror:test",
	}, WithAPIURL(ts.URL), WithTokenURL(ts.URL+"/api/v1/access_token"))
	return f, c
}

func (f *fakeReddit) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	if r.URL.Path == "/api/v1/access_token" {
		f.tokenCalls++
		f.mu.Unlock()
		user, pass, _ := r.BasicAuth()
		if user != "id" || pass != "secret" || r.PostForm.Get("refresh_token") != "refresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		return
	}
	f.requests = append(f.requests, r)
	f.forms = append(f.forms, r.PostForm.Encode())
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(body)) }
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(code) }
}

func TestClient_NewPostsAndTokenCaching(t *testing.T) {
	f, c := newFakeReddit(t, map[string]http.HandlerFunc{
		"GET /r/neoliberal+metaNL/new": respond(`{"kind":"Listing","data":{"children":[
			{"kind":"t3","data":{"id":"p2","title":"Second","author":"bob","subreddit":"metaNL","permalink":"/r/metaNL/comments/p2/second/","created_utc":1700000100.5}},
			{"kind":"t3","data":{"id":"p1","title":"First","author":"amy","subreddit":"neoliberal","permalink":"/r/neoliberal/comments/p1/first/","created_utc":1700000000}}
		]}}`),
	})
	ctx := context.Background()

	posts, err := c.NewPosts(ctx, "neoliberal+metaNL", 25)
	if err != nil {
		t.Fatalf("NewPosts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != "p2" || posts[0].Community != "metaNL" || posts[0].Title != "Second" {
		t.Errorf("posts[0] = %+v", posts[0])
	}
	if want := time.Unix(1700000100, 5e8).UTC(); !posts[0].CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", posts[0].CreatedAt, want)
	}

	if _, err := c.NewPosts(ctx, "neoliberal+metaNL", 25); err != nil {
		t.Fatal(err)
	}
	if f.tokenCalls != 1 {
		t.Errorf("token fetched %d times, want 1", f.tokenCalls)
	}
	if q := f.requests[0].URL.Query(); q.Get("limit") != "25" || q.Get("raw_json") != "1" {
		t.Errorf("query = %v", q)
	}
	if ua := f.requests[0].Header.Get("User-Agent"); ua != "linux:threadmirror:test" {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestClient_TokenRefreshNearExpiry(t *testing.T) {
	f, c := newFakeReddit(t, map[string]http.HandlerFunc{
		"GET /api/v1/me": respond(`{"name":"MirrorBot"}`),
	})
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := c.Me(ctx); err != nil {
		t.Fatal(err)
	}
	now = now.Add(59*time.Minute + 30*time.Second)
	name, err := c.Me(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if name != "MirrorBot" {
		t.Errorf("Me() = %q", name)
	}
	if f.tokenCalls != 2 {
		t.Errorf("token fetched %d times, want 2", f.tokenCalls)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    domain.TransportKind
	}{
		{"server error", status(http.StatusServiceUnavailable), domain.KindServer},
		{"bad gateway", status(http.StatusBadGateway), domain.KindServer},
		{"rate limited", status(http.StatusTooManyRequests), domain.KindResponse},
		{"forbidden", status(http.StatusForbidden), domain.KindResponse},
		{"malformed", respond(`<html>oops`), domain.KindResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newFakeReddit(t, map[string]http.HandlerFunc{
				"GET /user/MirrorBot/submitted": tt.handler,
			})
			_, err := c.UserSubmissions(context.Background(), "MirrorBot", 1)
			te, ok := domain.AsTransport(err)
			if !ok {
				t.Fatalf("err = %v, want TransportError", err)
			}
			if te.Kind != tt.want {
				t.Errorf("kind = %v, want %v", te.Kind, tt.want)
			}
		})
	}
}

func TestClient_RequestErrorOnDeadServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	c := New(&http.Client{Timeout: time.Second}, Credentials{}, WithAPIURL(base), WithTokenURL(base+"/token"))
	_, err := c.Me(context.Background())
	te, ok := domain.AsTransport(err)
	if !ok || te.Kind != domain.KindRequest {
		t.Fatalf("err = %v, want request TransportError", err)
	}
}

func TestClient_CanceledContextIsNotTransport(t *testing.T) {
	_, c := newFakeReddit(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Me(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, ok := domain.AsTransport(err); ok {
		t.Error("canceled context reported as transport error")
	}
}

func TestClient_Reply(t *testing.T) {
	f, c := newFakeReddit(t, map[string]http.HandlerFunc{
		"POST /api/comment": respond(`{"json":{"errors":[],"data":{"things":[
			{"kind":"t1","data":{"id":"c9","parent_id":"t3_thread","author":"MirrorBot","body":"hi","created_utc":1700000200}}
		]}}}`),
	})

	got, err := c.Reply(context.Background(), "t3_thread", "hi")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got.ID != "c9" || got.ParentID != "t3_thread" {
		t.Errorf("comment = %+v", got)
	}
	if form := f.forms[0]; !strings.Contains(form, "thing_id=t3_thread") || !strings.Contains(form, "text=hi") {
		t.Errorf("form = %s", form)
	}
}

func TestClient_ReplyAPIError(t *testing.T) {
	_, c := newFakeReddit(t, map[string]http.HandlerFunc{
		"POST /api/comment": respond(`{"json":{"errors":[["RATELIMIT","you are doing that too much","ratelimit"]]}}`),
	})

	_, err := c.Reply(context.Background(), "t3_thread", "hi")
	te, ok := domain.AsTransport(err)
	if !ok || te.Kind != domain.KindResponse {
		t.Fatalf("err = %v, want response TransportError", err)
	}
}

func TestClient_CommentWithReplies(t *testing.T) {
	f, c := newFakeReddit(t, map[string]http.HandlerFunc{
		"GET /api/info": respond(`{"kind":"Listing","data":{"children":[
			{"kind":"t1","data":{"id":"m1","link_id":"t3_thread","author":"MirrorBot","replies":""}}
		]}}`),
		"GET /comments/thread": respond(`[
			{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"thread"}}]}},
			{"kind":"Listing","data":{"children":[{"kind":"t1","data":{
				"id":"m1","parent_id":"t3_thread","author":"MirrorBot","created_utc":1700000000,
				"replies":{"kind":"Listing","data":{"children":[
					{"kind":"t1","data":{"id":"r1","parent_id":"t1_m1","author":"alice","body":"hello"}},
					{"kind":"t1","data":{"id":"r2","parent_id":"t1_m1","author":"[deleted]","body":"[removed]"}},
					{"kind":"t1","data":{"id":"r3","parent_id":"t1_m1","author":"bob","body":"x","banned_by":"AutoModerator"}},
					{"kind":"t1","data":{"id":"r4","parent_id":"t1_m1","author":"carol","body":"y","banned_by":null}},
					{"kind":"more","data":{"children":["r5"]}}
				]}}
			}}]}}
		]`),
	})

	got, err := c.Comment(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if got.ID != "m1" || len(got.Replies) != 4 {
		t.Fatalf("comment = %+v", got)
	}
	wantRemoved := map[string]bool{"r1": false, "r2": true, "r3": true, "r4": false}
	for _, r := range got.Replies {
		if r.Removed != wantRemoved[r.ID] {
			t.Errorf("reply %s Removed = %v, want %v", r.ID, r.Removed, wantRemoved[r.ID])
		}
	}
	if q := f.requests[1].URL.Query(); q.Get("comment") != "m1" {
		t.Errorf("tree query = %v", q)
	}
}

func TestClient_UnreadMessagesAndMarkRead(t *testing.T) {
	f, c := newFakeReddit(t, map[string]http.HandlerFunc{
		"GET /message/unread": respond(`{"kind":"Listing","data":{"children":[
			{"kind":"t1","data":{"id":"r1","name":"t1_r1","parent_id":"t1_m1","author":"alice","was_comment":true,"type":"comment_reply"}},
			{"kind":"t1","data":{"id":"r2","name":"t1_r2","parent_id":"t3_thread","author":"bob","was_comment":true,"type":"post_reply"}},
			{"kind":"t4","data":{"id":"pm","name":"t4_pm","author":"carol","was_comment":false}}
		]}}`),
		"POST /api/read_message": respond(`{}`),
	})
	ctx := context.Background()

	msgs, err := c.UnreadMessages(ctx, 100)
	if err != nil {
		t.Fatalf("UnreadMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if !msgs[0].WasReply || msgs[0].CommentID != "r1" || msgs[0].ParentID != "t1_m1" || msgs[0].ID != "t1_r1" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].WasReply || msgs[2].WasReply {
		t.Error("non comment replies flagged as replies")
	}

	if err := c.MarkRead(ctx, "t1_r1", "t1_r9"); err != nil {
		t.Fatal(err)
	}
	if form := f.forms[1]; !strings.Contains(form, "id=t1_r1%2Ct1_r9") {
		t.Errorf("form = %s", form)
	}
	if err := c.MarkRead(ctx); err != nil || len(f.requests) != 2 {
		t.Error("MarkRead with no ids should not call the API")
	}
}

func TestClient_RemoveSendsFullname(t *testing.T) {
	f, c := newFakeReddit(t, map[string]http.HandlerFunc{
		"POST /api/remove": respond(`{}`),
	})
	if err := c.Remove(context.Background(), "r1"); err != nil {
		t.Fatal(err)
	}
	if form := f.forms[0]; !strings.Contains(form, "id=t1_r1") || !strings.Contains(form, "spam=false") {
		t.Errorf("form = %s", form)
	}
}

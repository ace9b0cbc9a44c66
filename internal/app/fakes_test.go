package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
	"github.com/bft-labs/threadmirror/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// fakeForum is an in-memory ports.ForumClient.
type fakeForum struct {
	mu sync.Mutex

	me          string
	newPosts    [][]domain.Post // one entry per NewPosts call; last one repeats
	newPostsErr []error
	searchPosts []domain.Post
	userPosts   []domain.Post
	comments    map[string]domain.Comment
	inbox       []domain.Message

	replyErrs  []error // consumed one per Reply call before replyErr applies
	replyErr   error
	removeErr  map[string]error
	commentErr error

	newPostsCalls int
	searchCalls   int
	userCalls     int
	replies       []fakeReply
	removed       []string
	marked        []string
	nextComment   int
	now           time.Time
}

type fakeReply struct {
	parent string
	body   string
}

func newFakeForum() *fakeForum {
	return &fakeForum{
		me:        "MirrorBot",
		comments:  map[string]domain.Comment{},
		removeErr: map[string]error{},
		now:       time.Now(),
	}
}

func (f *fakeForum) Me(ctx context.Context) (string, error) {
	return f.me, nil
}

func (f *fakeForum) NewPosts(ctx context.Context, community string, limit int) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.newPostsCalls
	f.newPostsCalls++
	if i < len(f.newPostsErr) && f.newPostsErr[i] != nil {
		return nil, f.newPostsErr[i]
	}
	if len(f.newPosts) == 0 {
		return nil, nil
	}
	if i >= len(f.newPosts) {
		i = len(f.newPosts) - 1
	}
	return append([]domain.Post(nil), f.newPosts[i]...), nil
}

func (f *fakeForum) Search(ctx context.Context, community, query, sort string, limit int) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return f.searchPosts, nil
}

func (f *fakeForum) UserSubmissions(ctx context.Context, user string, limit int) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if len(f.userPosts) > limit {
		return f.userPosts[:limit], nil
	}
	return f.userPosts, nil
}

func (f *fakeForum) Reply(ctx context.Context, parentFullname, body string) (domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replyErrs) > 0 {
		err := f.replyErrs[0]
		f.replyErrs = f.replyErrs[1:]
		if err != nil {
			return domain.Comment{}, err
		}
	}
	if f.replyErr != nil {
		return domain.Comment{}, f.replyErr
	}
	f.replies = append(f.replies, fakeReply{parent: parentFullname, body: body})
	f.nextComment++
	c := domain.Comment{
		ID:        fmt.Sprintf("c%d", f.nextComment),
		ParentID:  parentFullname,
		Author:    f.me,
		Body:      body,
		CreatedAt: f.now,
	}
	f.comments[c.ID] = c
	return c, nil
}

func (f *fakeForum) Comment(ctx context.Context, commentID string) (domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentErr != nil {
		return domain.Comment{}, f.commentErr
	}
	c, ok := f.comments[commentID]
	if !ok {
		return domain.Comment{}, domain.NewTransportError(domain.KindResponse, "comment", errors.New("not found"))
	}
	return c, nil
}

func (f *fakeForum) Remove(ctx context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[commentID]; err != nil {
		return err
	}
	f.removed = append(f.removed, commentID)
	return nil
}

func (f *fakeForum) UnreadMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inbox, nil
}

func (f *fakeForum) MarkRead(ctx context.Context, fullnames ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, fullnames...)
	return nil
}

func (f *fakeForum) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

// memRepo is an in-memory ports.PairRepository.
type memRepo struct {
	mu      sync.Mutex
	image   []domain.TrackedPair
	loadErr error
	saveErr error
	saves   int
}

func (r *memRepo) Load(ctx context.Context, capacity int) (*domain.PairStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return domain.NewPairStore(capacity), r.loadErr
	}
	return domain.RestorePairStore(capacity, r.image), nil
}

func (r *memRepo) Save(ctx context.Context, store *domain.PairStore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.image = store.Snapshot()
	store.MarkClean()
	return nil
}

func (r *memRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func post(id string, created time.Time) domain.Post {
	return domain.Post{
		ID:        id,
		Title:     "Post " + id,
		Author:    "someone",
		Community: "neoliberal",
		Permalink: "/r/neoliberal/comments/" + id + "/",
		CreatedAt: created,
	}
}

func thread(id string) domain.Post {
	return domain.Post{ID: id, Title: DefaultMarker, Author: "MirrorBot", Community: "neoliberal"}
}

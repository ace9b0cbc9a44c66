package app

import (
	"container/list"
	"context"

	"github.com/bft-labs/threadmirror/internal/domain"
	"github.com/bft-labs/threadmirror/internal/ports"
)

// DefaultStreamLimit is how many of the newest posts each stream poll requests.
const DefaultStreamLimit = 100

// Stream turns the community's /new listing into batches of unseen posts.
// Each Next call makes one request and returns the posts not yet
// acknowledged, oldest first. An empty batch means "nothing new yet"; the
// caller moves on instead of blocking.
type Stream struct {
	client    ports.ForumClient
	community string
	limit     int
	seen      *seenSet
}

// NewStream creates a stream over community.
func NewStream(client ports.ForumClient, community string, limit int) *Stream {
	if limit <= 0 {
		limit = DefaultStreamLimit
	}
	return &Stream{
		client:    client,
		community: community,
		limit:     limit,
		// a bit more than a few pages so reordering near the page edge doesn't re-yield
		seen: newSeenSet(3*limit + 1),
	}
}

// Next returns the next batch of unacknowledged posts, oldest first.
func (s *Stream) Next(ctx context.Context) ([]domain.Post, error) {
	posts, err := s.client.NewPosts(ctx, s.community, s.limit)
	if err != nil {
		return nil, err
	}
	batch := make([]domain.Post, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		if s.seen.Has(posts[i].ID) {
			continue
		}
		batch = append(batch, posts[i])
	}
	return batch, nil
}

// Ack marks a post as handled; Next no longer returns it.
func (s *Stream) Ack(id string) {
	s.seen.Add(id)
}

// seenSet is a size-bounded set with FIFO eviction.
type seenSet struct {
	cap int
	ll  *list.List
	m   map[string]*list.Element
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{cap: capacity, ll: list.New(), m: make(map[string]*list.Element, capacity)}
}

// Has reports whether k is present.
func (s *seenSet) Has(k string) bool {
	_, ok := s.m[k]
	return ok
}

// Add inserts k; returns true if it was already present.
func (s *seenSet) Add(k string) bool {
	if _, ok := s.m[k]; ok {
		return true
	}
	s.m[k] = s.ll.PushFront(k)
	if s.ll.Len() > s.cap {
		tail := s.ll.Back()
		s.ll.Remove(tail)
		delete(s.m, tail.Value.(string))
	}
	return false
}

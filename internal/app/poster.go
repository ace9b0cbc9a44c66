package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bft-labs/threadmirror/internal/domain"
	"github.com/bft-labs/threadmirror/internal/ports"
)

// Thread location strategies.
const (
	// ThreadStrategySelf uses the service account's newest submission.
	ThreadStrategySelf = "self"
	// ThreadStrategySearch searches the community for the marker title.
	ThreadStrategySearch = "search"
)

// Defaults for mirror comments.
const (
	DefaultMarker = "Discussion Thread"
	DefaultNotice = "^(Replies to this comment will be removed. Discuss in the linked post.)"

	searchLimit = 25
)

// PosterConfig configures a Poster.
type PosterConfig struct {
	Community string
	Account   string
	Strategy  string
	Marker    string
	Notice    string
}

// Poster mirrors new posts as replies in the aggregation thread.
// The located thread is cached until Forget is called, so a batch of posts
// costs one lookup.
type Poster struct {
	client ports.ForumClient
	cfg    PosterConfig
	thread *domain.Thread
}

// NewPoster creates a Poster, filling empty config fields with defaults.
func NewPoster(client ports.ForumClient, cfg PosterConfig) *Poster {
	if cfg.Strategy == "" {
		cfg.Strategy = ThreadStrategySelf
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	if cfg.Notice == "" {
		cfg.Notice = DefaultNotice
	}
	return &Poster{client: client, cfg: cfg}
}

// LocateTarget resolves the aggregation thread.
// Returns domain.ErrThreadNotFound when no candidate exists.
func (p *Poster) LocateTarget(ctx context.Context) (domain.Thread, error) {
	if p.thread != nil {
		return *p.thread, nil
	}

	var (
		posts []domain.Post
		err   error
	)
	switch p.cfg.Strategy {
	case ThreadStrategySearch:
		posts, err = p.client.Search(ctx, p.cfg.Community, p.cfg.Marker, "new", searchLimit)
	default:
		posts, err = p.client.UserSubmissions(ctx, p.cfg.Account, 1)
	}
	if err != nil {
		return domain.Thread{}, err
	}

	for _, post := range posts {
		if !domain.SameUser(post.Author, p.cfg.Account) {
			continue
		}
		if p.cfg.Strategy == ThreadStrategySearch && !strings.EqualFold(strings.TrimSpace(post.Title), p.cfg.Marker) {
			continue
		}
		th := post
		p.thread = &th
		return th, nil
	}
	return domain.Thread{}, domain.ErrThreadNotFound
}

// Current returns the cached thread, if one was located since the last Forget.
func (p *Poster) Current() (domain.Thread, bool) {
	if p.thread == nil {
		return domain.Thread{}, false
	}
	return *p.thread, true
}

// Forget drops the cached thread so the next post re-locates it.
func (p *Poster) Forget() {
	p.thread = nil
}

// Marker returns the aggregation thread title.
func (p *Poster) Marker() string {
	return p.cfg.Marker
}

// PostMirror replies to the aggregation thread with a link to post.
// On domain.ErrThreadNotFound the post is skipped; the caller does not retry.
func (p *Poster) PostMirror(ctx context.Context, post domain.Post) (domain.TrackedPair, error) {
	thread, err := p.LocateTarget(ctx)
	if err != nil {
		return domain.TrackedPair{}, err
	}

	c, err := p.client.Reply(ctx, domain.PostPrefix+thread.ID, p.Body(post))
	if err != nil {
		return domain.TrackedPair{}, fmt.Errorf("mirror %s: %w", post.ID, err)
	}
	if c.ID == "" {
		return domain.TrackedPair{}, fmt.Errorf("mirror %s: %w", post.ID, errors.New("reply returned no comment id"))
	}
	return domain.TrackedPair{SourceID: post.ID, MirrorID: c.ID, MirroredAt: c.CreatedAt}, nil
}

// Body formats the two-part mirror comment: a link line and the removal notice.
func (p *Poster) Body(post domain.Post) string {
	community := post.Community
	if community == "" {
		community = p.cfg.Community
	}
	link := fmt.Sprintf("New Post in [/new](/r/%s/new): [%s](%s)", community, escapeLinkText(post.Title), post.Permalink)
	return link + "\n\n" + p.cfg.Notice
}

var linkTextEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`)

func escapeLinkText(s string) string {
	return linkTextEscaper.Replace(s)
}

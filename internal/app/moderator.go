package app

import (
	"context"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
	"github.com/bft-labs/threadmirror/internal/ports"
)

// Moderation strategies.
const (
	// ModerationInbox removes replies found through unread inbox notifications.
	ModerationInbox = "inbox"
	// ModerationSweep re-fetches every tracked mirror and removes its replies.
	ModerationSweep = "sweep"
)

// Moderation defaults.
const (
	DefaultMaxAge = 24 * time.Hour
	inboxLimit    = 100
)

// ModeratorConfig configures a Moderator.
type ModeratorConfig struct {
	Account  string
	Strategy string
	MaxAge   time.Duration
}

// Moderator removes third-party replies to mirror comments and stops
// tracking mirrors once they are old.
type Moderator struct {
	client ports.ForumClient
	cfg    ModeratorConfig
	logger ports.Logger
	now    func() time.Time
}

// NewModerator creates a Moderator, filling empty config fields with defaults.
func NewModerator(client ports.ForumClient, cfg ModeratorConfig, logger ports.Logger) *Moderator {
	if cfg.Strategy == "" {
		cfg.Strategy = ModerationInbox
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	return &Moderator{client: client, cfg: cfg, logger: logger, now: time.Now}
}

// Sweep removes every reply to a tracked mirror not written by the service
// account. Returns the number of removals made before any error.
func (m *Moderator) Sweep(ctx context.Context, store *domain.PairStore) (int, error) {
	if m.cfg.Strategy == ModerationSweep {
		return m.sweepTracked(ctx, store)
	}
	return m.sweepInbox(ctx, store)
}

// sweepTracked re-fetches each mirror comment and removes its foreign replies.
// A mirror that fails with a response error is skipped.
func (m *Moderator) sweepTracked(ctx context.Context, store *domain.PairStore) (int, error) {
	removed := 0
	for _, pair := range store.Snapshot() {
		c, err := m.client.Comment(ctx, pair.MirrorID)
		if err != nil {
			if m.skippable(err) {
				m.logger.Warn("could not fetch mirror, skipping",
					ports.String("mirror", pair.MirrorID),
					ports.Err(err))
				continue
			}
			return removed, err
		}
		for _, r := range c.Replies {
			if r.Removed || domain.SameUser(r.Author, m.cfg.Account) {
				continue
			}
			if err := m.client.Remove(ctx, r.ID); err != nil {
				return removed, err
			}
			removed++
			m.logger.Info("removed reply",
				ports.String("reply", r.ID),
				ports.String("mirror", pair.MirrorID),
				ports.String("author", r.Author))
		}
	}
	return removed, nil
}

// sweepInbox handles unread reply notifications whose parent is a tracked
// mirror. Handled notifications are marked read; others are left alone.
func (m *Moderator) sweepInbox(ctx context.Context, store *domain.PairStore) (int, error) {
	msgs, err := m.client.UnreadMessages(ctx, inboxLimit)
	if err != nil {
		return 0, err
	}
	tracked := store.MirrorIDs()

	var (
		read     []string
		removed  int
		sweepErr error
	)
	for _, msg := range msgs {
		if !msg.WasReply {
			continue
		}
		parent := domain.StripFullname(msg.ParentID)
		if _, ok := tracked[parent]; !ok {
			continue
		}
		// notifications carry no removal state; Remove treats an already
		// removed reply as success
		if !domain.SameUser(msg.Author, m.cfg.Account) {
			if err := m.client.Remove(ctx, msg.CommentID); err != nil {
				sweepErr = err
				break
			}
			removed++
			m.logger.Info("removed reply",
				ports.String("reply", msg.CommentID),
				ports.String("mirror", parent),
				ports.String("author", msg.Author))
		}
		read = append(read, msg.ID)
	}

	if len(read) > 0 {
		if err := m.client.MarkRead(ctx, read...); err != nil && sweepErr == nil {
			sweepErr = err
		}
	}
	return removed, sweepErr
}

// PruneStale stops tracking mirrors older than the configured max age.
// Pairs without a recorded mirror time are resolved by fetching the comment.
// Pairs whose comment cannot be fetched are kept.
// The comments themselves are left in place.
func (m *Moderator) PruneStale(ctx context.Context, store *domain.PairStore) (int, error) {
	cutoff := m.now().Add(-m.cfg.MaxAge)

	var fetchErr error
	n := store.EvictIf(func(p domain.TrackedPair) bool {
		at := p.MirroredAt
		if at.IsZero() {
			if fetchErr != nil {
				return false
			}
			c, err := m.client.Comment(ctx, p.MirrorID)
			if err != nil {
				if m.skippable(err) {
					m.logger.Warn("could not fetch mirror age, keeping pair",
						ports.String("mirror", p.MirrorID),
						ports.Err(err))
					return false
				}
				fetchErr = err
				return false
			}
			at = c.CreatedAt
		}
		return at.Before(cutoff)
	})
	return n, fetchErr
}

// skippable reports whether a failed fetch of one mirror should be skipped
// rather than abort the pass: only response errors (missing or malformed
// comment) qualify.
func (m *Moderator) skippable(err error) bool {
	te, ok := domain.AsTransport(err)
	return ok && te.Kind == domain.KindResponse
}

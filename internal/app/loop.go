package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
	"github.com/bft-labs/threadmirror/internal/ports"
)

// DefaultCheckpointInterval is how often a changed store is saved while running.
const DefaultCheckpointInterval = 5 * time.Minute

// LoopConfig contains configuration for the poll loop.
type LoopConfig struct {
	Account            string
	Backoff            Backoff
	CheckpointInterval time.Duration
	Once               bool
}

// Loop is the poll loop: each iteration ingests one stream batch, then
// moderates tracked mirrors, then sleeps.
type Loop struct {
	config    LoopConfig
	stream    *Stream
	poster    *Poster
	moderator *Moderator
	store     *domain.PairStore
	repo      ports.PairRepository
	filters   *FilterSet
	clock     time.Time
	logger    ports.Logger

	sleep          func(ctx context.Context, d time.Duration) error
	now            func() time.Time
	lastCheckpoint time.Time
}

// NewLoop creates a poll loop. clock is the service start time; posts created
// at or before it are never mirrored.
func NewLoop(
	config LoopConfig,
	stream *Stream,
	poster *Poster,
	moderator *Moderator,
	store *domain.PairStore,
	repo ports.PairRepository,
	filters *FilterSet,
	clock time.Time,
	logger ports.Logger,
) *Loop {
	return &Loop{
		config:         config,
		stream:         stream,
		poster:         poster,
		moderator:      moderator,
		store:          store,
		repo:           repo,
		filters:        filters,
		clock:          clock,
		logger:         logger,
		sleep:          sleepContext,
		now:            time.Now,
		lastCheckpoint: clock,
	}
}

// Run executes iterations until ctx is canceled or an unclassified error
// occurs. Transport errors only change the delay before the next iteration.
func (l *Loop) Run(ctx context.Context) error {
	for {
		err := l.iterate(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := l.config.Backoff.Delay(err)
		if err != nil {
			te, ok := domain.AsTransport(err)
			if !ok {
				return err
			}
			l.logger.Warn("forum unavailable, backing off",
				ports.String("kind", te.Kind.String()),
				ports.String("op", te.Op),
				ports.Duration("delay", delay),
				ports.Err(err))
		}

		l.checkpoint(ctx)

		if l.config.Once {
			return err
		}
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// iterate runs the ingest phase then the moderation phase.
// A transport error aborts the remaining work of the iteration.
func (l *Loop) iterate(ctx context.Context) error {
	if err := l.ingest(ctx); err != nil {
		return err
	}
	return l.moderate(ctx)
}

func (l *Loop) ingest(ctx context.Context) error {
	l.poster.Forget()

	posts, err := l.stream.Next(ctx)
	if err != nil {
		return err
	}

	for _, post := range posts {
		if err := l.handle(ctx, post); err != nil {
			return err
		}
		l.stream.Ack(post.ID)
	}
	return nil
}

// handle mirrors post unless it is skipped. A returned error leaves the post
// unacknowledged so the stream yields it again.
func (l *Loop) handle(ctx context.Context, post domain.Post) error {
	if !post.CreatedAt.After(l.clock) {
		l.logger.Debug("skipping post older than service start", ports.String("post", post.ID))
		return nil
	}
	if l.store.ContainsSource(post.ID) {
		l.logger.Debug("skipping mirrored post", ports.String("post", post.ID))
		return nil
	}
	if l.excluded(post) {
		l.logger.Debug("skipping excluded post",
			ports.String("post", post.ID),
			ports.String("title", post.Title))
		return nil
	}

	pair, err := l.poster.PostMirror(ctx, post)
	if errors.Is(err, domain.ErrThreadNotFound) {
		l.logger.Error("aggregation thread not found, post not mirrored",
			ports.String("post", post.ID),
			ports.String("marker", l.poster.Marker()))
		return nil
	}
	if err != nil {
		return err
	}

	l.store.Append(pair)
	l.logger.Info("mirrored post",
		ports.String("post", post.ID),
		ports.String("mirror", pair.MirrorID),
		ports.String("community", post.Community),
		ports.Int("tracked", l.store.Len()))
	return nil
}

func (l *Loop) moderate(ctx context.Context) error {
	removed, sweepErr := l.moderator.Sweep(ctx, l.store)
	if removed > 0 {
		l.logger.Info("sweep complete", ports.Int("removed", removed))
	}

	// prune even after a failed sweep
	pruned, pruneErr := l.moderator.PruneStale(ctx, l.store)
	if pruned > 0 {
		l.logger.Info("stopped tracking stale mirrors",
			ports.Int("pruned", pruned),
			ports.Int("tracked", l.store.Len()))
	}
	if sweepErr != nil {
		return sweepErr
	}
	return pruneErr
}

// excluded reports whether post must never be mirrored. The aggregation
// thread (and anything titled like it) is never mirrored into itself.
func (l *Loop) excluded(post domain.Post) bool {
	if th, ok := l.poster.Current(); ok && th.ID == post.ID {
		return true
	}
	if domain.SameUser(post.Author, l.config.Account) {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(post.Title), l.poster.Marker()) {
		return true
	}
	if fs := l.filters.Load(); fs.Match(post.Title) {
		return true
	}
	return false
}

// checkpoint saves the store when it changed and the interval has passed.
func (l *Loop) checkpoint(ctx context.Context) {
	if l.repo == nil || l.config.CheckpointInterval <= 0 || !l.store.Dirty() {
		return
	}
	now := l.now()
	if now.Sub(l.lastCheckpoint) < l.config.CheckpointInterval {
		return
	}
	l.lastCheckpoint = now
	if err := l.repo.Save(ctx, l.store); err != nil {
		l.logger.Warn("checkpoint failed", ports.Err(err))
		return
	}
	l.logger.Debug("checkpoint saved", ports.Int("tracked", l.store.Len()))
}

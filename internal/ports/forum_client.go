package ports

import (
	"context"

	"github.com/bft-labs/threadmirror/internal/domain"
)

// ForumClient is the capability the core consumes from the remote forum.
// Authentication and transport are the implementation's concern.
//
// Failures the poll loop should back off on are returned as
// *domain.TransportError. Every method returns immutable snapshots.
type ForumClient interface {
	// Me returns the name of the authenticated service account.
	Me(ctx context.Context) (string, error)

	// NewPosts returns up to limit of the newest posts in community, newest first.
	// community may join several names with "+".
	NewPosts(ctx context.Context, community string, limit int) ([]domain.Post, error)

	// Search returns posts in community matching query, ordered by sort ("new", "relevance", ...).
	Search(ctx context.Context, community, query, sort string, limit int) ([]domain.Post, error)

	// UserSubmissions returns the user's most recent submissions, newest first.
	UserSubmissions(ctx context.Context, user string, limit int) ([]domain.Post, error)

	// Reply posts body as a reply to a post or comment fullname and returns the new comment.
	Reply(ctx context.Context, parentFullname, body string) (domain.Comment, error)

	// Comment re-fetches a comment by id, including its direct replies.
	Comment(ctx context.Context, commentID string) (domain.Comment, error)

	// Remove removes a comment as moderator. Removing an already removed
	// comment is not an error.
	Remove(ctx context.Context, commentID string) error

	// UnreadMessages lists the account's unread inbox.
	UnreadMessages(ctx context.Context, limit int) ([]domain.Message, error)

	// MarkRead marks inbox messages (by fullname) as read.
	MarkRead(ctx context.Context, fullnames ...string) error
}

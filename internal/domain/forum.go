package domain

import (
	"strings"
	"time"
)

// Post is a top-level submission.
type Post struct {
	ID        string
	Title     string
	Author    string
	Community string
	Permalink string
	CreatedAt time.Time
}

// Thread is the aggregation thread mirrors are posted into.
type Thread = Post

// Comment is a snapshot of a comment at fetch time.
type Comment struct {
	ID        string
	ParentID  string // fullname, e.g. "t1_abc" or "t3_xyz"
	Author    string
	Body      string
	CreatedAt time.Time
	// Removed is true when a moderator has already removed the comment.
	Removed bool
	Replies []Comment
}

// Message is an inbox notification.
type Message struct {
	ID        string // fullname, used to mark the message read
	CommentID string // id of the reply that triggered the notification, if any
	ParentID  string // fullname of the comment that was replied to
	Author    string
	WasReply  bool
	CreatedAt time.Time
}

// Fullname prefixes used by the forum for object kinds.
const (
	CommentPrefix = "t1_"
	PostPrefix    = "t3_"
)

// CommentFullname returns the fullname of a comment id.
func CommentFullname(id string) string {
	if strings.HasPrefix(id, CommentPrefix) {
		return id
	}
	return CommentPrefix + id
}

// StripFullname removes a kind prefix ("t1_", "t3_", ...) from a fullname.
func StripFullname(name string) string {
	if len(name) > 3 && name[0] == 't' && name[2] == '_' {
		return name[3:]
	}
	return name
}

// SameUser compares account names the way the forum does (case-insensitive).
func SameUser(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

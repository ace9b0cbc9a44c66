package reddit

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type postData struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

func (p postData) toDomain() domain.Post {
	return domain.Post{
		ID:        p.ID,
		Title:     p.Title,
		Author:    p.Author,
		Community: p.Subreddit,
		Permalink: p.Permalink,
		CreatedAt: unixTime(p.CreatedUTC),
	}
}

type commentData struct {
	ID         string  `json:"id"`
	ParentID   string  `json:"parent_id"`
	LinkID     string  `json:"link_id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
	Removed    bool    `json:"removed"`
	// string, bool or null depending on who removed the comment
	BannedBy json.RawMessage `json:"banned_by"`
	// "" when there are no replies, a listing otherwise
	Replies json.RawMessage `json:"replies"`
}

func (c commentData) removed() bool {
	if c.Removed || c.Body == "[removed]" {
		return true
	}
	b := bytes.TrimSpace(c.BannedBy)
	return len(b) > 0 && !bytes.Equal(b, []byte("null")) && !bytes.Equal(b, []byte("false"))
}

func (c commentData) toDomain() domain.Comment {
	out := domain.Comment{
		ID:        c.ID,
		ParentID:  c.ParentID,
		Author:    c.Author,
		Body:      c.Body,
		CreatedAt: unixTime(c.CreatedUTC),
		Removed:   c.removed(),
	}
	var replies listing
	if len(c.Replies) > 0 && c.Replies[0] == '{' && json.Unmarshal(c.Replies, &replies) == nil {
		for _, th := range replies.Data.Children {
			if th.Kind != "t1" {
				continue // "more" stubs
			}
			var rd commentData
			if json.Unmarshal(th.Data, &rd) != nil {
				continue
			}
			out.Replies = append(out.Replies, rd.toDomain())
		}
	}
	return out
}

type messageData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ParentID   string  `json:"parent_id"`
	Author     string  `json:"author"`
	WasComment bool    `json:"was_comment"`
	Type       string  `json:"type"`
	CreatedUTC float64 `json:"created_utc"`
}

func (m messageData) toDomain(kind string) domain.Message {
	msg := domain.Message{
		ID:        m.Name,
		ParentID:  m.ParentID,
		Author:    m.Author,
		CreatedAt: unixTime(m.CreatedUTC),
	}
	if kind == "t1" && m.WasComment && m.Type == "comment_reply" {
		msg.WasReply = true
		msg.CommentID = m.ID
	}
	return msg
}

func unixTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

package store

import (
	"encoding/json"
	"time"
)

// PostStatus marks whether a post's comment subtree has been retrieved.
type PostStatus string

const (
	// StatusPending means the post was observed in a list scan but its
	// comments have not been fetched yet
	StatusPending PostStatus = "pending"
	// StatusFetched means a comment-fetch pass completed for the post
	StatusFetched PostStatus = "fetched"
)

// Account is a tracked profile.
type Account struct {
	UID            string `gorm:"primaryKey"`
	Nickname       string
	Description    string
	FollowersCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName overrides the table name
func (Account) TableName() string { return "accounts" }

// Post is one content item belonging to an account. PostedAt holds the
// normalized creation timestamp; CreatedAt is the row's own insert time.
type Post struct {
	MID            string `gorm:"column:mid;primaryKey"`
	UID            string `gorm:"index;not null"`
	Content        string
	PostedAt       string `gorm:"index"`
	RepostsCount   int
	CommentsCount  int
	LikesCount     int
	IsRepost       bool
	RepostUID      string
	RepostNickname string
	RepostContent  string
	Images         string // JSON-encoded remote URLs
	LocalImages    string // JSON-encoded local paths
	VideoURL       string
	SourceURL      string
	// IsLongText marks a truncated list body pending a detail fetch
	IsLongText bool
	Status     PostStatus `gorm:"index;default:pending"`
	CreatedAt  time.Time
}

// TableName overrides the table name
func (Post) TableName() string { return "posts" }

// Comment is one comment on a post. The ReplyTo* columns denormalize the
// parent's author and text so human context survives parent deletion; they
// are never normalized away.
type Comment struct {
	ID            uint   `gorm:"primaryKey"`
	CommentID     string `gorm:"uniqueIndex;not null"`
	MID           string `gorm:"column:mid;index;not null"`
	UID           string
	Nickname      string
	Content       string
	PostedAt      string
	LikesCount    int `gorm:"index"`
	IsAuthorReply bool

	ReplyToCommentID string
	ReplyToUID       string
	ReplyToNickname  string
	ReplyToContent   string

	Images      string
	LocalImages string
	CreatedAt   time.Time
}

// TableName overrides the table name
func (Comment) TableName() string { return "comments" }

// CrawlCursor is the oldest-seen position per account for resuming the
// backward history scan. It only ever moves to an older position.
type CrawlCursor struct {
	UID            string `gorm:"primaryKey"`
	OldestMID      string `gorm:"column:oldest_mid"`
	OldestPostedAt string
	UpdatedAt      time.Time
}

// TableName overrides the table name
func (CrawlCursor) TableName() string { return "crawl_cursor" }

// EncodeStringList serializes a URL/path list for a text column.
func EncodeStringList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	data, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeStringList is the inverse of EncodeStringList.
func DecodeStringList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	return items
}

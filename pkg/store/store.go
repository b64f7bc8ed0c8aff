// Package store is the persistence merge layer. Every operation is an
// idempotent upsert: re-applying the same input produces no observable state
// change beyond the first application. No other component touches the
// database directly.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	errs "wbscraper/pkg/errors"
)

// Store wraps the database connection.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Account{}, &Post{}, &Comment{}, &CrawlCursor{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mergeErr(err error) error {
	return &errs.Error{Type: errs.ErrorTypeMerge, Message: err.Error()}
}

// UpsertAccount inserts the account or refreshes its mutable fields
// (nickname, description, follower count). The first-write UID and creation
// time are preserved.
func (s *Store) UpsertAccount(a *Account) error {
	if a.UID == "" {
		return errs.New(errs.ErrorTypeMerge, "account uid is required")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing Account
		err := tx.First(&existing, "uid = ?", a.UID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(a).Error; err != nil {
				return mergeErr(err)
			}
			return nil
		}
		if err != nil {
			return mergeErr(err)
		}

		updates := map[string]interface{}{
			"nickname":        a.Nickname,
			"description":     a.Description,
			"followers_count": a.FollowersCount,
			"updated_at":      time.Now(),
		}
		if err := tx.Model(&Account{}).Where("uid = ?", a.UID).Updates(updates).Error; err != nil {
			return mergeErr(err)
		}
		return nil
	})
}

// UpsertPost inserts a newly observed post (status pending) or refreshes the
// engagement counters of a known one. Immutable fields (MID, owner, posted-at,
// content) keep their first-write values, and a fetched post never regresses
// to pending. Returns true when the post was newly inserted.
func (s *Store) UpsertPost(p *Post) (bool, error) {
	if p.MID == "" || p.UID == "" {
		return false, errs.New(errs.ErrorTypeMerge, "post mid and uid are required")
	}
	if p.Status == "" {
		p.Status = StatusPending
	}

	inserted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing Post
		err := tx.First(&existing, "mid = ?", p.MID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(p).Error; err != nil {
				return mergeErr(err)
			}
			inserted = true
			return nil
		}
		if err != nil {
			return mergeErr(err)
		}

		updates := map[string]interface{}{
			"reposts_count":  p.RepostsCount,
			"comments_count": p.CommentsCount,
			"likes_count":    p.LikesCount,
		}
		if err := tx.Model(&Post{}).Where("mid = ?", p.MID).Updates(updates).Error; err != nil {
			return mergeErr(err)
		}
		return nil
	})
	return inserted, err
}

// UpdatePostContent replaces a post's body text, used when a detail fetch
// recovers the full text of a truncated long post.
func (s *Store) UpdatePostContent(mid, content string) error {
	if err := s.db.Model(&Post{}).Where("mid = ?", mid).Update("content", content).Error; err != nil {
		return mergeErr(err)
	}
	return nil
}

// UpsertComments merges a comment batch within a single transaction so a
// crash mid-batch cannot leave a half-written row. Existing rows only get a
// like-count refresh. Returns the number of newly inserted comments.
func (s *Store) UpsertComments(batch []Comment) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range batch {
			c := batch[i]
			if c.CommentID == "" || c.MID == "" {
				return errs.New(errs.ErrorTypeMerge, "comment id and mid are required")
			}

			var existing Comment
			err := tx.First(&existing, "comment_id = ?", c.CommentID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.ID = 0
				if err := tx.Create(&c).Error; err != nil {
					return mergeErr(err)
				}
				inserted++
				continue
			}
			if err != nil {
				return mergeErr(err)
			}

			if existing.LikesCount != c.LikesCount {
				if err := tx.Model(&Comment{}).Where("comment_id = ?", c.CommentID).
					Update("likes_count", c.LikesCount).Error; err != nil {
					return mergeErr(err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// AdvanceCursor records a candidate oldest position for the backward history
// scan. The write happens only when the candidate is strictly older than the
// stored position (or no position is stored), so a partially completed
// forward pass can never corrupt the resume point.
func (s *Store) AdvanceCursor(uid, mid, postedAt string) error {
	if uid == "" || mid == "" {
		return errs.New(errs.ErrorTypeMerge, "cursor uid and mid are required")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var cur CrawlCursor
		err := tx.First(&cur, "uid = ?", uid).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cur = CrawlCursor{UID: uid, OldestMID: mid, OldestPostedAt: postedAt, UpdatedAt: time.Now()}
			if err := tx.Create(&cur).Error; err != nil {
				return mergeErr(err)
			}
			return nil
		}
		if err != nil {
			return mergeErr(err)
		}

		// normalized timestamps sort lexicographically
		if cur.OldestPostedAt != "" && postedAt >= cur.OldestPostedAt {
			return nil
		}

		updates := map[string]interface{}{
			"oldest_mid":       mid,
			"oldest_posted_at": postedAt,
			"updated_at":       time.Now(),
		}
		if err := tx.Model(&CrawlCursor{}).Where("uid = ?", uid).Updates(updates).Error; err != nil {
			return mergeErr(err)
		}
		return nil
	})
}

// Cursor returns the stored cursor for an account, or nil when none exists.
func (s *Store) Cursor(uid string) (*CrawlCursor, error) {
	var cur CrawlCursor
	err := s.db.First(&cur, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mergeErr(err)
	}
	return &cur, nil
}

// MarkPostFetched transitions a post to fetched after a successful comment
// pass. Idempotent.
func (s *Store) MarkPostFetched(mid string) error {
	if err := s.db.Model(&Post{}).Where("mid = ?", mid).
		Update("status", StatusFetched).Error; err != nil {
		return mergeErr(err)
	}
	return nil
}

// PostExists checks whether a post was already observed.
func (s *Store) PostExists(mid string) (bool, error) {
	var count int64
	if err := s.db.Model(&Post{}).Where("mid = ?", mid).Count(&count).Error; err != nil {
		return false, mergeErr(err)
	}
	return count > 0, nil
}

// GetPost loads one post, or nil when unknown.
func (s *Store) GetPost(mid string) (*Post, error) {
	var post Post
	err := s.db.First(&post, "mid = ?", mid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mergeErr(err)
	}
	return &post, nil
}

// PendingPosts returns an account's posts still awaiting a comment pass whose
// normalized posted-at is older than cutoff, FIFO by discovery order.
func (s *Store) PendingPosts(uid, cutoff string) ([]Post, error) {
	var posts []Post
	err := s.db.
		Where("uid = ? AND status = ? AND posted_at != '' AND posted_at < ?", uid, StatusPending, cutoff).
		Order("created_at ASC, mid ASC").
		Find(&posts).Error
	if err != nil {
		return nil, mergeErr(err)
	}
	return posts, nil
}

// CommentsForPost returns a post's merged comments ordered by likes.
func (s *Store) CommentsForPost(mid string) ([]Comment, error) {
	var comments []Comment
	err := s.db.Where("mid = ?", mid).
		Order("likes_count DESC, posted_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, mergeErr(err)
	}
	return comments, nil
}

// SetLocalImages records the locally materialized image paths of a post.
func (s *Store) SetLocalImages(mid string, paths []string) error {
	if err := s.db.Model(&Post{}).Where("mid = ?", mid).
		Update("local_images", EncodeStringList(paths)).Error; err != nil {
		return mergeErr(err)
	}
	return nil
}

// SetCommentLocalImages records the locally materialized image paths of a comment.
func (s *Store) SetCommentLocalImages(commentID string, paths []string) error {
	if err := s.db.Model(&Comment{}).Where("comment_id = ?", commentID).
		Update("local_images", EncodeStringList(paths)).Error; err != nil {
		return mergeErr(err)
	}
	return nil
}

// Stats summarizes the persisted corpus.
type Stats struct {
	Accounts       int64
	Posts          int64
	PendingPosts   int64
	Comments       int64
	PostsByAccount map[string]int64
}

// Stats counts rows per table and posts per tracked account.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{PostsByAccount: make(map[string]int64)}

	if err := s.db.Model(&Account{}).Count(&stats.Accounts).Error; err != nil {
		return nil, mergeErr(err)
	}
	if err := s.db.Model(&Post{}).Count(&stats.Posts).Error; err != nil {
		return nil, mergeErr(err)
	}
	if err := s.db.Model(&Post{}).Where("status = ?", StatusPending).Count(&stats.PendingPosts).Error; err != nil {
		return nil, mergeErr(err)
	}
	if err := s.db.Model(&Comment{}).Count(&stats.Comments).Error; err != nil {
		return nil, mergeErr(err)
	}

	rows := []struct {
		UID   string
		Count int64
	}{}
	if err := s.db.Model(&Post{}).Select("uid, count(*) as count").Group("uid").Scan(&rows).Error; err != nil {
		return nil, mergeErr(err)
	}
	for _, row := range rows {
		stats.PostsByAccount[row.UID] = row.Count
	}

	return stats, nil
}

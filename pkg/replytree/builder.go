// Package replytree reconstructs the parent/child reply forest from the flat
// ordered comment stream a page fetch produces. Build is pure: no I/O, no
// second fetch for missing parents.
package replytree

import (
	"wbscraper/pkg/store"
	"wbscraper/pkg/weibo"
)

// Build converts a flat batch of raw comments into merge-ready rows.
//
// Parent pointers are resolved against comments seen earlier in the same
// call; when the parent lives outside the batch the raw record's own
// denormalized parent fields are used verbatim. Duplicated IDs (pagination
// overlap) keep the first occurrence. IsAuthorReply is strict string equality
// of the comment author against the post owner, never a content heuristic.
func Build(ownerUID string, raws []weibo.RawComment) []store.Comment {
	if len(raws) == 0 {
		return nil
	}

	seen := make(map[string]store.Comment, len(raws))
	out := make([]store.Comment, 0, len(raws))

	for i := range raws {
		raw := &raws[i]
		if raw.CommentID == "" {
			continue
		}
		if _, dup := seen[raw.CommentID]; dup {
			continue
		}

		c := store.Comment{
			CommentID:     raw.CommentID,
			MID:           raw.MID,
			UID:           raw.UID,
			Nickname:      raw.Nickname,
			Content:       raw.Content,
			PostedAt:      weibo.NormalizeTime(raw.CreatedAt),
			LikesCount:    raw.LikeCount,
			IsAuthorReply: raw.UID != "" && raw.UID == ownerUID,
			Images:        store.EncodeStringList(raw.Images),
		}

		if raw.ReplyToCommentID != "" && raw.ReplyToCommentID != raw.CommentID {
			c.ReplyToCommentID = raw.ReplyToCommentID
			if parent, ok := seen[raw.ReplyToCommentID]; ok {
				// parent is in this batch: snapshot its fields as of now
				c.ReplyToUID = parent.UID
				c.ReplyToNickname = parent.Nickname
				c.ReplyToContent = parent.Content
			} else {
				// parent fetched on an earlier page (or never observed):
				// keep the payload's denormalized snapshot, even if empty
				c.ReplyToUID = raw.ReplyToUID
				c.ReplyToNickname = raw.ReplyToNickname
				c.ReplyToContent = raw.ReplyToContent
			}
		}

		out = append(out, c)
		seen[raw.CommentID] = c
	}

	return out
}

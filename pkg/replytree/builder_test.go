package replytree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbscraper/pkg/weibo"
)

const owner = "1000001"

func TestBuildSimpleBatch(t *testing.T) {
	raws := []weibo.RawComment{
		{CommentID: "1", MID: "m1", UID: "2001", Nickname: "alice", Content: "first", LikeCount: 3},
		{CommentID: "2", MID: "m1", UID: "2002", Nickname: "bob", Content: "second"},
	}

	rows := Build(owner, raws)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].CommentID)
	assert.Equal(t, 3, rows[0].LikesCount)
	assert.False(t, rows[0].IsAuthorReply)
	assert.Empty(t, rows[0].ReplyToCommentID)
}

func TestBuildResolvesParentInBatch(t *testing.T) {
	raws := []weibo.RawComment{
		{CommentID: "5", MID: "m1", UID: "2001", Nickname: "alice", Content: "great photo"},
		{CommentID: "6", MID: "m1", UID: owner, Nickname: "author", Content: "thanks!",
			ReplyToCommentID: "5",
			// the payload's own snapshot disagrees; the in-batch parent wins
			ReplyToNickname: "stale-name", ReplyToContent: "stale-text"},
	}

	rows := Build(owner, raws)
	require.Len(t, rows, 2)

	reply := rows[1]
	assert.Equal(t, "5", reply.ReplyToCommentID)
	assert.Equal(t, "2001", reply.ReplyToUID)
	assert.Equal(t, "alice", reply.ReplyToNickname)
	assert.Equal(t, "great photo", reply.ReplyToContent)
	assert.True(t, reply.IsAuthorReply)
}

func TestBuildKeepsPayloadSnapshotForMissingParent(t *testing.T) {
	raws := []weibo.RawComment{
		{CommentID: "9", MID: "m1", UID: "2002", Content: "agreed",
			ReplyToCommentID: "7", ReplyToUID: "2003",
			ReplyToNickname: "carol", ReplyToContent: "original remark"},
	}

	rows := Build(owner, raws)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].ReplyToCommentID)
	assert.Equal(t, "carol", rows[0].ReplyToNickname)
	assert.Equal(t, "original remark", rows[0].ReplyToContent)
}

func TestBuildDanglingParentWithEmptySnapshot(t *testing.T) {
	// parent never observed and the payload carries no snapshot: the pointer
	// survives, the snapshot stays empty
	raws := []weibo.RawComment{
		{CommentID: "9", MID: "m1", UID: "2002", Content: "agreed", ReplyToCommentID: "7"},
	}

	rows := Build(owner, raws)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].ReplyToCommentID)
	assert.Empty(t, rows[0].ReplyToNickname)
	assert.Empty(t, rows[0].ReplyToContent)
}

func TestBuildDeduplicatesKeepFirst(t *testing.T) {
	raws := []weibo.RawComment{
		{CommentID: "1", MID: "m1", Content: "original", LikeCount: 1},
		{CommentID: "1", MID: "m1", Content: "pagination overlap", LikeCount: 9},
		{CommentID: "2", MID: "m1", Content: "other"},
	}

	rows := Build(owner, raws)
	require.Len(t, rows, 2)
	assert.Equal(t, "original", rows[0].Content)
	assert.Equal(t, 1, rows[0].LikesCount)
}

func TestBuildAuthorReplyIsStrictEquality(t *testing.T) {
	raws := []weibo.RawComment{
		{CommentID: "1", MID: "m1", UID: owner, Content: "by the author"},
		{CommentID: "2", MID: "m1", UID: "", Content: "anonymous"},
		{CommentID: "3", MID: "m1", UID: owner + "9", Content: "prefix collision"},
	}

	rows := Build("", nil)
	assert.Empty(t, rows)

	rows = Build(owner, raws)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].IsAuthorReply)
	assert.False(t, rows[1].IsAuthorReply)
	assert.False(t, rows[2].IsAuthorReply)
}

func TestBuildIgnoresSelfReference(t *testing.T) {
	raws := []weibo.RawComment{
		{CommentID: "1", MID: "m1", UID: "2001", Content: "loop", ReplyToCommentID: "1"},
	}

	rows := Build(owner, raws)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].ReplyToCommentID)
}

func TestBuildSkipsEmptyIDs(t *testing.T) {
	raws := []weibo.RawComment{
		{CommentID: "", MID: "m1", Content: "no id"},
		{CommentID: "1", MID: "m1", Content: "kept"},
	}

	rows := Build(owner, raws)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].CommentID)
}

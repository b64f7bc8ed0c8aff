package weibo

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"wbscraper/pkg/errors"
)

// Parser is the render/extract capability: a pure mapping from raw mobile API
// payloads to the record shapes the crawl core consumes.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser { return &Parser{} }

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// cleanHTML strips markup from API text fields and collapses whitespace.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var thumbPathRe = regexp.MustCompile(`/(orj360|orj480|mw690|mw\d+|thumb\d+|thumbnail)/`)

// normalizeImageURL rewrites thumbnail paths to the full-size variant.
func normalizeImageURL(url string) string {
	return thumbPathRe.ReplaceAllString(url, "/large/")
}

func parseErr(format string, args ...interface{}) error {
	return errors.New(errors.ErrorTypeParse, format, args...)
}

// ExtractProfile parses a profile payload into a RawProfile.
func (p *Parser) ExtractProfile(payload []byte, uid string) (RawProfile, error) {
	var resp indexResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return RawProfile{}, parseErr("profile payload: %v", err)
	}
	if resp.OK != 1 || resp.Data.UserInfo == nil {
		return RawProfile{}, parseErr("profile payload for uid %s: ok=%d", uid, resp.OK)
	}

	info := resp.Data.UserInfo
	nickname := info.ScreenName
	if nickname == "" {
		nickname = fmt.Sprintf("用户%s", uid)
	}
	return RawProfile{
		UID:            uid,
		Nickname:       nickname,
		Description:    info.Description,
		FollowersCount: info.FollowersCount,
	}, nil
}

// ExtractPosts parses a list page payload into posts plus the next page
// cursor. An empty cursor means the last page was reached.
func (p *Parser) ExtractPosts(payload []byte, uid string) ([]RawPost, string, error) {
	var resp indexResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, "", parseErr("list payload: %v", err)
	}
	if resp.OK != 1 {
		return nil, "", parseErr("list payload for uid %s: ok=%d", uid, resp.OK)
	}

	var posts []RawPost
	for _, card := range resp.Data.Cards {
		// card_type 9 is a plain post; everything else is filler
		if card.CardType != 9 || card.Mblog == nil {
			continue
		}
		post, ok := p.parseMblog(card.Mblog, uid)
		if !ok {
			continue
		}
		posts = append(posts, post)
	}

	next := resp.Data.CardlistInfo.SinceID.String()
	if next == "0" {
		next = ""
	}
	return posts, next, nil
}

// ExtractPostDetail parses a detail page payload into a single full post.
func (p *Parser) ExtractPostDetail(payload []byte, uid string) (RawPost, error) {
	var resp statusResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return RawPost{}, parseErr("detail payload: %v", err)
	}
	if resp.OK != 1 || resp.Data == nil {
		return RawPost{}, parseErr("detail payload for uid %s: ok=%d", uid, resp.OK)
	}
	post, ok := p.parseMblog(resp.Data, uid)
	if !ok {
		return RawPost{}, parseErr("detail payload for uid %s: missing post id", uid)
	}
	return post, nil
}

func (p *Parser) parseMblog(m *mblogJSON, uid string) (RawPost, bool) {
	mid := m.ID.String()
	if mid == "" || mid == "0" {
		mid = m.MID.String()
	}
	if mid == "" || mid == "0" {
		return RawPost{}, false
	}

	post := RawPost{
		MID:           mid,
		UID:           uid,
		Content:       cleanHTML(m.Text),
		CreatedAt:     NormalizeTime(m.CreatedAt),
		RepostsCount:  m.RepostsCount,
		CommentsCount: m.CommentsCount,
		LikesCount:    m.AttitudesCount,
		IsRepost:      m.Retweeted != nil,
		SourceURL:     fmt.Sprintf("https://weibo.com/%s/%s", uid, mid),
		IsLongText:    m.IsLongText,
	}

	if m.Retweeted != nil {
		rt := m.Retweeted
		post.RepostContent = cleanHTML(rt.Text)
		if rt.User != nil {
			post.RepostUID = rt.User.ID.String()
			post.RepostNickname = rt.User.ScreenName
		}
		for _, pic := range rt.Pics {
			if url := largeURL(pic); url != "" {
				post.Images = append(post.Images, url)
			}
		}
	}

	for _, pic := range m.Pics {
		if url := largeURL(pic); url != "" {
			post.Images = append(post.Images, url)
		}
	}

	if m.PageInfo != nil && m.PageInfo.MediaInfo != nil {
		post.VideoURL = m.PageInfo.MediaInfo.StreamURL
	}

	return post, true
}

func largeURL(pic picJSON) string {
	if pic.Large != nil && pic.Large.URL != "" {
		return normalizeImageURL(pic.Large.URL)
	}
	if pic.URL != "" {
		return normalizeImageURL(pic.URL)
	}
	return ""
}

// ExtractComments parses a comment page payload into a flat ordered sequence
// of raw comments (each top-level comment followed by its sub-comments) plus
// the next page cursor. Cursor "0" or "" means no more pages.
func (p *Parser) ExtractComments(payload []byte, mid string) ([]RawComment, string, error) {
	var resp commentsResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, "", parseErr("comments payload: %v", err)
	}
	if resp.OK != 1 {
		return nil, "", parseErr("comments payload for post %s: ok=%d", mid, resp.OK)
	}

	var out []RawComment
	for i := range resp.Data.Data {
		c := &resp.Data.Data[i]
		parent, ok := p.parseComment(c, mid)
		if !ok {
			continue
		}
		out = append(out, parent)

		// sub-comments arrive nested under their parent; the field is
		// literal false when there are none
		var subs []commentJSON
		if len(c.Comments) > 0 && json.Unmarshal(c.Comments, &subs) == nil {
			for j := range subs {
				sub, ok := p.parseComment(&subs[j], mid)
				if !ok {
					continue
				}
				if sub.ReplyToCommentID == "" {
					sub.ReplyToCommentID = parent.CommentID
					sub.ReplyToUID = parent.UID
					sub.ReplyToNickname = parent.Nickname
					sub.ReplyToContent = parent.Content
				}
				out = append(out, sub)
			}
		}
	}

	next := resp.Data.MaxID.String()
	if next == "0" {
		next = ""
	}
	return out, next, nil
}

func (p *Parser) parseComment(c *commentJSON, mid string) (RawComment, bool) {
	id := c.ID.String()
	if id == "" || id == "0" {
		return RawComment{}, false
	}

	comment := RawComment{
		CommentID: id,
		MID:       mid,
		Content:   cleanHTML(c.Text),
		CreatedAt: c.CreatedAt,
		LikeCount: c.LikeCount,
	}
	if c.User != nil {
		comment.UID = c.User.ID.String()
		comment.Nickname = c.User.ScreenName
	}
	for _, pic := range c.Pics {
		if url := largeURL(pic); url != "" {
			comment.Images = append(comment.Images, url)
		}
	}

	// Explicit parent pointer with the payload's denormalized snapshot. Used
	// when the parent lives on a previously fetched page.
	if rid := c.ReplyID.String(); rid != "" && rid != "0" && rid != id {
		comment.ReplyToCommentID = rid
		comment.ReplyToContent = cleanHTML(c.ReplyText)
		if c.ReplyUser != nil {
			comment.ReplyToUID = c.ReplyUser.ID.String()
			comment.ReplyToNickname = c.ReplyUser.ScreenName
		}
	}

	return comment, true
}

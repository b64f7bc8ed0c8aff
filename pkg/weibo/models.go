package weibo

import "encoding/json"

// RawProfile is the extracted shape of a tracked account's profile.
type RawProfile struct {
	UID            string
	Nickname       string
	Description    string
	FollowersCount int
}

// RawPost is the extracted shape of one post as it appears in a list page or
// detail page payload. Timestamps are already normalized.
type RawPost struct {
	MID            string
	UID            string
	Content        string
	CreatedAt      string
	RepostsCount   int
	CommentsCount  int
	LikesCount     int
	IsRepost       bool
	RepostUID      string
	RepostNickname string
	RepostContent  string
	Images         []string
	VideoURL       string
	SourceURL      string
	// IsLongText marks a truncated list body; the full text requires a
	// detail fetch
	IsLongText bool
}

// RawComment is the extracted shape of one comment, flat, with the payload's
// own denormalized parent fields carried through.
type RawComment struct {
	CommentID string
	MID       string
	UID       string
	Nickname  string
	Content   string
	CreatedAt string
	LikeCount int
	Images    []string

	// Parent pointer, set only on sub-comments. The snapshot fields hold the
	// payload's denormalized view of the parent and survive even when the
	// parent row is never persisted.
	ReplyToCommentID string
	ReplyToUID       string
	ReplyToNickname  string
	ReplyToContent   string
}

// Wire shapes of the m.weibo.cn mobile API.

type indexResponse struct {
	OK   int       `json:"ok"`
	Data indexData `json:"data"`
}

type indexData struct {
	UserInfo     *userInfoJSON `json:"userInfo"`
	Cards        []cardJSON    `json:"cards"`
	CardlistInfo cardlistInfo  `json:"cardlistInfo"`
}

type userInfoJSON struct {
	ID             json.Number `json:"id"`
	ScreenName     string      `json:"screen_name"`
	Description    string      `json:"description"`
	FollowersCount int         `json:"followers_count"`
}

type cardJSON struct {
	CardType int        `json:"card_type"`
	Mblog    *mblogJSON `json:"mblog"`
}

type cardlistInfo struct {
	SinceID json.Number `json:"since_id"`
}

type mblogJSON struct {
	ID             json.Number `json:"id"`
	MID            json.Number `json:"mid"`
	Text           string      `json:"text"`
	CreatedAt      string      `json:"created_at"`
	RepostsCount   int         `json:"reposts_count"`
	CommentsCount  int         `json:"comments_count"`
	AttitudesCount int         `json:"attitudes_count"`
	IsLongText     bool        `json:"isLongText"`
	User           *mblogUser  `json:"user"`
	Pics           []picJSON   `json:"pics"`
	Retweeted      *mblogJSON  `json:"retweeted_status"`
	PageInfo       *pageInfo   `json:"page_info"`
}

type mblogUser struct {
	ID         json.Number `json:"id"`
	ScreenName string      `json:"screen_name"`
}

type picJSON struct {
	URL   string `json:"url"`
	Large *struct {
		URL string `json:"url"`
	} `json:"large"`
}

type pageInfo struct {
	Type      string `json:"type"`
	MediaInfo *struct {
		StreamURL string `json:"stream_url"`
	} `json:"media_info"`
}

type statusResponse struct {
	OK   int        `json:"ok"`
	Data *mblogJSON `json:"data"`
}

type commentsResponse struct {
	OK   int          `json:"ok"`
	Data commentsData `json:"data"`
}

type commentsData struct {
	Data  []commentJSON `json:"data"`
	MaxID json.Number   `json:"max_id"`
}

type commentJSON struct {
	ID        json.Number `json:"id"`
	Text      string      `json:"text"`
	CreatedAt string      `json:"created_at"`
	LikeCount int         `json:"like_count"`
	User      *mblogUser  `json:"user"`
	Pics      []picJSON   `json:"pics"`
	// Comments is either a sub-comment array or literal false
	Comments json.RawMessage `json:"comments"`
	// ReplyID and ReplyText are the payload's denormalized parent reference,
	// present on sub-comments whose parent was fetched on an earlier page
	ReplyID   json.Number `json:"reply_id"`
	ReplyText string      `json:"reply_text"`
	ReplyUser *mblogUser  `json:"reply_user"`
}

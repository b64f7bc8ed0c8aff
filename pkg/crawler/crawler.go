// Package crawler drives the incremental harvest: scan each tracked account
// for new and historical posts, then fetch the comment subtrees of posts whose
// discussion has settled. All persistence goes through the store's idempotent
// upserts, so an interrupted run resumes by replaying cheaply rather than by
// restoring checkpoints.
package crawler

import (
	"context"
	stderrors "errors"
	"time"

	"wbscraper/pkg/cache"
	"wbscraper/pkg/config"
	"wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/pacing"
	"wbscraper/pkg/replytree"
	"wbscraper/pkg/retry"
	"wbscraper/pkg/store"
	"wbscraper/pkg/weibo"
)

// Mode selects which scan phases a run performs.
type Mode string

const (
	// ModeNew scans forward for posts newer than the known set
	ModeNew Mode = "new"
	// ModeHistory scans backward from the resume cursor
	ModeHistory Mode = "history"
	// ModeAll runs both scans
	ModeAll Mode = "all"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNew, ModeHistory, ModeAll:
		return Mode(s), nil
	}
	return "", errors.New(errors.ErrorTypeConfig, "invalid mode %q (want new, history or all)", s)
}

// State is the crawl phase, logged on every transition.
type State string

const (
	StateInit        State = "init"
	StateScanNew     State = "scan_new"
	StateScanHistory State = "scan_history"
	StateDetailFetch State = "detail_fetch"
	StateDraining    State = "draining"
	StateStopped     State = "stopped"
)

// knownStreakLimit is how many consecutive already-known posts the forward
// scan tolerates before deciding it has caught up. Two, not one, because a
// deleted post can leave a single-post gap in an otherwise known page.
const knownStreakLimit = 2

// maxCommentPages bounds one post's comment pagination in case the API
// returns a cursor cycle.
const maxCommentPages = 200

// errStop unwinds the phase loops when a stop was requested.
var errStop = stderrors.New("stop requested")

// Summary is the outcome of one run.
type Summary struct {
	PostsSeen      int
	PostsFetched   int
	CommentsMerged int
	ImagesSaved    int
	UnitsSkipped   int
	// Drained is set when the run ended on a stop request rather than
	// naturally
	Drained bool
}

// Crawler owns one run over the configured accounts.
type Crawler struct {
	cfg     *config.Config
	store   *store.Store
	cache   *cache.Cache
	fetcher Fetcher
	parser  Extractor
	images  ImageMaterializer
	pacer   *pacing.Pacer
	logger  logger.Logger

	state   State
	summary Summary
	now     func() time.Time
}

// New wires a Crawler. images may be nil to skip materialization.
func New(cfg *config.Config, st *store.Store, ca *cache.Cache, f Fetcher, ex Extractor, img ImageMaterializer, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		cfg:     cfg,
		store:   st,
		cache:   ca,
		fetcher: f,
		parser:  ex,
		images:  img,
		pacer:   pacing.New(cfg.Crawler.BaseDelay, cfg.Crawler.JitterFraction),
		logger:  log,
		state:   StateInit,
		now:     time.Now,
	}
}

// Run executes the configured phases for every account and returns a summary.
// A unit-level failure is logged and skipped; only a stop request or context
// cancellation ends the run early, and even then with all completed units
// merged.
func (c *Crawler) Run(ctx context.Context, token *StopToken) (*Summary, error) {
	if token == nil {
		token = NewStopToken()
	}
	mode, err := ParseMode(c.cfg.Crawler.Mode)
	if err != nil {
		return nil, err
	}

	c.summary = Summary{}
	accounts := c.cfg.Crawler.Accounts

	err = func() error {
		c.setState(StateInit, "")
		for _, uid := range accounts {
			if err := c.boundary(ctx, token); err != nil {
				return err
			}
			if err := c.initAccount(ctx, uid); err != nil {
				c.skipUnit(uid, "profile", err)
			}
		}

		if mode == ModeNew || mode == ModeAll {
			c.setState(StateScanNew, "")
			for _, uid := range accounts {
				if err := c.scanNew(ctx, token, uid); err != nil {
					return err
				}
			}
		}

		if mode == ModeHistory || mode == ModeAll {
			c.setState(StateScanHistory, "")
			for _, uid := range accounts {
				if err := c.scanHistory(ctx, token, uid); err != nil {
					return err
				}
			}
		}

		c.setState(StateDetailFetch, "")
		for _, uid := range accounts {
			if err := c.fetchDetails(ctx, token, uid); err != nil {
				return err
			}
		}
		return nil
	}()

	if err != nil {
		if stderrors.Is(err, errStop) || stderrors.Is(err, context.Canceled) {
			c.summary.Drained = true
			c.setState(StateDraining, "")
		} else {
			return nil, err
		}
	}

	c.setState(StateStopped, "")
	summary := c.summary
	return &summary, nil
}

// boundary is the between-units stop check. A drain request and an abort both
// end the run here; they only differ mid-unit.
func (c *Crawler) boundary(ctx context.Context, token *StopToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token.Stopping() {
		return errStop
	}
	return nil
}

func (c *Crawler) setState(s State, uid string) {
	c.state = s
	fields := map[string]interface{}{"state": string(s)}
	if uid != "" {
		fields["uid"] = uid
	}
	c.logger.InfoWithFields("crawl state", fields)
}

func (c *Crawler) skipUnit(uid, kind string, err error) {
	c.summary.UnitsSkipped++
	c.logger.WarnWithFields("unit skipped", map[string]interface{}{
		"uid":   uid,
		"unit":  kind,
		"error": err.Error(),
	})
}

// fetchUnit runs one unit through pacing, retry and the response cache. A
// stable unit already on disk skips the pacer: no external request happens.
func (c *Crawler) fetchUnit(ctx context.Context, unit weibo.Unit, vol cache.Volatility) ([]byte, error) {
	if !(vol == cache.Stable && c.cache.Contains(unit.Key())) {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return c.cache.GetOrFetch(ctx, unit.Key(), vol, func(ctx context.Context) ([]byte, error) {
		return retry.DoWithResult(func() ([]byte, error) {
			return c.fetcher.Fetch(ctx, unit)
		}, &retry.Config{
			MaxAttempts: c.cfg.Crawler.MaxRetries + 1,
			Backoff:     retry.DefaultExponentialBackoff(),
			RetryIf:     retry.DefaultRetryIf,
			Context:     ctx,
			Logger:      c.logger,
		})
	})
}

// listVolatility: the first page of a list reflects the account's current
// head and must always be refetched; cursored pages are frozen history.
func listVolatility(cursor string) cache.Volatility {
	if cursor == "" {
		return cache.Volatile
	}
	return cache.Stable
}

func (c *Crawler) initAccount(ctx context.Context, uid string) error {
	payload, err := c.fetchUnit(ctx, weibo.Unit{Kind: weibo.UnitProfile, UID: uid}, cache.Volatile)
	if err != nil {
		return err
	}
	profile, err := c.parser.ExtractProfile(payload, uid)
	if err != nil {
		return err
	}

	return c.store.UpsertAccount(&store.Account{
		UID:            profile.UID,
		Nickname:       profile.Nickname,
		Description:    profile.Description,
		FollowersCount: profile.FollowersCount,
	})
}

// scanNew pages forward from the head of the account's list until it hits
// posts it has already seen.
func (c *Crawler) scanNew(ctx context.Context, token *StopToken, uid string) error {
	cursor := ""
	knownStreak := 0

	for {
		if err := c.boundary(ctx, token); err != nil {
			return err
		}
		if c.summary.PostsSeen >= c.cfg.Crawler.MaxPostsPerRun {
			c.logger.InfoWithFields("post budget reached", map[string]interface{}{"uid": uid})
			return nil
		}

		unit := weibo.Unit{Kind: weibo.UnitListPage, UID: uid, Cursor: cursor}
		payload, err := c.fetchUnit(ctx, unit, listVolatility(cursor))
		if err != nil {
			c.skipUnit(uid, string(unit.Kind), err)
			return nil
		}
		posts, next, err := c.parser.ExtractPosts(payload, uid)
		if err != nil {
			c.skipUnit(uid, string(unit.Kind), err)
			return nil
		}
		if len(posts) == 0 {
			return nil
		}

		for i := range posts {
			inserted, err := c.mergePost(ctx, &posts[i])
			if err != nil {
				c.skipUnit(uid, "merge", err)
				continue
			}
			if inserted {
				knownStreak = 0
			} else {
				knownStreak++
				if knownStreak >= knownStreakLimit {
					c.logger.DebugWithFields("caught up", map[string]interface{}{"uid": uid})
					return nil
				}
			}
		}

		if next == "" || next == cursor {
			return nil
		}
		cursor = next
	}
}

// scanHistory pages backward from the stored resume cursor until the age
// bound.
func (c *Crawler) scanHistory(ctx context.Context, token *StopToken, uid string) error {
	cursor := ""
	if cur, err := c.store.Cursor(uid); err != nil {
		c.skipUnit(uid, "cursor", err)
		return nil
	} else if cur != nil {
		cursor = cur.OldestMID
	}

	cutoff := c.now().AddDate(0, 0, -c.cfg.Crawler.MaxAgeDays).Format(weibo.TimeLayout)

	for {
		if err := c.boundary(ctx, token); err != nil {
			return err
		}
		if c.summary.PostsSeen >= c.cfg.Crawler.MaxPostsPerRun {
			c.logger.InfoWithFields("post budget reached", map[string]interface{}{"uid": uid})
			return nil
		}

		unit := weibo.Unit{Kind: weibo.UnitListPage, UID: uid, Cursor: cursor}
		payload, err := c.fetchUnit(ctx, unit, listVolatility(cursor))
		if err != nil {
			c.skipUnit(uid, string(unit.Kind), err)
			return nil
		}
		posts, next, err := c.parser.ExtractPosts(payload, uid)
		if err != nil {
			c.skipUnit(uid, string(unit.Kind), err)
			return nil
		}
		if len(posts) == 0 {
			return nil
		}

		for i := range posts {
			post := &posts[i]
			if post.CreatedAt != "" && post.CreatedAt < cutoff {
				c.logger.InfoWithFields("history age bound reached", map[string]interface{}{
					"uid":       uid,
					"posted_at": post.CreatedAt,
				})
				return nil
			}
			if _, err := c.mergePost(ctx, post); err != nil {
				c.skipUnit(uid, "merge", err)
			}
		}

		if next == "" || next == cursor {
			return nil
		}
		cursor = next
	}
}

// mergePost upserts one scanned post, advances the resume cursor and
// materializes its images on first sight.
func (c *Crawler) mergePost(ctx context.Context, raw *weibo.RawPost) (bool, error) {
	inserted, err := c.store.UpsertPost(&store.Post{
		MID:            raw.MID,
		UID:            raw.UID,
		Content:        raw.Content,
		PostedAt:       raw.CreatedAt,
		RepostsCount:   raw.RepostsCount,
		CommentsCount:  raw.CommentsCount,
		LikesCount:     raw.LikesCount,
		IsRepost:       raw.IsRepost,
		RepostUID:      raw.RepostUID,
		RepostNickname: raw.RepostNickname,
		RepostContent:  raw.RepostContent,
		Images:         store.EncodeStringList(raw.Images),
		VideoURL:       raw.VideoURL,
		SourceURL:      raw.SourceURL,
		IsLongText:     raw.IsLongText,
	})
	if err != nil {
		return false, err
	}

	c.summary.PostsSeen++

	if raw.CreatedAt != "" {
		if err := c.store.AdvanceCursor(raw.UID, raw.MID, raw.CreatedAt); err != nil {
			return inserted, err
		}
	}

	if inserted && c.images != nil && len(raw.Images) > 0 {
		paths := c.images.Materialize(ctx, raw.UID, raw.Images)
		if len(paths) > 0 {
			if err := c.store.SetLocalImages(raw.MID, paths); err != nil {
				return inserted, err
			}
			c.summary.ImagesSaved += len(paths)
		}
	}

	return inserted, nil
}

// fetchDetails processes the account's pending posts whose discussion has
// settled, oldest discovery first.
func (c *Crawler) fetchDetails(ctx context.Context, token *StopToken, uid string) error {
	settled := c.now().AddDate(0, 0, -c.cfg.Crawler.StableAfterDays).Format(weibo.TimeLayout)
	pending, err := c.store.PendingPosts(uid, settled)
	if err != nil {
		c.skipUnit(uid, "pending", err)
		return nil
	}

	for i := range pending {
		if err := c.boundary(ctx, token); err != nil {
			return err
		}
		if err := c.fetchPostDetail(ctx, token, &pending[i]); err != nil {
			if stderrors.Is(err, errStop) || stderrors.Is(err, context.Canceled) {
				return err
			}
			c.skipUnit(uid, "detail", err)
		}
	}
	return nil
}

// fetchPostDetail completes one pending post: refresh truncated body text,
// collect every comment page, then merge the whole subtree at once. Nothing
// is persisted until all pages arrived, so a mid-post failure leaves the post
// pending with zero partial comments.
func (c *Crawler) fetchPostDetail(ctx context.Context, token *StopToken, post *store.Post) error {
	if post.IsLongText {
		payload, err := c.fetchUnit(ctx, weibo.Unit{Kind: weibo.UnitPostDetail, MID: post.MID}, cache.Stable)
		if err != nil {
			return err
		}
		full, err := c.parser.ExtractPostDetail(payload, post.UID)
		if err != nil {
			return err
		}
		if full.Content != "" {
			if err := c.store.UpdatePostContent(post.MID, full.Content); err != nil {
				return err
			}
		}
	}

	var raws []weibo.RawComment
	cursor := ""
	for page := 0; page < maxCommentPages; page++ {
		// an abort lands here and drops the accumulated pages unmerged
		if token.Aborted() {
			return errStop
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		unit := weibo.Unit{Kind: weibo.UnitCommentPage, MID: post.MID, Cursor: cursor}
		payload, err := c.fetchUnit(ctx, unit, cache.Stable)
		if err != nil {
			return err
		}
		batch, next, err := c.parser.ExtractComments(payload, post.MID)
		if err != nil {
			return err
		}
		raws = append(raws, batch...)

		if next == "" || next == cursor {
			break
		}
		cursor = next
	}

	rows := replytree.Build(post.UID, raws)
	merged, err := c.store.UpsertComments(rows)
	if err != nil {
		return err
	}
	c.summary.CommentsMerged += merged

	if c.images != nil {
		for i := range rows {
			urls := store.DecodeStringList(rows[i].Images)
			if len(urls) == 0 {
				continue
			}
			paths := c.images.Materialize(ctx, post.UID, urls)
			if len(paths) > 0 {
				if err := c.store.SetCommentLocalImages(rows[i].CommentID, paths); err != nil {
					return err
				}
				c.summary.ImagesSaved += len(paths)
			}
		}
	}

	if err := c.store.MarkPostFetched(post.MID); err != nil {
		return err
	}
	c.summary.PostsFetched++
	return nil
}

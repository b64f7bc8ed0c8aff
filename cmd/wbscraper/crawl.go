package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wbscraper/internal/images"
	"wbscraper/pkg/cache"
	"wbscraper/pkg/config"
	"wbscraper/pkg/crawler"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/session"
	"wbscraper/pkg/store"
	"wbscraper/pkg/weibo"
)

var (
	// Crawl command flags
	crawlMode  string
	baseDelay  time.Duration
	maxPosts   int
	maxAgeDays int
	noImages   bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl [uid...]",
	Short: "Crawl the configured accounts",
	Long: `Crawl posts and comments from the tracked Weibo profiles.

Accounts come from the config file, the WBSCRAPER_ACCOUNTS environment
variable, or the command line. A valid session cookie is required; store one
with 'wbscraper auth login' or set WBSCRAPER_COOKIE.

Press Ctrl+C once to stop after the current post finishes; press it twice to
abort immediately.`,
	Example: `  # Crawl the configured accounts
  wbscraper crawl

  # Crawl one account, new posts only
  wbscraper crawl 1234567890 --mode new

  # Backfill history with a tighter pace
  wbscraper crawl 1234567890 --mode history --base-delay 20s`,
	Args: cobra.ArbitraryArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&crawlMode, "mode", "m", "", "crawl mode: new, history or all")
	crawlCmd.Flags().DurationVar(&baseDelay, "base-delay", 0, "base delay between fetched units")
	crawlCmd.Flags().IntVar(&maxPosts, "max-posts", 0, "stop after this many posts were scanned")
	crawlCmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "age bound for the history scan")
	crawlCmd.Flags().BoolVar(&noImages, "no-images", false, "skip image downloads")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	flags := globalFlags()
	if len(args) > 0 {
		flags["accounts"] = args
	}
	if crawlMode != "" {
		flags["mode"] = crawlMode
	}
	if baseDelay > 0 {
		flags["base-delay"] = baseDelay
	}
	if maxPosts > 0 {
		flags["max-posts"] = maxPosts
	}
	if maxAgeDays > 0 {
		flags["max-age-days"] = maxAgeDays
	}
	if noImages {
		flags["no-images"] = true
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(cfg.Crawler.Accounts) == 0 {
		return fmt.Errorf("no accounts configured (pass UIDs as arguments or set crawler.accounts)")
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()

	if cfg.Weibo.Cookie == "" {
		if sess, err := loadSession(); err == nil {
			cfg.Weibo.Cookie = sess.Cookie
			if sess.UserAgent != "" {
				cfg.Weibo.UserAgent = sess.UserAgent
			}
		}
	}
	if cfg.Weibo.Cookie == "" {
		return fmt.Errorf("no session cookie (run 'wbscraper auth login' or set WBSCRAPER_COOKIE)")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	respCache, err := cache.New(cfg.CachePath(), log)
	if err != nil {
		return err
	}

	var pool crawler.ImageMaterializer
	if cfg.Images.Enabled {
		p, err := images.New(cfg.ImagesPath(), cfg.Images.Workers,
			cfg.Images.RequestsPerSecond, cfg.Images.DownloadTimeout, log)
		if err != nil {
			return err
		}
		pool = p
	}

	client := weibo.NewClient(cfg.Weibo.APIBase, cfg.Weibo.UserAgent,
		cfg.Weibo.Cookie, cfg.Crawler.FetchTimeout, log)

	c := crawler.New(cfg, st, respCache, client, weibo.NewParser(), pool, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	token := crawler.NewStopToken()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			switch token.RequestStop() {
			case 1:
				log.Warn("stop requested, finishing the current unit (Ctrl+C again to abort)")
			default:
				log.Warn("aborting")
				cancel()
			}
		}
	}()

	log.WithFields(map[string]interface{}{
		"accounts": len(cfg.Crawler.Accounts),
		"mode":     cfg.Crawler.Mode,
	}).Info("crawl starting")

	summary, err := c.Run(ctx, token)
	if err != nil {
		return err
	}

	fmt.Printf("\nCrawl finished\n")
	fmt.Printf("  Posts scanned:   %d\n", summary.PostsSeen)
	fmt.Printf("  Posts completed: %d\n", summary.PostsFetched)
	fmt.Printf("  Comments merged: %d\n", summary.CommentsMerged)
	fmt.Printf("  Images saved:    %d\n", summary.ImagesSaved)
	if summary.UnitsSkipped > 0 {
		fmt.Printf("  Units skipped:   %d\n", summary.UnitsSkipped)
	}
	if summary.Drained {
		fmt.Printf("  (stopped early on request)\n")
	}
	return nil
}

func loadSession() (*session.Session, error) {
	mgr, err := session.NewManager(configDir())
	if err != nil {
		return nil, err
	}
	return mgr.Load()
}

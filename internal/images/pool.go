// Package images materializes remote image references to local files. Image
// CDN fetches do not go through the authenticated crawl session, so they run
// on a small worker pool behind a sustained rate limit instead of the
// one-unit-at-a-time crawl pacing.
package images

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"wbscraper/pkg/logger"
)

// Downloader fetches one image URL. Satisfied by *http.Client via httpFetcher.
type Downloader interface {
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// Pool downloads image batches concurrently into a base directory.
type Pool struct {
	workers int
	baseDir string
	client  Downloader
	limiter *rate.Limiter
	logger  logger.Logger
}

// New creates a Pool. rps caps the sustained request rate across all workers.
func New(baseDir string, workers int, rps float64, timeout time.Duration, log logger.Logger) (*Pool, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if workers <= 0 {
		workers = 1
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	return &Pool{
		workers: workers,
		baseDir: baseDir,
		client:  &httpFetcher{client: &http.Client{Timeout: timeout}},
		limiter: rate.NewLimiter(rate.Limit(rps), workers),
		logger:  log,
	}, nil
}

// SetDownloader swaps the fetch implementation, used by tests.
func (p *Pool) SetDownloader(d Downloader) { p.client = d }

// Materialize downloads urls into baseDir/subdir and returns the local paths
// of the successful downloads, in input order. Failures are logged and
// skipped; an already-materialized file is not refetched.
func (p *Pool) Materialize(ctx context.Context, subdir string, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}

	dir := filepath.Join(p.baseDir, subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		p.logger.WithError(err).WithField("dir", dir).Error("failed to create image directory")
		return nil
	}

	results := make([]string, len(urls))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				local, err := p.download(ctx, dir, urls[i])
				if err != nil {
					p.logger.WarnWithFields("image download failed", map[string]interface{}{
						"url":   urls[i],
						"error": err.Error(),
					})
					continue
				}
				results[i] = local
			}
		}()
	}

feed:
	for i := range urls {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	var paths []string
	for _, local := range results {
		if local != "" {
			paths = append(paths, local)
		}
	}
	return paths
}

func (p *Pool) download(ctx context.Context, dir, url string) (string, error) {
	local := filepath.Join(dir, filenameFor(url))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	data, err := p.client.DownloadImage(ctx, url)
	if err != nil {
		return "", err
	}

	tmp := local + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, local); err != nil {
		os.Remove(tmp)
		return "", err
	}

	return local, nil
}

// filenameFor derives a stable local name from the URL so re-runs are
// idempotent.
func filenameFor(url string) string {
	sum := md5.Sum([]byte(url))
	ext := strings.ToLower(path.Ext(path.Base(strings.SplitN(url, "?", 2)[0])))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	return hex.EncodeToString(sum[:]) + ext
}

type httpFetcher struct {
	client *http.Client
}

func (f *httpFetcher) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://weibo.com/")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

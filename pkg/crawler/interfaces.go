package crawler

import (
	"context"

	"wbscraper/pkg/weibo"
)

// Fetcher retrieves the raw payload for one work unit. Satisfied by
// *weibo.Client.
type Fetcher interface {
	Fetch(ctx context.Context, unit weibo.Unit) ([]byte, error)
}

// Extractor maps raw payloads to record shapes. Satisfied by *weibo.Parser.
type Extractor interface {
	ExtractProfile(payload []byte, uid string) (weibo.RawProfile, error)
	ExtractPosts(payload []byte, uid string) ([]weibo.RawPost, string, error)
	ExtractPostDetail(payload []byte, uid string) (weibo.RawPost, error)
	ExtractComments(payload []byte, mid string) ([]weibo.RawComment, string, error)
}

// ImageMaterializer downloads remote image URLs and returns the local paths of
// the successful downloads. Satisfied by *images.Pool.
type ImageMaterializer interface {
	Materialize(ctx context.Context, subdir string, urls []string) []string
}

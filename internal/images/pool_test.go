package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (d *fakeDownloader) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	d.mu.Lock()
	d.calls = append(d.calls, url)
	d.mu.Unlock()
	if d.fail[url] {
		return nil, fmt.Errorf("unexpected status 404")
	}
	return []byte("image-bytes-" + url), nil
}

func newTestPool(t *testing.T) (*Pool, *fakeDownloader, string) {
	t.Helper()
	dir := t.TempDir()
	p, err := New(dir, 2, 1000, time.Second, nil)
	require.NoError(t, err)
	d := &fakeDownloader{fail: make(map[string]bool)}
	p.SetDownloader(d)
	return p, d, dir
}

func TestMaterialize(t *testing.T) {
	p, _, dir := newTestPool(t)

	urls := []string{
		"https://cdn.example/large/a.jpg",
		"https://cdn.example/large/b.png",
	}
	paths := p.Materialize(context.Background(), "100", urls)
	require.Len(t, paths, 2)

	for _, path := range paths {
		assert.Equal(t, filepath.Join(dir, "100"), filepath.Dir(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestMaterializeSkipsExisting(t *testing.T) {
	p, d, _ := newTestPool(t)

	urls := []string{"https://cdn.example/large/a.jpg"}
	first := p.Materialize(context.Background(), "100", urls)
	require.Len(t, first, 1)

	second := p.Materialize(context.Background(), "100", urls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0], second[0])

	// only the first call hit the network
	assert.Len(t, d.calls, 1)
}

func TestMaterializeSkipsFailures(t *testing.T) {
	p, d, _ := newTestPool(t)
	d.fail["https://cdn.example/large/broken.jpg"] = true

	urls := []string{
		"https://cdn.example/large/ok.jpg",
		"https://cdn.example/large/broken.jpg",
	}
	paths := p.Materialize(context.Background(), "100", urls)
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], filenameFor("https://cdn.example/large/ok.jpg"))
}

func TestMaterializeEmpty(t *testing.T) {
	p, d, _ := newTestPool(t)
	assert.Nil(t, p.Materialize(context.Background(), "100", nil))
	assert.Empty(t, d.calls)
}

func TestFilenameFor(t *testing.T) {
	a := filenameFor("https://cdn.example/large/a.jpg")
	b := filenameFor("https://cdn.example/large/b.jpg")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, filenameFor("https://cdn.example/large/a.jpg"), "stable across calls")
	assert.Equal(t, ".jpg", filepath.Ext(a))

	// query strings do not leak into the extension
	assert.Equal(t, ".png", filepath.Ext(filenameFor("https://cdn.example/x.png?token=abc")))
	// unknown or missing extensions fall back to jpg
	assert.Equal(t, ".jpg", filepath.Ext(filenameFor("https://cdn.example/no-ext")))
}

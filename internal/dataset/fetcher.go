// Package dataset downloads labeled flow datasets for offline evaluation and
// caches them locally so repeated runs do not hammer the upstream host.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Fetcher downloads datasets over HTTP with a local file cache.
type Fetcher struct {
	rest     *resty.Client
	cacheDir string
}

// NewFetcher builds a fetcher caching into cacheDir.
func NewFetcher(cacheDir string, timeout time.Duration) *Fetcher {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	return &Fetcher{rest: r, cacheDir: cacheDir}
}

// Fetch returns the local path of the dataset at url, downloading it on a
// cache miss. The cache key is the URL hash, so distinct URLs never collide.
func (f *Fetcher) Fetch(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("dataset URL is empty")
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	path := f.cachePath(url)
	if _, err := os.Stat(path); err == nil {
		log.Debug().Str("url", url).Str("path", path).Msg("dataset cache hit")
		return path, nil
	}

	log.Info().Str("url", url).Msg("downloading dataset")
	resp, err := f.rest.R().SetOutput(path).Get(url)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		os.Remove(path)
		return "", fmt.Errorf("API error: status %d", resp.StatusCode())
	}

	log.Info().Str("path", path).Msg("dataset cached")
	return path, nil
}

// Invalidate drops the cached copy for url, if any.
func (f *Fetcher) Invalidate(url string) error {
	err := os.Remove(f.cachePath(url))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *Fetcher) cachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	name := hex.EncodeToString(sum[:8]) + filepath.Ext(url)
	return filepath.Join(f.cacheDir, name)
}

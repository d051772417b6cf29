package bot

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultImageCacheSize is the number of sprite uploads remembered.
const DefaultImageCacheSize = 500

// ImageCache remembers the transport file id of every sprite URL already
// uploaded so later sends reuse it. Concurrent first sends of one URL share a
// single upload. It is safe for concurrent use.
type ImageCache struct {
	ids   *lru.Cache[string, string]
	group singleflight.Group
}

// NewImageCache creates an ImageCache holding up to size entries.
func NewImageCache(size int) (*ImageCache, error) {
	if size <= 0 {
		size = DefaultImageCacheSize
	}
	ids, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %w", err)
	}
	return &ImageCache{ids: ids}, nil
}

// Lookup returns the cached file id for url.
func (c *ImageCache) Lookup(url string) (string, bool) {
	return c.ids.Get(url)
}

// Len returns the number of cached ids.
func (c *ImageCache) Len() int { return c.ids.Len() }

// Send delivers a photo through send. send receives either the url with
// cached=false, in which case it must upload and return the new file id, or a
// cached file id with cached=true.
//
// Postcondition: send is called exactly once for this caller.
func (c *ImageCache) Send(ctx context.Context, url string, send func(ref string, cached bool) (string, error)) error {
	if id, ok := c.ids.Get(url); ok {
		_, err := send(id, true)
		return err
	}

	ran := false
	ch := c.group.DoChan(url, func() (any, error) {
		ran = true
		id, err := send(url, false)
		if err != nil {
			return "", err
		}
		if id != "" {
			c.ids.Add(url, id)
		}
		return id, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	if ran {
		return res.Err
	}
	if res.Err != nil || res.Val.(string) == "" {
		_, err := send(url, false)
		return err
	}
	_, err := send(res.Val.(string), true)
	return err
}

package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// #region cached

// sharedCallTimeout bounds a backend call shared by several callers. The
// shared call does not inherit any one caller's cancellation.
const sharedCallTimeout = 30 * time.Second

// Cached memoizes validator and extractor replies. Identical in-flight
// queries share one backend call; each caller still waits only as long as
// its own context allows. Acknowledgments are never cached so the learner
// does not hear the same remark twice.
type Cached struct {
	next        Oracle
	cache       *lru.Cache[string, string]
	group       singleflight.Group
	callTimeout time.Duration
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Oracle, size int) (*Cached, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("oracle cache: %w", err)
	}
	return &Cached{next: next, cache: c, callTimeout: sharedCallTimeout}, nil
}

// Ask implements Oracle.
func (c *Cached) Ask(ctx context.Context, q Query) (string, error) {
	if q.Purpose == PurposeAcknowledge {
		return c.next.Ask(ctx, q)
	}
	key := cacheKey(q)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()
		reply, err := c.next.Ask(callCtx, q)
		if err != nil {
			return "", err
		}
		c.cache.Add(key, reply)
		return reply, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

// Len reports the number of cached replies.
func (c *Cached) Len() int { return c.cache.Len() }

func cacheKey(q Query) string {
	return strings.Join([]string{
		string(q.Purpose),
		fmt.Sprintf("%.2f/%d", q.Temperature, q.MaxTokens),
		q.Instruction,
		strings.TrimSpace(q.Input),
	}, "\x00")
}

// #endregion

package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYesNo(t *testing.T) {
	cases := []struct {
		reply string
		want  bool
	}{
		{"Yes", true},
		{"yes.", true},
		{"  YES, it does.", true},
		{"No", false},
		{"no - the sentence is missing a verb", false},
		{"The answer is yes.", true},
		{"I would say no.", false},
		{"No, not yes.", false},
	}
	for _, c := range cases {
		got, err := ParseYesNo(c.reply)
		require.NoError(t, err, c.reply)
		assert.Equal(t, c.want, got, c.reply)
	}
}

func TestParseYesNoMalformed(t *testing.T) {
	for _, reply := range []string{"", "   ", "Maybe.", "It is hard to say yes or no", "nothing"} {
		_, err := ParseYesNo(reply)
		assert.ErrorIs(t, err, ErrMalformedResponse, reply)
	}
}

func TestScriptedReplaysInOrder(t *testing.T) {
	s := NewScripted("Yes", "No")
	s.Push(Reply{Err: ErrUnavailable})
	ctx := context.Background()

	r1, err := s.Ask(ctx, Query{Input: "a"})
	require.NoError(t, err)
	r2, err := s.Ask(ctx, Query{Input: "b"})
	require.NoError(t, err)
	_, err = s.Ask(ctx, Query{Input: "c"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.Ask(ctx, Query{Input: "d"})
	assert.ErrorIs(t, err, ErrUnavailable, "exhausted script falls back to Default")

	assert.Equal(t, "Yes", r1)
	assert.Equal(t, "No", r2)
	assert.Len(t, s.Calls(), 4)
	assert.Equal(t, 0, s.Remaining())
}

func TestCachedMemoizes(t *testing.T) {
	var n atomic.Int32
	backend := Func(func(ctx context.Context, q Query) (string, error) {
		n.Add(1)
		return "Yes", nil
	})
	c, err := NewCached(backend, 8)
	require.NoError(t, err)

	q := Query{Instruction: "Is it SVO?", Input: "I eat apples", Purpose: PurposeValidate}
	for i := 0; i < 3; i++ {
		got, err := c.Ask(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, "Yes", got)
	}
	assert.EqualValues(t, 1, n.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCachedSkipsAcknowledgments(t *testing.T) {
	var n atomic.Int32
	backend := Func(func(ctx context.Context, q Query) (string, error) {
		n.Add(1)
		return "Lovely!", nil
	})
	c, err := NewCached(backend, 8)
	require.NoError(t, err)

	q := Query{Input: "Lima", Purpose: PurposeAcknowledge}
	_, _ = c.Ask(context.Background(), q)
	_, _ = c.Ask(context.Background(), q)
	assert.EqualValues(t, 2, n.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	var n atomic.Int32
	backend := Func(func(ctx context.Context, q Query) (string, error) {
		if n.Add(1) == 1 {
			return "", ErrUnavailable
		}
		return "No", nil
	})
	c, err := NewCached(backend, 8)
	require.NoError(t, err)

	q := Query{Input: "x", Purpose: PurposeValidate}
	_, err = c.Ask(context.Background(), q)
	assert.ErrorIs(t, err, ErrUnavailable)
	got, err := c.Ask(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "No", got)
}

func TestCachedCollapsesConcurrentCalls(t *testing.T) {
	var n atomic.Int32
	release := make(chan struct{})
	backend := Func(func(ctx context.Context, q Query) (string, error) {
		n.Add(1)
		<-release
		return "Yes", nil
	})
	c, err := NewCached(backend, 8)
	require.NoError(t, err)

	q := Query{Input: "same", Purpose: PurposeValidate}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Ask(context.Background(), q)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, n.Load(), int32(5))
	assert.GreaterOrEqual(t, n.Load(), int32(1))
}

func TestCachedSharedCallOutlivesCancelledCaller(t *testing.T) {
	var n atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := Func(func(ctx context.Context, q Query) (string, error) {
		if n.Add(1) == 1 {
			close(entered)
		}
		select {
		case <-release:
			return "Yes", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	c, err := NewCached(backend, 8)
	require.NoError(t, err)
	q := Query{Input: "shared", Purpose: PurposeValidate}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Ask(firstCtx, q)
		firstErr <- err
	}()
	<-entered

	type result struct {
		reply string
		err   error
	}
	second := make(chan result, 1)
	go func() {
		reply, err := c.Ask(context.Background(), q)
		second <- result{reply, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrUnavailable)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, "Yes", res.reply)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), n.Load())
	assert.Equal(t, 1, c.Len())
}

func TestLimitedHonoursContext(t *testing.T) {
	backend := Func(func(ctx context.Context, q Query) (string, error) { return "Yes", nil })
	l := NewLimited(backend, 0.001, 1)

	_, err := l.Ask(context.Background(), Query{})
	require.NoError(t, err, "first call uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Ask(ctx, Query{})
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

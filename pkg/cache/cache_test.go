package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	c := NewLRUCache[string, int](2, "test", 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	require.False(t, ok)
	v, ok := c.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, v)

	c.Delete("c")
	_, ok = c.Get("c")
	require.False(t, ok)
	require.Equal(t, []string{"b"}, c.Keys())
}

func TestLRUCache_Expiration(t *testing.T) {
	c := NewLRUCache[string, int](4, "test", time.Millisecond)
	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c := NewLRUCache[string, int](4, "test", time.Minute)
	loads := 0
	load := func() (int, error) {
		loads++
		if loads == 1 {
			return 0, errors.New("unavailable")
		}
		return 42, nil
	}
	_, err := c.GetOrLoad("a", load)
	require.NotNil(t, err)
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("a", load)
		require.Nil(t, err)
		require.Equal(t, 42, v)
	}
	require.Equal(t, 2, loads)
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewCache[string](100)
	require.Nil(t, err)

	_, err = c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrorNotFound)

	require.Nil(t, c.SetMany(ctx, map[string]string{"a": "1", "b": "2"}, time.Minute))
	c.Wait()
	v, err := c.Get(ctx, "a")
	require.Nil(t, err)
	require.Equal(t, "1", v)

	require.Nil(t, c.Delete(ctx, "a"))
	c.Wait()
	_, err = c.Get(ctx, "a")
	require.ErrorIs(t, err, ErrorNotFound)
}

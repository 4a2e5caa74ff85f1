package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	c := NewMemCache()
	ctx := context.Background()

	_, found := c.get(ctx, "vid_common", "deadbeef")
	require.False(t, found)

	c.put(ctx, "vid_common", "deadbeef", []byte("hello"))
	val, found := c.get(ctx, "vid_common", "deadbeef")
	require.True(t, found)
	require.Equal(t, []byte("hello"), val)
}

func TestCacheNamespacesDoNotCollide(t *testing.T) {
	c := NewMemCache()
	ctx := context.Background()

	c.put(ctx, "vid_common", "x", []byte("a"))
	c.put(ctx, "payload", "x", []byte("b"))

	v1, _ := c.get(ctx, "vid_common", "x")
	v2, _ := c.get(ctx, "payload", "x")
	require.Equal(t, []byte("a"), v1)
	require.Equal(t, []byte("b"), v2)
}

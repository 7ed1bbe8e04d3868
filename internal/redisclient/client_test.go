package redisclient

import (
	"context"
	"testing"

	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	t.Skip("Integration test - requires redis")

	c, err := NewClient("localhost:6379", "", 15, "test")
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()

	require.NoError(t, c.Put(ctx, store.KeyToken, []byte("abc")))

	v, err := c.Get(ctx, store.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))

	require.NoError(t, c.Delete(ctx, store.KeyToken))

	_, err = c.Get(ctx, store.KeyToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestKeyNamespacing(t *testing.T) {
	c := &Client{namespace: "alice"}
	assert.Equal(t, "storefront:alice:cart", c.key(store.KeyCart))
}

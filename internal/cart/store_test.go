package cart

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartAddIsIdempotent(t *testing.T) {
	store := NewStore(4)
	c := store.GetOrCreate("session-1")

	c.Add("course-5")
	c.Add("course-5")

	assert.Equal(t, []string{"course-5"}, c.Items())
}

func TestCartRemoveMissingIsNoOp(t *testing.T) {
	store := NewStore(4)
	c := store.GetOrCreate("session-1")
	c.Add("course-1")

	c.Remove("course-2")

	assert.Equal(t, []string{"course-1"}, c.Items())
}

func TestCartItemsReturnsSnapshot(t *testing.T) {
	store := NewStore(4)
	c := store.GetOrCreate("session-1")
	c.Add("course-1")

	items := c.Items()
	c.Add("course-2")

	assert.Len(t, items, 1)
	assert.Len(t, c.Items(), 2)
}

func TestStoreGetOrCreateReturnsSameInstance(t *testing.T) {
	store := NewStore(4)
	first := store.GetOrCreate("session-1")
	second := store.GetOrCreate("session-1")
	require.Same(t, first, second)

	other := store.GetOrCreate("session-2")
	require.NotSame(t, first, other)
}

func TestStoreDrop(t *testing.T) {
	store := NewStore(4)
	store.GetOrCreate("session-1").Add("course-1")

	store.Drop("session-1")

	_, ok := store.Get("session-1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.GetOrCreate("session-1").Len())
}

func TestStoreConcurrentGetOrCreateSingleWinner(t *testing.T) {
	store := NewStore(8)

	const goroutines = 32
	carts := make([]*Cart, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := store.GetOrCreate("session-1")
			c.Add(fmt.Sprintf("course-%d", i%4))
			carts[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		require.Same(t, carts[0], carts[i], "create race must not produce two carts for one id")
	}
	assert.Len(t, carts[0].Items(), 4)
}

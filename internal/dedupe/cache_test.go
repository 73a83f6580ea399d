// ABOUTME: Tests for the submission cache used to suppress duplicate repair orders.
// ABOUTME: Validates TTL expiration, size limits, eviction, cleanup, and concurrency safety.

package dedupe

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Lookup_NotSeen(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	_, ok := cache.Lookup("never-seen-key")
	assert.False(t, ok)
}

func TestCache_RememberAndLookup(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Remember("my-key", "ro-1")

	got, ok := cache.Lookup("my-key")
	require.True(t, ok)
	assert.Equal(t, "ro-1", got)
}

func TestCache_Remember_Overwrites(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Remember("k", "first")
	cache.Remember("k", "second")

	got, _ := cache.Lookup("k")
	assert.Equal(t, "second", got)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Lookup_Expired(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Remember("expiring-key", "ro-1")
	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Lookup("expiring-key")
	assert.False(t, ok)
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Remember("a", "1")
	cache.Remember("b", "2")
	cache.Remember("c", "3")
	cache.Remember("d", "4")

	_, ok := cache.Lookup("a")
	assert.False(t, ok, "oldest key should be evicted")
	for _, k := range []string{"b", "c", "d"} {
		_, ok := cache.Lookup(k)
		assert.True(t, ok, "key %q should remain", k)
	}
	assert.Equal(t, 3, cache.Len())
}

func TestCache_RememberRefreshesPosition(t *testing.T) {
	cache := New(5*time.Minute, 2)
	defer cache.Close()

	cache.Remember("a", "1")
	cache.Remember("b", "2")
	cache.Remember("a", "1") // a is now newest
	cache.Remember("c", "3") // evicts b

	_, okA := cache.Lookup("a")
	_, okB := cache.Lookup("b")
	assert.True(t, okA)
	assert.False(t, okB)
}

func TestCache_Forget(t *testing.T) {
	cache := New(5*time.Minute, 10)
	defer cache.Close()

	cache.Remember("k", "v")
	cache.Forget("k")
	cache.Forget("missing")

	_, ok := cache.Lookup("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Reserve_ThenRemember(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()
	ctx := context.Background()

	_, seen, err := cache.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen, "first caller owns the key")

	_, ok := cache.Lookup("k")
	assert.False(t, ok, "a pending reservation has no value yet")

	cache.Remember("k", "ro-1")

	got, seen, err := cache.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, "ro-1", got)
}

func TestCache_Reserve_WaitsForPendingOwner(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()
	ctx := context.Background()

	_, seen, err := cache.Reserve(ctx, "k")
	require.NoError(t, err)
	require.False(t, seen)

	type result struct {
		value string
		seen  bool
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, s, err := cache.Reserve(ctx, "k")
		done <- result{v, s, err}
	}()

	select {
	case <-done:
		t.Fatal("second Reserve returned before the owner resolved the key")
	case <-time.After(30 * time.Millisecond):
	}

	cache.Remember("k", "ro-1")

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.seen)
		assert.Equal(t, "ro-1", r.value)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Remember")
	}
}

func TestCache_Reserve_ForgetHandsOverOwnership(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()
	ctx := context.Background()

	_, _, err := cache.Reserve(ctx, "k")
	require.NoError(t, err)

	done := make(chan bool, 1)
	go func() {
		_, seen, _ := cache.Reserve(ctx, "k")
		done <- seen
	}()

	time.Sleep(10 * time.Millisecond)
	cache.Forget("k")

	select {
	case seen := <-done:
		assert.False(t, seen, "after Forget the waiter becomes the new owner")
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Forget")
	}
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Reserve_ContextCanceled(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	_, _, err := cache.Reserve(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, seen, err := cache.Reserve(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, seen)
}

func TestCache_Reserve_ExpiredReservationIsReplaced(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()
	ctx := context.Background()

	_, _, err := cache.Reserve(ctx, "k")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, seen, err := cache.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestCache_Reserve_ConcurrentSingleOwner(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()
	ctx := context.Background()

	var (
		mu     sync.Mutex
		owners int
		wg     sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, seen, err := cache.Reserve(ctx, "k")
			if err != nil || seen {
				return
			}
			mu.Lock()
			owners++
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			cache.Remember("k", "ro-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, owners)
}

func TestCache_RunCleanup(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Remember("old", "1")
	time.Sleep(20 * time.Millisecond)
	cache.Remember("fresh", "2")

	cache.runCleanup()

	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Lookup("fresh")
	assert.True(t, ok)
}

func TestCache_Close_Idempotent(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("tok", "E1", "Screen cracked"), Key("tok", "E1", "Screen cracked"))
	assert.NotEqual(t, Key("tok", "E1", "x"), Key("other", "E1", "x"))
	// Field boundaries matter
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.NotContains(t, Key("secret-token"), "secret")
}

func TestCache_Concurrent(t *testing.T) {
	cache := New(5*time.Minute, 1000)
	defer cache.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("g%d-%d", g, i)
				cache.Remember(key, key)
				got, ok := cache.Lookup(key)
				assert.True(t, ok)
				assert.Equal(t, key, got)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 800, cache.Len())
}

package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialisesWriters(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, "Sales", 500*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()

	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, "Sales", 500*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesOnError(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client, Prefix: "test:lock"}
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "Visits", time.Minute, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("test:lock:Visits"))
}

func TestWithLockMaxWait(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set("ledger:lock:Tickets", "someone-else"))

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	called := false
	err := locker.WithLock(context.Background(), "Tickets", time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.False(t, called)
}

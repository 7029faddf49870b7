package ids

import (
	"context"
	"regexp"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^INV-20260314-[0-9A-Z]+$`)

func fixedClock() time.Time {
	// 20:00 UTC is already the next day in Asia/Kolkata
	return time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)
}

func TestGeneratorUsesLocalDate(t *testing.T) {
	seq, err := NewSnowflakeSequence(1)
	require.NoError(t, err)
	g := &Generator{Seq: seq, Location: LoadLocation("Asia/Kolkata"), Now: fixedClock}

	id, err := g.New(context.Background(), Invoice)
	require.NoError(t, err)
	require.Regexp(t, idPattern, id)
}

func TestSnowflakeSuffixesAreUnique(t *testing.T) {
	seq, err := NewSnowflakeSequence(7)
	require.NoError(t, err)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		s, err := seq.Next(context.Background(), Visit, "")
		require.NoError(t, err)
		require.False(t, seen[s], "duplicate suffix %s", s)
		seen[s] = true
	}
}

func TestRedisSequencePerPrefixPerDay(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	seq := &RedisSequence{R: client}
	ctx := context.Background()

	a, err := seq.Next(ctx, Ticket, "20260314")
	require.NoError(t, err)
	b, err := seq.Next(ctx, Ticket, "20260314")
	require.NoError(t, err)
	c, err := seq.Next(ctx, Demo, "20260314")
	require.NoError(t, err)

	require.Equal(t, "0001", a)
	require.Equal(t, "0002", b)
	require.Equal(t, "0001", c)
	require.Equal(t, 48*time.Hour, mr.TTL("ids:seq:TKT:20260314"))
}

func TestUniqueSkipsTakenIdentifiers(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	g := &Generator{Seq: &RedisSequence{R: client}, Now: fixedClock}
	taken := map[string]bool{"INV-20260314-0001": true, "INV-20260314-0002": true}

	id, err := g.Unique(context.Background(), Invoice, func(_ context.Context, id string) (bool, error) {
		return taken[id], nil
	})
	require.NoError(t, err)
	require.Equal(t, "INV-20260314-0003", id)

	g.MaxAttempts = 2
	_, err = g.Unique(context.Background(), Invoice, func(context.Context, string) (bool, error) { return true, nil })
	require.ErrorIs(t, err, ErrExhausted)
}

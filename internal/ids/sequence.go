package ids

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
)

// SnowflakeSequence renders snowflake IDs in upper-case base 36. IDs are
// strictly increasing per node, so suffixes never repeat within a process;
// distinct processes need distinct node numbers.
type SnowflakeSequence struct {
	node *snowflake.Node
}

// NewSnowflakeSequence creates a sequence for node (0-1023).
func NewSnowflakeSequence(node int64) (*SnowflakeSequence, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("ids: snowflake node: %w", err)
	}
	return &SnowflakeSequence{node: n}, nil
}

// Next ignores prefix and day.
func (s *SnowflakeSequence) Next(context.Context, Prefix, string) (string, error) {
	return strings.ToUpper(s.node.Generate().Base36()), nil
}

// RedisSequence keeps one INCR counter per prefix per day, shared by every
// process pointing at the same Redis.
type RedisSequence struct {
	R      *redis.Client
	Prefix string
	// TTL keeps old day counters around long enough to cover timezone edges.
	TTL time.Duration
}

// Next increments the day's counter and zero-pads it to four digits.
func (s *RedisSequence) Next(ctx context.Context, prefix Prefix, day string) (string, error) {
	key := s.key(prefix, day)
	n, err := s.R.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	if n == 1 {
		ttl := s.TTL
		if ttl <= 0 {
			ttl = 48 * time.Hour
		}
		if err := s.R.Expire(ctx, key, ttl).Err(); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%04d", n), nil
}

func (s *RedisSequence) key(prefix Prefix, day string) string {
	base := strings.TrimSuffix(s.Prefix, ":")
	if base == "" {
		base = "ids:seq"
	}
	return base + ":" + string(prefix) + ":" + day
}

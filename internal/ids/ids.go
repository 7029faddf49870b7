package ids

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Prefix names the record type an identifier belongs to.
type Prefix string

const (
	Invoice    Prefix = "INV"
	Visit      Prefix = "VISIT"
	Attendance Prefix = "ATT"
	Ticket     Prefix = "TKT"
	Travel     Prefix = "TRV"
	Demo       Prefix = "DEMO"
)

// DefaultTimezone stamps identifiers with the business's local date.
const DefaultTimezone = "Asia/Kolkata"

const dayLayout = "20060102"

// ErrExhausted is returned when Unique keeps hitting existing identifiers.
var ErrExhausted = errors.New("ids: no unique identifier after retries")

// Sequence produces the suffix part. Implementations must never return the
// same suffix twice for one prefix and day.
type Sequence interface {
	Next(ctx context.Context, prefix Prefix, day string) (string, error)
}

// Generator composes {PREFIX}-{YYYYMMDD}-{SUFFIX} identifiers.
type Generator struct {
	Seq      Sequence
	Location *time.Location
	Now      func() time.Time
	// MaxAttempts bounds Unique; zero means 5.
	MaxAttempts int
}

// LoadLocation resolves name, falling back to a fixed +05:30 zone when the
// tz database is unavailable.
func LoadLocation(name string) *time.Location {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+1800)
}

// New returns a fresh identifier without checking the store.
func (g *Generator) New(ctx context.Context, prefix Prefix) (string, error) {
	if g.Seq == nil {
		return "", errors.New("ids: sequence not configured")
	}
	day := g.now().Format(dayLayout)
	suffix, err := g.Seq.Next(ctx, prefix, day)
	if err != nil {
		return "", fmt.Errorf("ids: next %s suffix: %w", prefix, err)
	}
	return string(prefix) + "-" + day + "-" + suffix, nil
}

// Unique draws identifiers until exists reports one as unused.
func (g *Generator) Unique(ctx context.Context, prefix Prefix, exists func(ctx context.Context, id string) (bool, error)) (string, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	for i := 0; i < attempts; i++ {
		id, err := g.New(ctx, prefix)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return id, nil
		}
		taken, err := exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: prefix %s", ErrExhausted, prefix)
}

// Today returns the current date in the generator's zone.
func (g *Generator) Today() time.Time {
	return g.now()
}

func (g *Generator) now() time.Time {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	loc := g.Location
	if loc == nil {
		loc = LoadLocation(DefaultTimezone)
	}
	return now().In(loc)
}

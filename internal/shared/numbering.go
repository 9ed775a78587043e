package shared

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultNumberRetries bounds fallback attempts after a number collision.
const DefaultNumberRetries = 3

// FormatNumber renders prefix-00001 style document numbers.
func FormatNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%05d", prefix, seq)
}

// ParseSequence extracts the sequential part of a number produced by
// FormatNumber, ignoring any collision suffix.
func ParseSequence(prefix, number string) (int64, bool) {
	rest, ok := strings.CutPrefix(number, prefix+"-")
	if !ok {
		return 0, false
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		rest = rest[:i]
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

// Sequencer allocates numbers for one series of documents.
type Sequencer struct {
	Prefix     string
	Constraint string
	Retries    int
	Now        func() time.Time
}

// Assign inserts a record under a generated number.
//
// The first attempt uses last+1. Each unique violation on the number
// constraint triggers a fallback number suffixed with the current unix
// millis followed by the attempt index. Every attempt runs in its own savepoint so the surrounding
// transaction survives a conflict. An explicit number is tried once.
func (q Sequencer) Assign(
	ctx context.Context,
	sp Savepointer,
	explicit string,
	last func(context.Context) (int64, error),
	insert func(context.Context, string) error,
) (string, error) {
	attempt := func(number string) error {
		return sp.Savepoint(ctx, func(ctx context.Context) error {
			return insert(ctx, number)
		})
	}
	if explicit != "" {
		err := attempt(explicit)
		if IsDuplicateKey(err, q.Constraint) {
			return "", Invalid("number", "%s is already in use", explicit)
		}
		return explicit, err
	}
	seq, err := last(ctx)
	if err != nil {
		return "", fmt.Errorf("numbering %s: %w", q.Prefix, err)
	}
	base := FormatNumber(q.Prefix, seq+1)
	err = attempt(base)
	if err == nil {
		return base, nil
	}
	if !IsDuplicateKey(err, q.Constraint) {
		return "", err
	}
	retries := q.Retries
	if retries <= 0 {
		retries = DefaultNumberRetries
	}
	now := q.Now
	if now == nil {
		now = time.Now
	}
	for i := 1; i <= retries; i++ {
		number := fmt.Sprintf("%s-%d%d", base, now().UnixMilli(), i)
		err = attempt(number)
		if err == nil {
			return number, nil
		}
		if !IsDuplicateKey(err, q.Constraint) {
			return "", err
		}
	}
	return "", &DuplicateNumberError{Prefix: q.Prefix, Attempts: retries + 1}
}

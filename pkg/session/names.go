package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxNameAttempts is the default number of names RetryOnNameInUse tries.
const MaxNameAttempts = 16

// UniqueName returns the name to try on the given attempt: base followed by
// one "+" per previous attempt ("bob", "bob+", "bob++", ...).
func UniqueName(base string, attempt int) string {
	return base + strings.Repeat("+", attempt)
}

// RetryOnNameInUse calls join with successive UniqueName candidates until it
// succeeds, fails with an error other than ErrNameInUse, or maxAttempts
// names have been tried. It returns the name that joined.
func RetryOnNameInUse(ctx context.Context, base string, maxAttempts int, join func(ctx context.Context, name string) error) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = MaxNameAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := UniqueName(base, attempt)
		err := join(ctx, name)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, ErrNameInUse) {
			return "", err
		}
	}
	return "", opErr("join", base, fmt.Errorf("%w after %d attempts", ErrNameInUse, maxAttempts))
}

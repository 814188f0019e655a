package common

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Short text for an HTTP status returned by an API
func StatusMessage(code int) string {
	if message := http.StatusText(code); message != "" {
		return message
	}
	return fmt.Sprintf("Status %d", code)
}

// Run task up to attempts times, immediately retrying while retryable says so.
// Each attempt gets its own timeout when timeout is positive.
// Returns the number of attempts made and the last error
func Retry(ctx context.Context, attempts int, timeout Timeout, retryable func(error) bool, task func(context.Context) error) (int, error) {

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := timeout.apply(ctx)
		err = task(attemptCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if !retryable(err) {
			return attempt, err
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("attempts", attempts).Msg("Attempt failed")
	}
	return attempts, err
}

// Per-attempt timeout. Zero means no timeout besides the parent context
type Timeout time.Duration

func (timeout Timeout) apply(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeout))
}

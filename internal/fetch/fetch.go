// Package fetch walks paginated provider collections with bounded per-page
// retries. Pages are fetched sequentially; a page that keeps failing aborts
// the walk and the caller gets everything collected up to that point.
package fetch

import (
	"context"
	"time"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/utils"
)

// Page is one page of a provider collection. NextToken is the opaque
// continuation handle; empty means the collection is exhausted.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// PageFunc fetches a single page. The first call receives an empty token.
type PageFunc[T any] func(ctx context.Context, pageToken string) (*Page[T], error)

// Config bounds a collection walk.
type Config struct {
	// MaxPages caps the number of pages fetched; 0 means no cap.
	MaxPages int
	// MaxItems caps the number of items collected; 0 means no cap.
	MaxItems int
	// MaxRetries is the number of extra attempts per page on retryable
	// failures.
	MaxRetries int
	// RetryDelay is the fixed delay between per-page attempts.
	RetryDelay time.Duration
}

// DefaultConfig bounds walks the way both provider clients use them:
// two retries per page, one second apart.
func DefaultConfig() Config {
	return Config{
		MaxPages:   50,
		MaxItems:   500,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// Result is the outcome of a walk. Err is non-nil when the walk aborted
// early; Items then holds the partial result.
type Result[T any] struct {
	Items []T
	Pages int
	Err   error
}

// Complete reports whether the whole collection (within the configured
// caps) was fetched.
func (r Result[T]) Complete() bool {
	return r.Err == nil
}

// All walks the collection from the first page. Retryable page failures
// (429, 5xx, timeouts) are retried per page; anything else aborts
// immediately with the items collected so far.
func All[T any](ctx context.Context, config Config, fn PageFunc[T]) Result[T] {
	retry := utils.RetryConfig{
		MaxAttempts:     config.MaxRetries + 1,
		InitialDelay:    config.RetryDelay,
		MaxDelay:        config.RetryDelay,
		BackoffFactor:   1.0,
		RetryableErrors: errors.IsRetryable,
	}

	var result Result[T]
	pageToken := ""

	for {
		var page *Page[T]
		err := utils.RetryWithBackoff(ctx, retry, func() error {
			var err error
			page, err = fn(ctx, pageToken)
			return err
		})
		if err != nil {
			result.Err = err
			return result
		}

		result.Pages++
		for _, item := range page.Items {
			result.Items = append(result.Items, item)
			if config.MaxItems > 0 && len(result.Items) >= config.MaxItems {
				return result
			}
		}

		if page.NextToken == "" {
			return result
		}
		if config.MaxPages > 0 && result.Pages >= config.MaxPages {
			return result
		}
		pageToken = page.NextToken
	}
}

package fetch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/common/errors"
)

func fastConfig() Config {
	return Config{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
}

// pages builds a PageFunc serving fixed pages keyed by token.
func pages(t *testing.T, sizes ...int) PageFunc[int] {
	t.Helper()
	return func(ctx context.Context, pageToken string) (*Page[int], error) {
		index := 0
		if pageToken != "" {
			if _, err := fmt.Sscanf(pageToken, "page-%d", &index); err != nil {
				return nil, errors.ValidationError("bad page token")
			}
		}
		if index >= len(sizes) {
			return nil, errors.ValidationError("page out of range")
		}

		page := &Page[int]{}
		for i := 0; i < sizes[index]; i++ {
			page.Items = append(page.Items, index*100+i)
		}
		if index+1 < len(sizes) {
			page.NextToken = fmt.Sprintf("page-%d", index+1)
		}
		return page, nil
	}
}

func TestAll_WalksEveryPage(t *testing.T) {
	result := All(context.Background(), fastConfig(), pages(t, 10, 10, 5))

	require.NoError(t, result.Err)
	assert.True(t, result.Complete())
	assert.Len(t, result.Items, 25)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 0, result.Items[0])
	assert.Equal(t, 204, result.Items[24])
}

func TestAll_SinglePage(t *testing.T) {
	result := All(context.Background(), fastConfig(), pages(t, 3))

	require.NoError(t, result.Err)
	assert.Len(t, result.Items, 3)
	assert.Equal(t, 1, result.Pages)
}

func TestAll_RetriesTransientPageFailure(t *testing.T) {
	attempts := 0
	inner := pages(t, 2, 2)
	fn := func(ctx context.Context, pageToken string) (*Page[int], error) {
		if pageToken == "page-1" {
			attempts++
			if attempts < 3 {
				return nil, errors.TransientError("provider returned 503", nil)
			}
		}
		return inner(ctx, pageToken)
	}

	result := All(context.Background(), fastConfig(), fn)

	require.NoError(t, result.Err)
	assert.Len(t, result.Items, 4)
	assert.Equal(t, 3, attempts)
}

func TestAll_NonRetryableFailureAbortsWithPartialResult(t *testing.T) {
	inner := pages(t, 2, 2, 2)
	fn := func(ctx context.Context, pageToken string) (*Page[int], error) {
		if pageToken == "page-2" {
			return nil, errors.ProviderRejectedError(403, "insufficient scope")
		}
		return inner(ctx, pageToken)
	}

	result := All(context.Background(), fastConfig(), fn)

	require.Error(t, result.Err)
	assert.False(t, result.Complete())
	assert.True(t, errors.IsType(result.Err, errors.ErrTypeProviderRejected))
	assert.Len(t, result.Items, 4)
	assert.Equal(t, 2, result.Pages)
}

func TestAll_ExhaustedRetriesAbort(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, pageToken string) (*Page[int], error) {
		calls++
		return nil, errors.TransientError("provider returned 502", nil)
	}

	result := All(context.Background(), fastConfig(), fn)

	require.Error(t, result.Err)
	assert.True(t, errors.IsType(result.Err, errors.ErrTypeTransient))
	assert.Equal(t, 3, calls)
	assert.Empty(t, result.Items)
}

func TestAll_MaxItemsStopsEarly(t *testing.T) {
	config := fastConfig()
	config.MaxItems = 15

	result := All(context.Background(), config, pages(t, 10, 10, 10))

	require.NoError(t, result.Err)
	assert.Len(t, result.Items, 15)
	assert.Equal(t, 2, result.Pages)
}

func TestAll_MaxPagesStopsEarly(t *testing.T) {
	config := fastConfig()
	config.MaxPages = 2

	result := All(context.Background(), config, pages(t, 10, 10, 10))

	require.NoError(t, result.Err)
	assert.Len(t, result.Items, 20)
	assert.Equal(t, 2, result.Pages)
}

func TestNextFromLinkHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name: "next among multiple rels",
			header: `<https://school.test/api/v1/courses?page=2>; rel="current",` +
				`<https://school.test/api/v1/courses?page=3>; rel="next",` +
				`<https://school.test/api/v1/courses?page=9>; rel="last"`,
			want: "https://school.test/api/v1/courses?page=3",
		},
		{
			name:   "no next on last page",
			header: `<https://school.test/api/v1/courses?page=9>; rel="last"`,
			want:   "",
		},
		{
			name:   "empty header",
			header: "",
			want:   "",
		},
		{
			name:   "unquoted rel",
			header: `<https://school.test/api?page=2>; rel=next`,
			want:   "https://school.test/api?page=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextFromLinkHeader(tt.header))
		})
	}
}

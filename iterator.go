package xrplsale

import (
	"context"
	"iter"
)

// defaultPerPage is the page size used when iterating with a zero PerPage.
const defaultPerPage = 50

// PageFunc fetches the given 1-based page and reports whether more pages follow.
type PageFunc[T any] func(ctx context.Context, page int) (items []T, hasMore bool, err error)

// Paginate returns an iterator over every item of a paged listing. Pages are fetched
// lazily, one at a time, when the consumer reaches the end of the previous page, and each
// range over the iterator starts again at page 1. A fetch failure is yielded once as the
// final element.
func Paginate[T any](ctx context.Context, fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page := 1; ; page++ {
			if page > 1 {
				if err := ctx.Err(); err != nil {
					yield(*new(T), err)
					return
				}
			}

			items, hasMore, err := fetch(ctx, page)
			if err != nil {
				yield(*new(T), err)
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			// An empty page ends the walk even if the server claims more.
			if !hasMore || len(items) == 0 {
				return
			}
		}
	}
}

// listFunc fetches one page of a list endpoint.
type listFunc[T any] func(context.Context, PageParams) (*Page[T], error)

// iteratePages walks a list endpoint with the given page size.
func iteratePages[T any](ctx context.Context, perPage int, list listFunc[T]) iter.Seq2[T, error] {
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	return Paginate(ctx, func(ctx context.Context, page int) ([]T, bool, error) {
		p, err := list(ctx, PageParams{Page: page, PerPage: perPage})
		if err != nil {
			return nil, false, err
		}
		return p.Data, p.HasMore(), nil
	})
}

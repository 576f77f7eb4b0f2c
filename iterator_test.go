package xrplsale

import (
	"context"
	"errors"
	"testing"
)

// pagesFetcher serves fixed pages and counts fetches.
func pagesFetcher(t *testing.T, pages [][]string, calls *int) PageFunc[string] {
	t.Helper()
	return func(ctx context.Context, page int) ([]string, bool, error) {
		*calls++
		if page < 1 || page > len(pages) {
			t.Fatalf("unexpected page number: %d", page)
		}
		return pages[page-1], page < len(pages), nil
	}
}

func TestPaginate_SinglePage(t *testing.T) {
	calls := 0
	fetch := pagesFetcher(t, [][]string{{"item1", "item2", "item3"}}, &calls)

	var collected []string
	for item, err := range Paginate(context.Background(), fetch) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		collected = append(collected, item)
	}

	if len(collected) != 3 {
		t.Errorf("expected 3 items, got %d", len(collected))
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
}

func TestPaginate_MultiplePagesInOrder(t *testing.T) {
	calls := 0
	fetch := pagesFetcher(t, [][]string{{"a", "b"}, {"c"}}, &calls)

	var collected []string
	for item, err := range Paginate(context.Background(), fetch) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		collected = append(collected, item)
	}

	want := []string{"a", "b", "c"}
	if len(collected) != len(want) {
		t.Fatalf("expected %v, got %v", want, collected)
	}
	for i, item := range collected {
		if item != want[i] {
			t.Errorf("item[%d] = %v, want %v", i, item, want[i])
		}
	}
	if calls != 2 {
		t.Errorf("expected 2 fetches, got %d", calls)
	}
}

func TestPaginate_ErrorOnSecondPage(t *testing.T) {
	expectedErr := errors.New("second page error")

	calls := 0
	fetch := func(ctx context.Context, page int) ([]string, bool, error) {
		calls++
		if page == 1 {
			return []string{"a", "b"}, true, nil
		}
		if page == 2 {
			return nil, false, expectedErr
		}
		t.Fatalf("fetched page %d after a failure", page)
		return nil, false, nil
	}

	var collected []string
	var errs []error
	for item, err := range Paginate(context.Background(), fetch) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(errs) > 0 {
			t.Fatalf("item %q yielded after the failure", item)
		}
		collected = append(collected, item)
	}

	if len(collected) != 2 || collected[0] != "a" || collected[1] != "b" {
		t.Errorf("expected [a b] before the failure, got %v", collected)
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error, got %d", len(errs))
	}
	if !errors.Is(errs[0], expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, errs[0])
	}
	if calls != 2 {
		t.Errorf("expected 2 fetches, got %d", calls)
	}
}

func TestPaginate_ErrorOnFirstPage(t *testing.T) {
	expectedErr := errors.New("fetch error")

	fetch := func(ctx context.Context, page int) ([]string, bool, error) {
		return nil, true, expectedErr
	}

	var errCount int
	for _, err := range Paginate(context.Background(), fetch) {
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		errCount++
	}

	if errCount != 1 {
		t.Errorf("expected 1 error, got %d", errCount)
	}
}

func TestPaginate_Lazy(t *testing.T) {
	calls := 0
	fetch := pagesFetcher(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, &calls)

	for item, err := range Paginate(context.Background(), fetch) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item == "b" {
			break
		}
	}

	if calls != 1 {
		t.Errorf("expected only the first page to be fetched, got %d fetches", calls)
	}
}

func TestPaginate_Restartable(t *testing.T) {
	calls := 0
	seq := Paginate(context.Background(), pagesFetcher(t, [][]string{{"a"}, {"b"}}, &calls))

	for range 2 {
		var collected []string
		for item, err := range seq {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			collected = append(collected, item)
		}
		if len(collected) != 2 || collected[0] != "a" {
			t.Errorf("each range should start at page 1, got %v", collected)
		}
	}

	if calls != 4 {
		t.Errorf("expected 4 fetches over two ranges, got %d", calls)
	}
}

func TestPaginate_EmptyPageStops(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, page int) ([]string, bool, error) {
		calls++
		if page == 1 {
			return []string{"item1"}, true, nil
		}
		return []string{}, true, nil
	}

	var collected []string
	for item, err := range Paginate(context.Background(), fetch) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		collected = append(collected, item)
	}

	if len(collected) != 1 {
		t.Errorf("expected 1 item, got %d", len(collected))
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (one returning items, one empty), got %d", calls)
	}
}

func TestPaginate_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	fetch := func(ctx context.Context, page int) ([]string, bool, error) {
		calls++
		return []string{"item1", "item2"}, true, nil
	}

	var collected []string
	var gotErr error
	for item, err := range Paginate(ctx, fetch) {
		if err != nil {
			gotErr = err
			break
		}
		collected = append(collected, item)

		if len(collected) == 2 {
			cancel()
		}
	}

	if len(collected) != 2 {
		t.Errorf("expected 2 items before cancellation, got %d", len(collected))
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("expected context.Canceled error, got %v", gotErr)
	}
	if calls != 1 {
		t.Errorf("expected no fetch after cancellation, got %d fetches", calls)
	}
}

func TestIteratePages_PageParams(t *testing.T) {
	var seen []PageParams
	list := func(ctx context.Context, p PageParams) (*Page[int], error) {
		seen = append(seen, p)
		return &Page[int]{
			Data:       []int{p.Page},
			Pagination: &Pagination{Page: p.Page, PerPage: p.PerPage, Total: 3, TotalPages: 3},
		}, nil
	}

	var got []int
	for n, err := range iteratePages(context.Background(), 0, list) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, n)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %v", got)
	}
	for i, p := range seen {
		if p.Page != i+1 {
			t.Errorf("call %d requested page %d", i, p.Page)
		}
		if p.PerPage != defaultPerPage {
			t.Errorf("call %d requested per_page %d, want %d", i, p.PerPage, defaultPerPage)
		}
	}
}

func TestPagination_HasMore(t *testing.T) {
	tests := []struct {
		name string
		p    *Pagination
		want bool
	}{
		{name: "nil", p: nil, want: false},
		{name: "total pages remaining", p: &Pagination{Page: 1, TotalPages: 2}, want: true},
		{name: "last page", p: &Pagination{Page: 2, TotalPages: 2}, want: false},
		{name: "total only remaining", p: &Pagination{Page: 1, PerPage: 2, Total: 3}, want: true},
		{name: "total only exhausted", p: &Pagination{Page: 2, PerPage: 2, Total: 3}, want: false},
		{name: "no totals", p: &Pagination{Page: 1, PerPage: 50}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.HasMore(); got != tt.want {
				t.Errorf("HasMore() = %v, want %v", got, tt.want)
			}
		})
	}
}

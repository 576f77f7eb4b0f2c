package xrplsale

// Pagination is the paging metadata attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// HasMore reports whether pages follow the one described. Without total_pages it falls
// back to comparing the item total against the pages seen so far.
func (p *Pagination) HasMore() bool {
	if p == nil {
		return false
	}
	if p.TotalPages > 0 {
		return p.Page < p.TotalPages
	}
	if p.Total > 0 && p.PerPage > 0 {
		return p.Page*p.PerPage < p.Total
	}
	return false
}

// PageParams selects a page of a list endpoint. Pages are 1-based.
type PageParams struct {
	Page    int `url:"page,omitempty"`
	PerPage int `url:"per_page,omitempty"`
}

// Page is a single page of a list endpoint.
type Page[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// HasMore reports whether a following page exists.
func (p *Page[T]) HasMore() bool {
	return p != nil && p.Pagination.HasMore()
}

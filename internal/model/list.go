package model

// Pagination limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListParams selects one page of a filtered, sorted collection. Page is
// 1-based.
type ListParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Search   string `json:"search,omitempty"`
	Sort     string `json:"sort,omitempty"`
	Order    string `json:"order,omitempty"`
}

// Normalize clamps the params to valid values.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.Order != OrderDesc {
		p.Order = OrderAsc
	}
	return p
}

// Offset returns the index of the first record on the page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Page is one page of results plus the size of the whole filtered set.
type Page[T any] struct {
	Data       []T `json:"data"`
	TotalCount int `json:"totalCount"`
}

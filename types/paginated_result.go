package types

// PaginationResult wraps a limit/skip page of items together with the total
// row count, so clients can page history and task listings without a second
// count request.
type PaginationResult[T any] struct {
	Items      []T  `json:"items"`
	TotalItems int  `json:"total_items"`
	Limit      int  `json:"limit"`
	Skip       int  `json:"skip"`
	HasMore    bool `json:"has_more"`
}

func NewPaginationResult[T any](items []T, totalItems, limit, skip int) PaginationResult[T] {
	if items == nil {
		items = []T{}
	}
	return PaginationResult[T]{
		Items:      items,
		TotalItems: totalItems,
		Limit:      limit,
		Skip:       skip,
		HasMore:    skip+len(items) < totalItems,
	}
}

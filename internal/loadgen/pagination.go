package loadgen

import (
	"context"
	"fmt"
)

// PageCount returns ceil(total / pageSize).
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// PageFetcher fetches the page starting at offset and reports the total
// number of elements.
type PageFetcher[T any] func(ctx context.Context, offset int) (items []T, total int, err error)

// ListAll fetches exactly PageCount(total, pageSize) pages, at least one,
// advancing offset by pageSize. It trusts the total reported by the first
// page rather than stopping at an empty page.
func ListAll[T any](ctx context.Context, pageSize int, fetch PageFetcher[T]) ([]T, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	items, total, err := fetch(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch page 0: %w", err)
	}
	pages := max(1, PageCount(total, pageSize))

	all := make([]T, 0, max(total, len(items)))
	all = append(all, items...)
	for page := 1; page < pages; page++ {
		next, _, err := fetch(ctx, page*pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		all = append(all, next...)
	}
	return all, nil
}

// Partition returns the slice of items VU vu (1-based) works on: starting
// at int(len/users * (vu-1)) and taking at most perUser items. Adjacent
// partitions overlap when perUser exceeds len/users and leave gaps when it
// is smaller.
func Partition[T any](items []T, users, vu, perUser int) []T {
	if users <= 0 || vu <= 0 || perUser <= 0 {
		return nil
	}
	start := int(float64(len(items)) / float64(users) * float64(vu-1))
	if start >= len(items) {
		return nil
	}
	end := min(start+perUser, len(items))
	return items[start:end]
}

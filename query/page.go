package query

// Pageable is a page-based slice request: zero-based page index, page size
// and an optional sort. A zero or negative size means unpaged.
type Pageable struct {
	Page int
	Size int
	Sort SortSpec
}

// PageRequest creates a paged request.
func PageRequest(page, size int) Pageable {
	return Pageable{Page: page, Size: size}
}

// WithSort attaches a sort specification to the request.
func (p Pageable) WithSort(sort SortSpec) Pageable {
	p.Sort = sort
	return p
}

// Unpaged reports whether the request asks for the full result set.
func (p Pageable) Unpaged() bool { return p.Size <= 0 }

// Offset is the number of records to skip: page * size.
func (p Pageable) Offset() int {
	if p.Unpaged() {
		return 0
	}
	return p.Page * p.Size
}

// Page is one slice of a larger result set together with the metadata
// needed to navigate it.
type Page[T any] struct {
	Content       []T
	Number        int
	Size          int
	TotalElements int64
}

// NewPage assembles a page from its slice content and the total element
// count of the unsliced result.
func NewPage[T any](content []T, pageable Pageable, total int64) Page[T] {
	size := pageable.Size
	if pageable.Unpaged() {
		size = len(content)
	}
	return Page[T]{Content: content, Number: pageable.Page, Size: size, TotalElements: total}
}

// TotalPages is the number of pages needed to hold TotalElements.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		if p.TotalElements > 0 {
			return 1
		}
		return 0
	}
	return int((p.TotalElements + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool {
	return int64(p.Number+1)*int64(p.Size) < p.TotalElements
}

// HasPrevious reports whether a preceding page exists.
func (p Page[T]) HasPrevious() bool { return p.Number > 0 }

// IsFirst reports whether this is the first page.
func (p Page[T]) IsFirst() bool { return !p.HasPrevious() }

// IsLast reports whether this is the last page.
func (p Page[T]) IsLast() bool { return !p.HasNext() }

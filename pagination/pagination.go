// Package pagination normalises page requests and builds paged responses.
package pagination

const (
	defaultPageSize = 20
	defaultMaxSize  = 100
)

// Request is the page a caller asks for. Embed it in list queries.
type Request struct {
	PageNumber int `json:"page_number" validate:"gte=0"`
	PageSize   int `json:"page_size"   validate:"gte=0"`
}

// Options configures pagination behavior.
type Options struct {
	MaxPageSize int
}

type Option func(*Options)

// WithMaxPageSize caps PageSize during Normalize.
func WithMaxPageSize(maxSize int) Option {
	return func(o *Options) {
		o.MaxPageSize = maxSize
	}
}

// Normalize applies defaults and constraints: pages start at 1, the size defaults to 20
// and is capped at MaxPageSize (100 unless overridden).
func (r *Request) Normalize(opts ...Option) {
	o := Options{MaxPageSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}

	if r.PageNumber <= 0 {
		r.PageNumber = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = defaultPageSize
	}
	if r.PageSize > o.MaxPageSize {
		r.PageSize = o.MaxPageSize
	}
}

// Offset returns the number of rows to skip. Call Normalize first.
func (r Request) Offset() int {
	return (r.PageNumber - 1) * r.PageSize
}

// Limit returns the number of rows to take. Call Normalize first.
func (r Request) Limit() int {
	return r.PageSize
}

// Response is one page of items with totals.
type Response[T any] struct {
	PageNumber  int   `json:"page_number"`
	PageSize    int   `json:"page_size"`
	PageCount   int   `json:"page_count"`
	TotalCount  int64 `json:"total_count"`
	PageContent []T   `json:"page_content"`
}

// NewResponse creates a paginated response from items and the total count.
func NewResponse[T any](items []T, totalCount int64, req Request) Response[T] {
	pageCount := 0
	if req.PageSize > 0 {
		pageCount = int(totalCount) / req.PageSize
		if int(totalCount)%req.PageSize > 0 {
			pageCount++
		}
	}
	if items == nil {
		items = []T{}
	}

	return Response[T]{
		PageNumber:  req.PageNumber,
		PageSize:    req.PageSize,
		PageCount:   pageCount,
		TotalCount:  totalCount,
		PageContent: items,
	}
}

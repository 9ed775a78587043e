package shared

// DefaultPerPage applies when a listing does not ask for a page size.
const DefaultPerPage = 20

// MaxPerPage caps listing page sizes.
const MaxPerPage = 200

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasNext bool `json:"has_next"`
}

// NewPagination normalises the requested page and size.
func NewPagination(page, perPage int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Offset is the number of rows before the page.
func (p Pagination) Offset() int { return (p.Page - 1) * p.PerPage }

// FetchLimit is the row limit that detects a following page.
func (p Pagination) FetchLimit() int { return p.PerPage + 1 }

package query

import "math"

const (
	DefaultPage        = 1
	DefaultPerPage     = 10
	DefaultUserPerPage = 20
	MaxPerPage         = 100
	// MaxPage keeps (page-1)*perPage well inside int range.
	MaxPage = math.MaxInt32
)

// Page is a normalized page request.
type Page struct {
	Number  int
	PerPage int
}

// NewPage clamps raw page parameters. page < 1 becomes 1, perPage <= 0 falls
// back to defaultPerPage and anything above MaxPerPage is capped. Pages past
// MaxPage are pinned to it and simply come back empty.
func NewPage(page, perPage, defaultPerPage int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Page{Number: page, PerPage: perPage}
}

// Limit returns the SQL LIMIT for the page.
func (p Page) Limit() int {
	return p.PerPage
}

// Offset returns the SQL OFFSET for the page. It saturates instead of
// overflowing.
func (p Page) Offset() int {
	if p.Number <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Number - 1) * p.PerPage
}

// Meta describes where a page sits in the full result set.
type Meta struct {
	Page    int
	PerPage int
	Total   int64
	Pages   int
	HasNext bool
	HasPrev bool
}

// NewMeta computes page metadata from the total row count.
func NewMeta(p Page, total int64) Meta {
	pages := 0
	if total > 0 && p.PerPage > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return Meta{
		Page:    p.Number,
		PerPage: p.PerPage,
		Total:   total,
		Pages:   pages,
		HasNext: p.Number < pages,
		HasPrev: p.Number > 1,
	}
}

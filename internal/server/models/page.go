package models

// Page is one slice of a paginated user listing.
type Page struct {
	Items []*User
	Total int64
	Page  int
	Size  int
	Pages int
}

// NewPage computes page metadata for items fetched with skip/limit out of total.
func NewPage(items []*User, total int64, skip, limit int) *Page {
	p := &Page{Items: items, Total: total, Size: limit, Page: 1}
	if limit > 0 {
		p.Page = skip/limit + 1
		p.Pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return p
}

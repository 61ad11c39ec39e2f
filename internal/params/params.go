package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Pagination holds pagination info and computed metadata.
type Pagination struct {
	Limit      int  `json:"limit"`  // items per page
	Offset     int  `json:"offset"` // SQL OFFSET value
	Page       int  `json:"page"`   // current page number
	Total      int  `json:"total"`  // total items in database
	TotalPages int  `json:"pages"`  // total pages available
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination parses ?limit=...&page=... safely. Keys are case sensitive.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{
		Limit: 10, // default
		Page:  1,
	}

	if limitStr := strings.TrimSpace(q.Get("limit")); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			p.Limit = limit
		}
	}

	if pageStr := strings.TrimSpace(q.Get("page")); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			p.Page = page
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta updates pagination after fetching total count.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = (p.Page * p.Limit) < total
}

// SortKey is one element of a compound sort: a field name and a direction.
type SortKey struct {
	Field string
	Desc  bool
}

// ParseSort parses a "field1:dir1,field2:dir2" sort parameter into ordered
// sort keys. A direction of "desc" sorts descending; anything else, including
// absence, sorts ascending. Empty segments are skipped. An empty parameter
// yields nil, leaving the caller to apply its default ordering.
func ParseSort(raw string) []SortKey {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var keys []SortKey
	for _, part := range strings.Split(raw, ",") {
		field, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		keys = append(keys, SortKey{
			Field: field,
			Desc:  strings.EqualFold(strings.TrimSpace(dir), "desc"),
		})
	}
	return keys
}

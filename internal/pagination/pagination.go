// Package pagination normalises page/limit input and builds the page
// metadata, including navigation links, returned by list endpoints.
package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params is a normalised page request.  Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// Parse reads raw query values.  Missing, malformed or non-positive values
// fall back to the defaults; limit is capped at MaxLimit.
func Parse(page, limit string) Params {
	p, err := strconv.Atoi(page)
	if err != nil || p < 1 {
		p = 1
	}
	l, err := strconv.Atoi(limit)
	if err != nil || l < 1 {
		l = DefaultLimit
	}
	if l > MaxLimit {
		l = MaxLimit
	}
	return Params{Page: p, Limit: l}
}

// Offset is the number of rows to skip.
func (p Params) Offset() int { return (p.Page - 1) * p.Limit }

// Links point at the current, next and previous pages.  Next and Prev are
// nil when out of range.
type Links struct {
	Self string  `json:"self"`
	Next *string `json:"next"`
	Prev *string `json:"prev"`
}

// Meta describes one page of a result set.
type Meta struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	Links       Links `json:"links"`
}

// NewMeta computes page metadata for total matches.  Links are
// baseURL + "?" + filters with page and limit substituted; filters is not
// modified.
func NewMeta(p Params, total int64, baseURL string, filters url.Values) Meta {
	totalPages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	m := Meta{
		Total:       total,
		Page:        p.Page,
		Limit:       p.Limit,
		TotalPages:  totalPages,
		HasNextPage: p.Page < totalPages,
		HasPrevPage: p.Page > 1,
	}
	link := func(page int) string {
		q := url.Values{}
		for k, v := range filters {
			q[k] = append([]string(nil), v...)
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(p.Limit))
		return baseURL + "?" + q.Encode()
	}
	m.Links.Self = link(p.Page)
	if m.HasNextPage {
		next := link(p.Page + 1)
		m.Links.Next = &next
	}
	if m.HasPrevPage {
		prev := link(p.Page - 1)
		m.Links.Prev = &prev
	}
	return m
}

package utils

import (
	"net/http"
	"strconv"
)

type QueryOptions struct {
	Page     int
	Limit    int
	Search   string
	Category string
	Farmer   string
}

// ParseQueryOptions reads paging and filter parameters. Limit is capped at 100.
func ParseQueryOptions(r *http.Request) QueryOptions {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return QueryOptions{
		Page:     page,
		Limit:    limit,
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Farmer:   q.Get("farmer"),
	}
}

func (o QueryOptions) Offset() int { return (o.Page - 1) * o.Limit }

package server

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"keepsake/internal/api"
	"keepsake/internal/store"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
	allSentinel     = "all"

	// maxPage keeps Page*Limit within int for every accepted limit.
	maxPage = math.MaxInt / maxPageSize
)

// pagination is a resolved page window. Limit 0 means unpaginated.
type pagination struct {
	Page  int
	Limit int
}

func (p pagination) offset() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

func (p pagination) hasNext(total int) bool {
	if p.Limit <= 0 {
		return false
	}
	return p.Page*p.Limit < total
}

// parsePagination resolves page and limit. When allowAll is set, an absent, empty or
// "all" limit disables paging and forces page 1. Otherwise those fall back to the default.
func parsePagination(page, limit api.FlexString, allowAll bool) pagination {
	rawLimit := strings.TrimSpace(limit.Value)
	if allowAll && (!limit.Set || rawLimit == "" || strings.EqualFold(rawLimit, allSentinel)) {
		return pagination{Page: 1}
	}

	n, err := strconv.Atoi(rawLimit)
	if err != nil || n <= 0 {
		n = defaultPageSize
	}
	if n > maxPageSize {
		n = maxPageSize
	}

	rawPage := strings.TrimSpace(page.Value)
	p, err := strconv.Atoi(rawPage)
	switch {
	case errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(rawPage, "-"):
		p = maxPage
	case err != nil || p < 1:
		p = 1
	case p > maxPage:
		p = maxPage
	}
	return pagination{Page: p, Limit: n}
}

// parseMomentListRequest turns the list body into a store filter plus the page window.
func parseMomentListRequest(req api.MomentListRequest) (store.MomentFilter, pagination, error) {
	pg := parsePagination(req.Page, req.Limit, true)
	filter := store.MomentFilter{
		Ascending: isAscending(req.Sort),
		Offset:    pg.offset(),
		Limit:     pg.Limit,
	}

	if strings.TrimSpace(req.Type) != "" {
		momentType, err := normalizeMomentType(req.Type)
		if err != nil {
			return store.MomentFilter{}, pagination{}, err
		}
		filter.Type = momentType
	}

	if strings.TrimSpace(req.From) != "" {
		from, err := parseFlexibleTime(req.From)
		if err != nil {
			return store.MomentFilter{}, pagination{}, badRequestCode(fmt.Errorf("invalid from: %w", err), ErrCodeInvalidTimeFilter)
		}
		filter.From = &from
	}
	if strings.TrimSpace(req.To) != "" {
		to, err := parseFlexibleTime(req.To)
		if err != nil {
			return store.MomentFilter{}, pagination{}, badRequestCode(fmt.Errorf("invalid to: %w", err), ErrCodeInvalidTimeFilter)
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return store.MomentFilter{}, pagination{}, badRequestCode(fmt.Errorf("from must not be after to"), ErrCodeInvalidTimeFilter)
	}

	return filter, pg, nil
}

// isAscending treats "asc" as ascending and everything else as newest first.
func isAscending(sort string) bool {
	return strings.EqualFold(strings.TrimSpace(sort), "asc")
}

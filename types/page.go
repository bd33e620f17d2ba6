/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultPageLimit is the number of items per page when no limit is configured.
const DefaultPageLimit = 25

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// PageRange is a closed interval [Start, End] of zero-based result offsets.
type PageRange struct {
	Start int
	End   int
}

// Offset is the number of rows skipped before the page.
func (r PageRange) Offset() int { return r.Start }

// Limit is the number of rows spanned by the page.
func (r PageRange) Limit() int { return r.End - r.Start + 1 }

// Contains reports whether the zero-based offset i falls inside the page.
func (r PageRange) Contains(i int) bool { return i >= r.Start && i <= r.End }

// ValidateLimit fails with InvalidPageLimit when limit is not positive.
func ValidateLimit(limit int) error {
	if limit <= 0 {
		return NewInvalidPageLimitError(limit)
	}
	return nil
}

// RangeFor returns the offsets covered by a 1-based page of the given size.
// Page 1 is [0, limit-1], page 2 is [limit, 2*limit-1], and so on. The range
// does not depend on how many rows exist; running past the end of the data
// yields a short or empty page, not an error.
func RangeFor(page, limit int) (PageRange, error) {
	if err := ValidateLimit(limit); err != nil {
		return PageRange{}, err
	}
	if page <= 0 {
		return PageRange{}, NewInvalidPageError(page, limit)
	}
	// Offset plus limit, page*limit, must fit in an int.
	if page > math.MaxInt/limit {
		return PageRange{}, NewInvalidPageError(page, limit)
	}
	start := (page - 1) * limit
	return PageRange{Start: start, End: start + limit - 1}, nil
}

// PaginationConfig holds the page size shared by repositories. It is immutable
// once built and safe to share between goroutines.
type PaginationConfig struct {
	pageLimit int
}

// NewPaginationConfig validates limit and returns a config using it.
func NewPaginationConfig(limit int) (*PaginationConfig, error) {
	if err := ValidateLimit(limit); err != nil {
		return nil, err
	}
	return &PaginationConfig{pageLimit: limit}, nil
}

// DefaultPaginationConfig returns a config with DefaultPageLimit items per page.
func DefaultPaginationConfig() *PaginationConfig {
	return &PaginationConfig{pageLimit: DefaultPageLimit}
}

// PageLimit returns the number of items per page.
func (c *PaginationConfig) PageLimit() int { return c.pageLimit }

// RangeFor computes the range of page using the configured limit.
func (c *PaginationConfig) RangeFor(page int) (PageRange, error) {
	return RangeFor(page, c.pageLimit)
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Total    int  `json:"total"`
	Items    []*T `json:"items"`
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, make([]*T, 0)}
}

// TotalPages returns the number of pages needed to hold Total items.
func (p *Pagination[T]) TotalPages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasNext reports whether a page follows the current one.
func (p *Pagination[T]) HasNext() bool { return p.Page < p.TotalPages() }

// PageRequest is the optional page selector of a listing request.
// Paged is false when no page was given, meaning "list everything".
type PageRequest struct {
	Page  int
	Paged bool
}

// ParsePageRequest reads the raw page query value. present tells an absent
// parameter apart from an empty one; both empty and non-numeric values fail
// with InvalidPage. Range checks happen later in RangeFor.
func ParsePageRequest(raw string, present bool) (PageRequest, error) {
	if !present {
		return PageRequest{}, nil
	}
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return PageRequest{}, fmt.Errorf("%w: page %q is not a number", ErrInvalidPage, raw)
	}
	return PageRequest{Page: page, Paged: true}, nil
}

// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package source

import (
	"context"

	"github.com/openkino/searchsync/internal/models"
)

// pageFetch fetches one page at the given offset.
type pageFetch func(ctx context.Context, offset int) ([]models.ModifiedRow, error)

// ModifiedPager walks the finite sequence of modified-id pages for one
// table drain. The sequence ends at the first page shorter than the limit;
// an empty page is not yielded.
//
// Offset returns the scan offset after the most recently yielded page,
// which is exactly the value the Coordinator persists mid-drain.
type ModifiedPager struct {
	fetch  pageFetch
	limit  int
	offset int
	done   bool
}

// Next returns the next page, or (nil, nil) when the stream is exhausted.
func (p *ModifiedPager) Next(ctx context.Context) ([]models.ModifiedRow, error) {
	if p.done {
		return nil, nil
	}

	page, err := p.fetch(ctx, p.offset)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		p.done = true
		return nil, nil
	}

	p.offset += p.limit
	if len(page) < p.limit {
		p.done = true
	}
	return page, nil
}

// Offset is the scan offset after the last yielded page.
func (p *ModifiedPager) Offset() int {
	return p.offset
}

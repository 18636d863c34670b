package pagination

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

const (
	// DefaultPerPage is the standard page size when one is not provided.
	DefaultPerPage = 20
	// MaxPerPage caps how many rows any list request can ask for.
	MaxPerPage = 100
)

// Params holds page pagination inputs from controllers or services.
type Params struct {
	Page    int
	PerPage int
}

// Normalize enforces page >= 1 and the default and maximum page sizes.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage <= 0:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
	return p
}

// Path appends the normalized page and per_page query to path.
func (p Params) Path(path string) string {
	p = p.Normalize()
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))
	return path + "?" + q.Encode()
}

// Meta describes where a page sits in the full result set.
type Meta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// HasMore reports whether another page follows.
func (m Meta) HasMore() bool {
	return m.CurrentPage < m.LastPage
}

// Decode reads a list that is either a bare JSON array or a paginator
// object carrying the rows under "data" next to its meta fields. Bare
// arrays report a single page.
func Decode(raw json.RawMessage, rows any) (Meta, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Meta{CurrentPage: 1, LastPage: 1}, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, rows); err != nil {
			return Meta{}, fmt.Errorf("decode list: %w", err)
		}
		count, err := countItems(trimmed)
		if err != nil {
			return Meta{}, err
		}
		return Meta{CurrentPage: 1, LastPage: 1, PerPage: count, Total: count}, nil
	}

	var page struct {
		Meta
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return Meta{}, fmt.Errorf("decode page: %w", err)
	}
	if len(page.Data) > 0 {
		if err := json.Unmarshal(page.Data, rows); err != nil {
			return Meta{}, fmt.Errorf("decode page rows: %w", err)
		}
	}
	if page.CurrentPage == 0 {
		page.CurrentPage = 1
	}
	if page.LastPage < page.CurrentPage {
		page.LastPage = page.CurrentPage
	}
	return page.Meta, nil
}

func countItems(raw json.RawMessage) (int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0, fmt.Errorf("decode list: %w", err)
	}
	return len(items), nil
}

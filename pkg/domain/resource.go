package domain

// Resource is the provider-agnostic shape of an item a connector can list or
// search. Connectors translate their native schema into this one.
type Resource struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Type     string         `json:"type"`
	URL      string         `json:"url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type ResourceQuery struct {
	Search  string         `json:"search,omitempty"`
	Cursor  string         `json:"cursor,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
}

// ResourcePage is one page of a forward-only paginated listing. NextCursor is
// opaque to callers; they pass it back verbatim to fetch the next page.
type ResourcePage struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"next_cursor,omitempty"`
	HasMore    bool       `json:"has_more"`
}

// GetLimitWithMax clamps the requested page size to [1, maxLimit], falling
// back to defaultLimit when unset.
func (q ResourceQuery) GetLimitWithMax(defaultLimit, maxLimit int) int {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

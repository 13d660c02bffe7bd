package models

// CreateParams are the inputs for creating a ticket. Type defaults to task
// and Priority to medium when empty.
type CreateParams struct {
	Type        TicketType     `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    Priority       `json:"priority"`
	Assignee    string         `json:"assignee"`
	Reporter    string         `json:"reporter"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
}

// UpdateParams are the inputs for updating a ticket. Nil pointers mean
// "leave unchanged". Status and Type are carried only so the service can
// reject attempts to change them through update.
type UpdateParams struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *Priority       `json:"priority"`
	Assignee    *string         `json:"assignee"`
	Reporter    *string         `json:"reporter"`
	Tags        *[]string       `json:"tags"`
	Metadata    *map[string]any `json:"metadata"`

	Status *string `json:"status"`
	Type   *string `json:"type"`
}

// ListFilter narrows a ticket listing. Zero values mean "no filter".
// Tags match on exact set equality against the stored tag set.
type ListFilter struct {
	Type     TicketType
	Status   string
	Priority Priority
	Assignee string
	Tags     []string
	Limit    int
	Offset   int
}

// ListResult is a page of tickets plus aggregate counts computed under the
// same filters.
type ListResult struct {
	Tickets  []*Ticket      `json:"tickets"`
	Total    int            `json:"total"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
	HasMore  bool           `json:"has_more"`
	ByStatus map[string]int `json:"by_status"`
	ByType   map[string]int `json:"by_type"`
}

// Board is a grouped-by-status view. Statuses carries the deterministic
// column order; exactly one of Columns (kanban) or Counts (summary) is set.
// Every declared status appears, empty buckets included.
type Board struct {
	View     BoardViewKind        `json:"view"`
	Type     TicketType           `json:"type,omitempty"`
	Statuses []string             `json:"statuses"`
	Columns  map[string][]*Ticket `json:"columns,omitempty"`
	Counts   map[string]int       `json:"counts,omitempty"`
	Total    int                  `json:"total"`
}

// SearchHit pairs a ticket with its full-text relevance rank.
type SearchHit struct {
	Ticket *Ticket `json:"ticket"`
	Rank   float64 `json:"rank"`
}

// SearchResult is a ranked full-text search response.
type SearchResult struct {
	Query   string       `json:"query"`
	Total   int          `json:"total"`
	Results []*SearchHit `json:"results"`
}

// BatchItem is the outcome for one ticket in a batch operation.
type BatchItem struct {
	TicketID  int64  `json:"ticket_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

// BatchResult summarizes a batch transition or batch close. DryRun is true
// unless the caller confirmed execution.
type BatchResult struct {
	Action    string       `json:"action"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	DryRun    bool         `json:"dry_run"`
	Results   []*BatchItem `json:"results"`
}

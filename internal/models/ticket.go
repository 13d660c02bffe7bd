package models

// Ticket represents a work item stored in one project schema.
// Timestamps are epoch seconds (DOUBLE PRECISION in the database).
type Ticket struct {
	ID          int64          `json:"id"`
	Type        TicketType     `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Priority    Priority       `json:"priority"`
	Assignee    string         `json:"assignee,omitempty"`
	Reporter    string         `json:"reporter,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	CreatedAt   float64        `json:"created_at"`
	UpdatedAt   float64        `json:"updated_at"`
	ClosedAt    *float64       `json:"closed_at,omitempty"`
}

// HistoryEntry is one append-only audit record for a mutated ticket field.
type HistoryEntry struct {
	ID        int64   `json:"id"`
	TicketID  int64   `json:"ticket_id"`
	Field     string  `json:"field"`
	OldValue  *string `json:"old_value"`
	NewValue  *string `json:"new_value"`
	ChangedBy *string `json:"changed_by,omitempty"`
	ChangedAt float64 `json:"changed_at"`
}

// TicketRef is the minimal counterpart info carried on a link.
type TicketRef struct {
	ID     int64      `json:"id"`
	Title  string     `json:"title"`
	Type   TicketType `json:"type"`
	Status string     `json:"status"`
}

// TicketLink is a directed, typed relationship between two tickets.
// Counterpart describes the ticket on the other end relative to the
// ticket the link was listed for.
type TicketLink struct {
	ID          int64      `json:"id"`
	SourceID    int64      `json:"source_id"`
	TargetID    int64      `json:"target_id"`
	LinkType    LinkType   `json:"link_type"`
	CreatedAt   float64    `json:"created_at"`
	Counterpart *TicketRef `json:"counterpart,omitempty"`
}

// LinkSet holds the links for one ticket, split by direction.
type LinkSet struct {
	Outgoing []*TicketLink `json:"outgoing"`
	Incoming []*TicketLink `json:"incoming"`
}

// TicketDetail is a ticket together with its audit history (oldest first)
// and its links in both directions.
type TicketDetail struct {
	Ticket
	History []*HistoryEntry `json:"history"`
	Links   *LinkSet        `json:"links"`
}

// Package models defines the domain records and enums for the ticketing core.
package models

// TicketType selects the state-machine graph for a ticket. Immutable after create.
type TicketType string

const (
	TypeTask     TicketType = "task"
	TypeBug      TicketType = "bug"
	TypeFeature  TicketType = "feature"
	TypeDecision TicketType = "decision"
)

// AllTicketTypes returns every ticket type in declaration order.
func AllTicketTypes() []TicketType {
	return []TicketType{TypeTask, TypeBug, TypeFeature, TypeDecision}
}

// IsValid returns true if the ticket type is recognized.
func (t TicketType) IsValid() bool {
	switch t {
	case TypeTask, TypeBug, TypeFeature, TypeDecision:
		return true
	}
	return false
}

// Priority represents the importance of a ticket.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid returns true if the priority is recognized.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// LinkType classifies a directed relationship between two tickets.
type LinkType string

const (
	LinkBlocks    LinkType = "blocks"
	LinkParent    LinkType = "parent"
	LinkRelated   LinkType = "related"
	LinkDuplicate LinkType = "duplicate"
)

// IsValid returns true if the link type is recognized.
func (l LinkType) IsValid() bool {
	switch l {
	case LinkBlocks, LinkParent, LinkRelated, LinkDuplicate:
		return true
	}
	return false
}

// BoardViewKind selects the shape of a board response.
type BoardViewKind string

const (
	BoardKanban  BoardViewKind = "kanban"
	BoardSummary BoardViewKind = "summary"
)

// IsValid returns true if the board view kind is recognized.
func (v BoardViewKind) IsValid() bool {
	return v == BoardKanban || v == BoardSummary
}

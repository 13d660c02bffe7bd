// Package state implements the per-type ticket state machines.
//
// Each ticket type owns a small directed graph of statuses with one initial
// status and a set of terminal statuses. Transitions are exact: no
// self-edges, no skip-ahead. The registry is built once and is read-only,
// so it may be shared freely across requests.
package state

import (
	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
)

// Graph is the state machine for one ticket type.
type Graph struct {
	// Initial is the status assigned on create.
	Initial string

	// Terminals lists terminal statuses in close-preference order: close
	// picks the first one reachable via a single edge.
	Terminals []string

	// Statuses lists every status in declaration order. Used for board
	// column ordering.
	Statuses []string

	// Edges maps a status to the statuses it may transition to.
	Edges map[string][]string
}

var graphs = map[models.TicketType]*Graph{
	models.TypeTask: {
		Initial:   "backlog",
		Terminals: []string{"done", "cancelled"},
		Statuses:  []string{"backlog", "in_progress", "done", "cancelled"},
		Edges: map[string][]string{
			"backlog":     {"in_progress", "cancelled"},
			"in_progress": {"done", "cancelled"},
			"done":        {},
			"cancelled":   {},
		},
	},
	models.TypeBug: {
		Initial:   "triage",
		Terminals: []string{"resolved", "wont_fix"},
		Statuses:  []string{"triage", "confirmed", "in_progress", "resolved", "wont_fix"},
		Edges: map[string][]string{
			"triage":      {"confirmed", "wont_fix"},
			"confirmed":   {"in_progress", "wont_fix"},
			"in_progress": {"resolved", "wont_fix"},
			"resolved":    {},
			"wont_fix":    {},
		},
	},
	models.TypeFeature: {
		Initial:   "proposed",
		Terminals: []string{"shipped", "rejected"},
		Statuses:  []string{"proposed", "approved", "in_progress", "shipped", "rejected"},
		Edges: map[string][]string{
			"proposed":    {"approved", "rejected"},
			"approved":    {"in_progress", "rejected"},
			"in_progress": {"shipped", "rejected"},
			"shipped":     {},
			"rejected":    {},
		},
	},
	models.TypeDecision: {
		Initial:   "open",
		Terminals: []string{"decided", "deferred"},
		Statuses:  []string{"open", "decided", "deferred"},
		Edges: map[string][]string{
			"open":     {"decided", "deferred"},
			"decided":  {},
			"deferred": {"open"}, // deferred decisions can be reopened
		},
	},
}

// Get returns the graph for a ticket type.
func Get(t models.TicketType) (*Graph, error) {
	g, ok := graphs[t]
	if !ok {
		return nil, errors.Validation("unknown ticket type: %q", string(t))
	}
	return g, nil
}

// InitialStatus returns the status assigned when a ticket of the given type
// is created.
func InitialStatus(t models.TicketType) (string, error) {
	g, err := Get(t)
	if err != nil {
		return "", err
	}
	return g.Initial, nil
}

// IsTerminal reports whether the status is terminal for the given type.
// Unknown types or statuses are not terminal.
func IsTerminal(t models.TicketType, status string) bool {
	g, ok := graphs[t]
	if !ok {
		return false
	}
	for _, s := range g.Terminals {
		if s == status {
			return true
		}
	}
	return false
}

// Statuses returns the declared status set for a type, in column order.
func Statuses(t models.TicketType) ([]string, error) {
	g, err := Get(t)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), g.Statuses...), nil
}

// AllStatuses returns the union of every type's statuses, deduplicated,
// ordered by type declaration order then status declaration order.
func AllStatuses() []string {
	seen := make(map[string]bool)
	var union []string
	for _, t := range models.AllTicketTypes() {
		for _, s := range graphs[t].Statuses {
			if !seen[s] {
				seen[s] = true
				union = append(union, s)
			}
		}
	}
	return union
}

// Transitions returns the statuses reachable from the given status in one
// step. Unknown from-statuses yield an empty slice.
func Transitions(t models.TicketType, from string) ([]string, error) {
	g, err := Get(t)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), g.Edges[from]...), nil
}

// ValidateTransition checks a (type, from, to) edge against the registry.
// It returns nil if the transition is allowed.
func ValidateTransition(t models.TicketType, from, to string) error {
	g, err := Get(t)
	if err != nil {
		return err
	}
	allowed, ok := g.Edges[from]
	if !ok {
		return errors.InvalidTransition(
			"%q is not a valid status for type %q (valid: %v)", from, t, g.Statuses)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return errors.InvalidTransition(
		"cannot transition %s from %q to %q (allowed: %v)", t, from, to, allowed)
}

// CloseTarget returns the terminal status reachable from the given status in
// exactly one step, honoring the type's preference order. It fails when the
// ticket is already terminal or no terminal is a single edge away.
func CloseTarget(t models.TicketType, from string) (string, error) {
	g, err := Get(t)
	if err != nil {
		return "", err
	}
	if IsTerminal(t, from) {
		return "", errors.InvalidTransition("%s is already in terminal status %q", t, from)
	}
	allowed, ok := g.Edges[from]
	if !ok {
		return "", errors.InvalidTransition(
			"%q is not a valid status for type %q (valid: %v)", from, t, g.Statuses)
	}
	for _, term := range g.Terminals {
		for _, s := range allowed {
			if s == term {
				return term, nil
			}
		}
	}
	return "", errors.InvalidTransition(
		"cannot close %s from %q: no terminal status is one step away (allowed: %v)",
		t, from, allowed)
}

// ClosePath returns the shortest sequence of statuses leading from the given
// status to a terminal one, walking intermediate states where necessary.
// The current status is not included. Returns nil when no path exists or the
// status is already terminal.
func ClosePath(t models.TicketType, from string) []string {
	g, ok := graphs[t]
	if !ok || IsTerminal(t, from) {
		return nil
	}

	type node struct {
		status string
		path   []string
	}
	queue := []node{{status: from}}
	visited := map[string]bool{from: true}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.Edges[n.status] {
			if visited[next] {
				continue
			}
			path := append(append([]string(nil), n.path...), next)
			if IsTerminal(t, next) {
				return path
			}
			visited[next] = true
			queue = append(queue, node{status: next, path: path})
		}
	}
	return nil
}

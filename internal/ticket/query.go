package ticket

import (
	"context"
	"path"
	"strings"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
	"github.com/diogenes-ai-code/ticketcore/internal/state"
)

// List returns a filtered, paginated page of tickets ordered by most recent
// update (updated_at DESC, id DESC). Aggregate counts are computed under the
// same filters, ignoring pagination.
func (s *Service) List(ctx context.Context, f models.ListFilter) (*models.ListResult, error) {
	if f.Type != "" && !f.Type.IsValid() {
		return nil, errors.Validation("unknown ticket type: %q", string(f.Type))
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return nil, errors.Validation("unknown priority: %q", string(f.Priority))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := s.listConds(f)

	query := s.sql(`SELECT `+ticketColumns+` FROM {schema}.ticket`) + where +
		" ORDER BY updated_at DESC, id DESC" +
		" LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	rows, err := s.conn.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to list tickets")
	}
	defer rows.Close()

	tickets := []*models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, errors.WrapInternal(err, "failed to scan ticket row")
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapInternal(err, "failed to read ticket rows")
	}

	var total int
	countQuery := s.sql(`SELECT count(*) FROM {schema}.ticket`) + where
	if err := s.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, errors.WrapInternal(err, "failed to count tickets")
	}

	byStatus, err := s.groupCount(ctx, "status", where, args)
	if err != nil {
		return nil, err
	}
	byType, err := s.groupCount(ctx, "type", where, args)
	if err != nil {
		return nil, err
	}

	return &models.ListResult{
		Tickets:  tickets,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		HasMore:  offset+len(tickets) < total,
		ByStatus: byStatus,
		ByType:   byType,
	}, nil
}

// listConds builds the WHERE clause for List. Tags filter on exact set
// equality: the stored tag set and the requested tag set must match after
// dedup, order-insensitively.
func (s *Service) listConds(f models.ListFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+itoa(len(args))))
	}

	if f.Type != "" {
		add("type = ?", string(f.Type))
	}
	if f.Status != "" {
		add("status = ?", f.Status)
	}
	if f.Priority != "" {
		add("priority = ?", string(f.Priority))
	}
	if f.Assignee != "" {
		add("assignee = ?", f.Assignee)
	}
	if f.Tags != nil {
		add(`(SELECT coalesce(array_agg(DISTINCT v ORDER BY v), ARRAY[]::text[])
			FROM jsonb_array_elements_text(coalesce(tags, '[]')::jsonb) AS v)
			= (SELECT coalesce(array_agg(DISTINCT w ORDER BY w), ARRAY[]::text[])
			FROM unnest(?::text[]) AS w)`, f.Tags)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Service) groupCount(ctx context.Context, column, where string, args []any) (map[string]int, error) {
	query := s.sql(`SELECT `+column+`, count(*) FROM {schema}.ticket`) + where +
		" GROUP BY " + column
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to count tickets by %s", column)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, errors.WrapInternal(err, "failed to scan %s count", column)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapInternal(err, "failed to read %s counts", column)
	}
	return counts, nil
}

// Board returns the grouped-by-status view. Every declared status appears as
// a bucket, empty ones included, so consumers always see the full column set.
// Kanban columns carry tickets with descriptions truncated to keep payloads
// small; summary carries counts only.
func (s *Service) Board(ctx context.Context, view models.BoardViewKind, typ models.TicketType) (*models.Board, error) {
	if view == "" {
		view = models.BoardKanban
	}
	if !view.IsValid() {
		return nil, errors.Validation("unknown board view: %q", string(view))
	}

	var statuses []string
	if typ != "" {
		var err error
		statuses, err = state.Statuses(typ)
		if err != nil {
			return nil, err
		}
	} else {
		statuses = state.AllStatuses()
	}

	query := s.sql(`SELECT ` + ticketColumns + ` FROM {schema}.ticket`)
	var args []any
	if typ != "" {
		query += " WHERE type = $1"
		args = append(args, string(typ))
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load board")
	}
	defer rows.Close()

	board := &models.Board{View: view, Type: typ, Statuses: statuses}
	counts := make(map[string]int, len(statuses))
	columns := make(map[string][]*models.Ticket, len(statuses))
	for _, st := range statuses {
		counts[st] = 0
		columns[st] = []*models.Ticket{}
	}

	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, errors.WrapInternal(err, "failed to scan board row")
		}
		counts[t.Status]++
		board.Total++
		if view == models.BoardKanban {
			if len(t.Description) > boardDescMax {
				t.Description = t.Description[:boardDescMax]
			}
			columns[t.Status] = append(columns[t.Status], t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapInternal(err, "failed to read board rows")
	}

	if view == models.BoardKanban {
		board.Columns = columns
	} else {
		board.Counts = counts
	}
	return board, nil
}

// Search runs a ranked full-text query over title and description. Terms are
// OR-combined, so any matching term qualifies a ticket; the optional type and
// status filters apply as an AND. Ordering is rank DESC with id ASC as the
// tiebreaker.
func (s *Service) Search(ctx context.Context, query string, typ models.TicketType, status string, limit int) (*models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Validation("search query cannot be empty")
	}
	if typ != "" && !typ.IsValid() {
		return nil, errors.Validation("unknown ticket type: %q", string(typ))
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	tsquery := buildTsquery(query)
	result := &models.SearchResult{Query: query, Results: []*models.SearchHit{}}
	if tsquery == "" {
		return result, nil
	}

	var args []any
	sqlQuery := s.sql(`
		SELECT ` + ticketColumns + `, ts_rank(tsv, q) AS rank
		FROM {schema}.ticket, to_tsquery('english', $1) AS q
		WHERE tsv @@ q`)
	args = append(args, tsquery)
	if typ != "" {
		args = append(args, string(typ))
		sqlQuery += " AND type = $" + itoa(len(args))
	}
	if status != "" {
		args = append(args, status)
		sqlQuery += " AND status = $" + itoa(len(args))
	}
	args = append(args, limit)
	sqlQuery += " ORDER BY rank DESC, id ASC LIMIT $" + itoa(len(args))

	rows, err := s.conn.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errors.WrapInternal(err, "search failed")
	}
	defer rows.Close()

	for rows.Next() {
		var rank float64
		t, err := scanTicket(rows, &rank)
		if err != nil {
			return nil, errors.WrapInternal(err, "failed to scan search row")
		}
		result.Results = append(result.Results, &models.SearchHit{Ticket: t, Rank: rank})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapInternal(err, "failed to read search rows")
	}
	result.Total = len(result.Results)
	return result, nil
}

// Grep returns tickets whose titles match a shell-style glob pattern,
// case-insensitively. Unlike Search it needs no index and matches exact
// substrings of the title, which makes it the right tool for punctuated or
// code-like titles the text-search parser would mangle.
func (s *Service) Grep(ctx context.Context, pattern string) ([]*models.Ticket, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, errors.Validation("grep pattern cannot be empty")
	}
	// Surface bad patterns before touching the database. Matching against a
	// non-empty probe is required for Match to parse character classes.
	if _, err := path.Match(strings.ToLower(pattern), "probe"); err != nil {
		return nil, errors.Validation("invalid glob pattern: %q", pattern)
	}

	query := s.sql(`SELECT ` + ticketColumns + ` FROM {schema}.ticket ORDER BY updated_at DESC, id DESC`)
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.WrapInternal(err, "grep failed")
	}
	defer rows.Close()

	matched := []*models.Ticket{}
	lowered := strings.ToLower(pattern)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, errors.WrapInternal(err, "failed to scan ticket row")
		}
		if ok, _ := path.Match(lowered, strings.ToLower(t.Title)); ok {
			matched = append(matched, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapInternal(err, "failed to read ticket rows")
	}
	return matched, nil
}

// buildTsquery turns free text into an OR-combined tsquery expression,
// dropping characters that carry tsquery syntax.
func buildTsquery(query string) string {
	var terms []string
	for _, word := range strings.Fields(query) {
		cleaned := strings.Map(func(r rune) rune {
			switch r {
			case '&', '|', '!', '(', ')', ':', '*', '\'', '<', '>':
				return -1
			}
			return r
		}, word)
		if cleaned != "" {
			terms = append(terms, cleaned)
		}
	}
	return strings.Join(terms, " | ")
}

// Package ticket implements the SQL-backed ticket service.
//
// A Service is bound to one (connection, schema) pair for the duration of a
// single request. It holds no state of its own; everything lives in the
// project schema. {schema} substitution happens once at bind time against a
// validated identifier, and every user-supplied value travels as a bound
// parameter.
package ticket

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
	"github.com/diogenes-ai-code/ticketcore/internal/schema"
	"github.com/diogenes-ai-code/ticketcore/internal/state"
)

// Listing and search caps.
const (
	DefaultListLimit   = 50
	MaxListLimit       = 200
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	MaxBatchSize       = 50

	// boardDescMax truncates descriptions in kanban columns; full text is
	// only returned by Get.
	boardDescMax = 200
)

// DBTX is the statement-level subset of database/sql shared by *sql.Conn,
// *sql.DB, and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn is the connection contract the service binds to. Satisfied by
// *sql.Conn and *sql.DB.
type Conn interface {
	DBTX
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Service provides ticket operations against one project schema.
type Service struct {
	conn Conn
	rep  *strings.Replacer
	now  func() float64
}

// New binds a service to a connection and schema. The schema name must be a
// safe SQL identifier; it comes from the host's resolver, never from user
// input.
func New(conn Conn, schemaName string) (*Service, error) {
	if err := schema.ValidIdent(schemaName); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "bad schema name")
	}
	return &Service{
		conn: conn,
		rep:  strings.NewReplacer("{schema}", schemaName),
		now:  epochNow,
	}, nil
}

func epochNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// sql expands {schema} markers in a query template.
func (s *Service) sql(q string) string {
	return s.rep.Replace(q)
}

const ticketColumns = `id, type, title, description, status, priority, assignee, reporter,
	tags, metadata, content_hash, created_at, updated_at, closed_at`

// Create validates the inputs, assigns the type's initial status, and writes
// one row. Type defaults to task and priority to medium.
func (s *Service) Create(ctx context.Context, p models.CreateParams) (*models.Ticket, error) {
	if p.Type == "" {
		p.Type = models.TypeTask
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, errors.Validation("title is required")
	}
	if !p.Priority.IsValid() {
		return nil, errors.Validation("unknown priority: %q", string(p.Priority))
	}
	initial, err := state.InitialStatus(p.Type)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return nil, err
	}
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return nil, err
	}
	hash := contentHash(p.Title, p.Description)

	t := &models.Ticket{
		Type:        p.Type,
		Title:       p.Title,
		Description: p.Description,
		Status:      initial,
		Priority:    p.Priority,
		Assignee:    p.Assignee,
		Reporter:    p.Reporter,
		Tags:        p.Tags,
		Metadata:    p.Metadata,
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := s.sql(`
		INSERT INTO {schema}.ticket
			(type, title, description, status, priority, assignee, reporter,
			 tags, metadata, content_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`)
	err = s.conn.QueryRowContext(ctx, query,
		string(p.Type), p.Title, nullString(p.Description), initial, string(p.Priority),
		nullString(p.Assignee), nullString(p.Reporter), tags, metadata, hash, now, now,
	).Scan(&t.ID)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to create ticket")
	}
	return t, nil
}

// Get returns the ticket augmented with its history (oldest first) and its
// links in both directions.
func (s *Service) Get(ctx context.Context, id int64) (*models.TicketDetail, error) {
	t, err := s.fetch(ctx, s.conn, id, false)
	if err != nil {
		return nil, err
	}
	history, err := s.fetchHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := s.fetchLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.TicketDetail{Ticket: *t, History: history, Links: links}, nil
}

// Update mutates non-status, non-type attributes. One history row is written
// per field whose value actually changed, in the same transaction as the
// UPDATE. Status and type changes are rejected; use Transition.
func (s *Service) Update(ctx context.Context, id int64, p models.UpdateParams, changedBy string) (*models.Ticket, error) {
	if p.Status != nil {
		return nil, errors.Validation("status cannot be changed through update; use the move operation")
	}
	if p.Type != nil {
		return nil, errors.Validation("ticket type is immutable")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, errors.Validation("title cannot be empty")
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return nil, errors.Validation("unknown priority: %q", string(*p.Priority))
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	cur, err := s.fetch(ctx, tx, id, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	type change struct {
		column   string
		value    any
		oldText  *string
		newText  *string
	}
	var changes []change

	if p.Title != nil && *p.Title != cur.Title {
		changes = append(changes, change{"title", *p.Title, strPtr(cur.Title), p.Title})
		cur.Title = *p.Title
	}
	if p.Description != nil && *p.Description != cur.Description {
		changes = append(changes, change{"description", nullString(*p.Description),
			textOrNil(cur.Description), p.Description})
		cur.Description = *p.Description
	}
	if p.Priority != nil && *p.Priority != cur.Priority {
		old := string(cur.Priority)
		nw := string(*p.Priority)
		changes = append(changes, change{"priority", nw, &old, &nw})
		cur.Priority = *p.Priority
	}
	if p.Assignee != nil && *p.Assignee != cur.Assignee {
		changes = append(changes, change{"assignee", nullString(*p.Assignee),
			textOrNil(cur.Assignee), p.Assignee})
		cur.Assignee = *p.Assignee
	}
	if p.Reporter != nil && *p.Reporter != cur.Reporter {
		changes = append(changes, change{"reporter", nullString(*p.Reporter),
			textOrNil(cur.Reporter), p.Reporter})
		cur.Reporter = *p.Reporter
	}
	if p.Tags != nil {
		nw, err := encodeTags(*p.Tags)
		if err != nil {
			return nil, err
		}
		old, _ := encodeTags(cur.Tags)
		if !jsonEqual(old, nw) {
			changes = append(changes, change{"tags", nw, nullToPtr(old), nullToPtr(nw)})
			cur.Tags = *p.Tags
		}
	}
	if p.Metadata != nil {
		nw, err := encodeMetadata(*p.Metadata)
		if err != nil {
			return nil, err
		}
		old, _ := encodeMetadata(cur.Metadata)
		if !jsonEqual(old, nw) {
			changes = append(changes, change{"metadata", nw, nullToPtr(old), nullToPtr(nw)})
			cur.Metadata = *p.Metadata
		}
	}

	if len(changes) == 0 {
		return cur, nil
	}

	var set []string
	var args []any
	for _, c := range changes {
		args = append(args, c.value)
		set = append(set, c.column+" = $"+itoa(len(args)))
	}
	args = append(args, now)
	set = append(set, "updated_at = $"+itoa(len(args)))
	// Keep the content hash in step with title/description edits.
	hash := contentHash(cur.Title, cur.Description)
	args = append(args, hash)
	set = append(set, "content_hash = $"+itoa(len(args)))
	args = append(args, id)

	query := s.sql(`UPDATE {schema}.ticket SET `) + strings.Join(set, ", ") +
		" WHERE id = $" + itoa(len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, errors.WrapInternal(err, "failed to update ticket")
	}

	for _, c := range changes {
		if err := s.insertHistory(ctx, tx, id, c.column, c.oldText, c.newText, changedBy, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.WrapInternal(err, "failed to commit update")
	}

	cur.UpdatedAt = now
	cur.ContentHash = hash
	return cur, nil
}

// fetch loads one ticket row. forUpdate adds a row lock and must run inside
// a transaction.
func (s *Service) fetch(ctx context.Context, q DBTX, id int64, forUpdate bool) (*models.Ticket, error) {
	query := s.sql(`SELECT ` + ticketColumns + ` FROM {schema}.ticket WHERE id = $1`)
	if forUpdate {
		query += " FOR UPDATE"
	}
	t, err := scanTicket(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("ticket %d not found", id)
	}
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load ticket %d", id)
	}
	return t, nil
}

func (s *Service) fetchHistory(ctx context.Context, id int64) ([]*models.HistoryEntry, error) {
	query := s.sql(`
		SELECT id, ticket_id, field, old_value, new_value, changed_by, changed_at
		FROM {schema}.ticket_history
		WHERE ticket_id = $1
		ORDER BY changed_at ASC, id ASC`)
	rows, err := s.conn.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to load ticket history")
	}
	defer rows.Close()

	history := []*models.HistoryEntry{}
	for rows.Next() {
		var h models.HistoryEntry
		var oldV, newV, by sql.NullString
		if err := rows.Scan(&h.ID, &h.TicketID, &h.Field, &oldV, &newV, &by, &h.ChangedAt); err != nil {
			return nil, errors.WrapInternal(err, "failed to scan history row")
		}
		h.OldValue = nullToPtr(oldV)
		h.NewValue = nullToPtr(newV)
		h.ChangedBy = nullToPtr(by)
		history = append(history, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapInternal(err, "failed to read ticket history")
	}
	return history, nil
}

func (s *Service) insertHistory(ctx context.Context, q DBTX, ticketID int64, field string, oldV, newV *string, changedBy string, at float64) error {
	query := s.sql(`
		INSERT INTO {schema}.ticket_history
			(ticket_id, field, old_value, new_value, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	_, err := q.ExecContext(ctx, query, ticketID, field, ptrToNull(oldV), ptrToNull(newV),
		nullString(changedBy), at)
	if err != nil {
		return errors.WrapInternal(err, "failed to record ticket history")
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(r rowScanner, extra ...any) (*models.Ticket, error) {
	var t models.Ticket
	var typ, priority string
	var desc, assignee, reporter, tags, metadata, hash sql.NullString
	var closedAt sql.NullFloat64

	dest := []any{&t.ID, &typ, &t.Title, &desc, &t.Status, &priority, &assignee, &reporter,
		&tags, &metadata, &hash, &t.CreatedAt, &t.UpdatedAt, &closedAt}
	dest = append(dest, extra...)
	err := r.Scan(dest...)
	if err != nil {
		return nil, err
	}

	t.Type = models.TicketType(typ)
	t.Priority = models.Priority(priority)
	t.Description = desc.String
	t.Assignee = assignee.String
	t.Reporter = reporter.String
	t.ContentHash = hash.String
	if closedAt.Valid {
		v := closedAt.Float64
		t.ClosedAt = &v
	}
	if tags.Valid && tags.String != "" {
		// Stored tags are our own JSON; a decode failure means the row was
		// tampered with outside the service.
		if err := json.Unmarshal([]byte(tags.String), &t.Tags); err != nil {
			t.Tags = nil
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &t.Metadata); err != nil {
			t.Metadata = nil
		}
	}
	return &t, nil
}

// Encoding helpers

func encodeTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, errors.Validation("invalid tags: %v", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, errors.Validation("invalid metadata: %v", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func contentHash(title, description string) string {
	sum := sha256.Sum256([]byte(title + "|" + description))
	return hex.EncodeToString(sum[:])[:16]
}

func jsonEqual(a, b sql.NullString) bool {
	return a.Valid == b.Valid && a.String == b.String
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func ptrToNull(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(s string) *string {
	return &s
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

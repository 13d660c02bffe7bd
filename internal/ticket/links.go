package ticket

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// LinkAdd creates a directed link between two existing tickets. Duplicate
// (source, target, type) triples surface as Conflict via the table's unique
// constraint rather than a pre-check, so concurrent adds cannot race past it.
func (s *Service) LinkAdd(ctx context.Context, sourceID, targetID int64, linkType models.LinkType) (*models.TicketLink, error) {
	if !linkType.IsValid() {
		return nil, errors.Validation("unknown link type: %q", string(linkType))
	}
	if sourceID == targetID {
		return nil, errors.Validation("a ticket cannot link to itself")
	}

	// Existence checks give clean NotFound messages instead of FK errors.
	if _, err := s.fetch(ctx, s.conn, sourceID, false); err != nil {
		return nil, err
	}
	target, err := s.fetch(ctx, s.conn, targetID, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	link := &models.TicketLink{
		SourceID:  sourceID,
		TargetID:  targetID,
		LinkType:  linkType,
		CreatedAt: now,
		Counterpart: &models.TicketRef{
			ID:     target.ID,
			Title:  target.Title,
			Type:   target.Type,
			Status: target.Status,
		},
	}

	query := s.sql(`
		INSERT INTO {schema}.ticket_link (source_id, target_id, link_type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`)
	err = s.conn.QueryRowContext(ctx, query, sourceID, targetID, string(linkType), now).Scan(&link.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, errors.Conflict("link %d -> %d (%s) already exists",
				sourceID, targetID, string(linkType))
		}
		return nil, errors.WrapInternal(err, "failed to create link")
	}
	return link, nil
}

// LinkList returns the ticket's links in both directions, each enriched with
// a reference to the ticket on the other end.
func (s *Service) LinkList(ctx context.Context, id int64) (*models.LinkSet, error) {
	if _, err := s.fetch(ctx, s.conn, id, false); err != nil {
		return nil, err
	}
	return s.fetchLinks(ctx, id)
}

// LinkRemove deletes one link by its id. Removing a link that does not exist
// is NotFound.
func (s *Service) LinkRemove(ctx context.Context, linkID int64) error {
	query := s.sql(`DELETE FROM {schema}.ticket_link WHERE id = $1 RETURNING id`)
	var deleted int64
	err := s.conn.QueryRowContext(ctx, query, linkID).Scan(&deleted)
	if err == sql.ErrNoRows {
		return errors.NotFound("link %d not found", linkID)
	}
	if err != nil {
		return errors.WrapInternal(err, "failed to remove link")
	}
	return nil
}

func (s *Service) fetchLinks(ctx context.Context, id int64) (*models.LinkSet, error) {
	set := &models.LinkSet{
		Outgoing: []*models.TicketLink{},
		Incoming: []*models.TicketLink{},
	}

	outgoing := s.sql(`
		SELECT l.id, l.source_id, l.target_id, l.link_type, l.created_at,
			t.id, t.title, t.type, t.status
		FROM {schema}.ticket_link l
		JOIN {schema}.ticket t ON t.id = l.target_id
		WHERE l.source_id = $1
		ORDER BY l.id ASC`)
	if err := s.scanLinks(ctx, outgoing, id, &set.Outgoing); err != nil {
		return nil, err
	}

	incoming := s.sql(`
		SELECT l.id, l.source_id, l.target_id, l.link_type, l.created_at,
			t.id, t.title, t.type, t.status
		FROM {schema}.ticket_link l
		JOIN {schema}.ticket t ON t.id = l.source_id
		WHERE l.target_id = $1
		ORDER BY l.id ASC`)
	if err := s.scanLinks(ctx, incoming, id, &set.Incoming); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Service) scanLinks(ctx context.Context, query string, id int64, out *[]*models.TicketLink) error {
	rows, err := s.conn.QueryContext(ctx, query, id)
	if err != nil {
		return errors.WrapInternal(err, "failed to load links")
	}
	defer rows.Close()

	for rows.Next() {
		var l models.TicketLink
		var ref models.TicketRef
		var linkType, refType string
		err := rows.Scan(&l.ID, &l.SourceID, &l.TargetID, &linkType, &l.CreatedAt,
			&ref.ID, &ref.Title, &refType, &ref.Status)
		if err != nil {
			return errors.WrapInternal(err, "failed to scan link row")
		}
		l.LinkType = models.LinkType(linkType)
		ref.Type = models.TicketType(refType)
		l.Counterpart = &ref
		*out = append(*out, &l)
	}
	if err := rows.Err(); err != nil {
		return errors.WrapInternal(err, "failed to read link rows")
	}
	return nil
}

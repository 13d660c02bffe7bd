package ticket

import (
	"context"
	"database/sql"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
	"github.com/diogenes-ai-code/ticketcore/internal/state"
)

// Transition moves a ticket along one edge of its type's state machine. The
// row is locked for the duration of the transaction so concurrent moves
// serialize; the loser re-validates against the winner's status and fails
// with InvalidTransition rather than clobbering it.
func (s *Service) Transition(ctx context.Context, id int64, to, changedBy string) (*models.Ticket, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	t, err := s.fetch(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := state.ValidateTransition(t.Type, t.Status, to); err != nil {
		return nil, err
	}
	if err := s.applyStatus(ctx, tx, t, to, changedBy); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.WrapInternal(err, "failed to commit transition")
	}
	return t, nil
}

// Close resolves the ticket to its type's preferred terminal status, provided
// that status is a single edge away. Tickets already terminal fail with
// InvalidTransition.
func (s *Service) Close(ctx context.Context, id int64, changedBy string) (*models.Ticket, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	t, err := s.fetch(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	target, err := state.CloseTarget(t.Type, t.Status)
	if err != nil {
		return nil, err
	}
	if err := s.applyStatus(ctx, tx, t, target, changedBy); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.WrapInternal(err, "failed to commit close")
	}
	return t, nil
}

// applyStatus writes one status change plus its history row inside the
// caller's transaction, updating t in place. Entering a terminal status
// stamps closed_at; leaving one (deferred decisions reopening) clears it.
func (s *Service) applyStatus(ctx context.Context, tx *sql.Tx, t *models.Ticket, to, changedBy string) error {
	now := s.now()
	var closedAt sql.NullFloat64
	if state.IsTerminal(t.Type, to) {
		closedAt = sql.NullFloat64{Float64: now, Valid: true}
	}

	query := s.sql(`UPDATE {schema}.ticket SET status = $1, updated_at = $2, closed_at = $3 WHERE id = $4`)
	if _, err := tx.ExecContext(ctx, query, to, now, closedAt, t.ID); err != nil {
		return errors.WrapInternal(err, "failed to update ticket status")
	}
	old := t.Status
	if err := s.insertHistory(ctx, tx, t.ID, "status", &old, &to, changedBy, now); err != nil {
		return err
	}

	t.Status = to
	t.UpdatedAt = now
	if closedAt.Valid {
		t.ClosedAt = &closedAt.Float64
	} else {
		t.ClosedAt = nil
	}
	return nil
}

// BatchTransition moves up to MaxBatchSize tickets to the same target status.
// Without confirm it is a dry run: every ticket is validated against its
// state machine but nothing is written. Per-ticket failures never abort the
// batch; each outcome is reported individually.
func (s *Service) BatchTransition(ctx context.Context, ids []int64, to, changedBy string, confirm bool) (*models.BatchResult, error) {
	if err := checkBatch(ids); err != nil {
		return nil, err
	}

	res := &models.BatchResult{Action: "move", Total: len(ids), DryRun: !confirm}
	for _, id := range ids {
		item := &models.BatchItem{TicketID: id}
		res.Results = append(res.Results, item)

		if !confirm {
			t, err := s.fetch(ctx, s.conn, id, false)
			if err == nil {
				err = state.ValidateTransition(t.Type, t.Status, to)
			}
			if err != nil {
				item.Error = err.Error()
				res.Failed++
				continue
			}
			item.Success = true
			item.OldStatus = t.Status
			item.NewStatus = to
			res.Succeeded++
			continue
		}

		old, t, err := s.transitionOne(ctx, id, to, changedBy)
		if err != nil {
			item.Error = err.Error()
			res.Failed++
			continue
		}
		item.Success = true
		item.OldStatus = old
		item.NewStatus = t.Status
		res.Succeeded++
	}
	return res, nil
}

func (s *Service) transitionOne(ctx context.Context, id int64, to, changedBy string) (string, *models.Ticket, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, errors.WrapInternal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	t, err := s.fetch(ctx, tx, id, true)
	if err != nil {
		return "", nil, err
	}
	old := t.Status
	if err := state.ValidateTransition(t.Type, t.Status, to); err != nil {
		return "", nil, err
	}
	if err := s.applyStatus(ctx, tx, t, to, changedBy); err != nil {
		return "", nil, err
	}
	if err := tx.Commit(); err != nil {
		return "", nil, errors.WrapInternal(err, "failed to commit transition")
	}
	return old, t, nil
}

// BatchClose walks up to MaxBatchSize tickets to their nearest terminal
// status, passing through intermediate statuses where the graph requires it.
// Each intermediate hop gets its own history row. Without confirm it only
// reports the path each ticket would take.
func (s *Service) BatchClose(ctx context.Context, ids []int64, changedBy string, confirm bool) (*models.BatchResult, error) {
	if err := checkBatch(ids); err != nil {
		return nil, err
	}

	res := &models.BatchResult{Action: "close", Total: len(ids), DryRun: !confirm}
	for _, id := range ids {
		item := &models.BatchItem{TicketID: id}
		res.Results = append(res.Results, item)

		if !confirm {
			t, err := s.fetch(ctx, s.conn, id, false)
			if err != nil {
				item.Error = err.Error()
				res.Failed++
				continue
			}
			path := state.ClosePath(t.Type, t.Status)
			if path == nil {
				item.Error = closePathError(t).Error()
				res.Failed++
				continue
			}
			item.Success = true
			item.OldStatus = t.Status
			item.NewStatus = path[len(path)-1]
			res.Succeeded++
			continue
		}

		old, t, err := s.closeOne(ctx, id, changedBy)
		if err != nil {
			item.Error = err.Error()
			res.Failed++
			continue
		}
		item.Success = true
		item.OldStatus = old
		item.NewStatus = t.Status
		res.Succeeded++
	}
	return res, nil
}

func (s *Service) closeOne(ctx context.Context, id int64, changedBy string) (string, *models.Ticket, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, errors.WrapInternal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	t, err := s.fetch(ctx, tx, id, true)
	if err != nil {
		return "", nil, err
	}
	old := t.Status
	path := state.ClosePath(t.Type, t.Status)
	if path == nil {
		return "", nil, closePathError(t)
	}
	for _, step := range path {
		if err := s.applyStatus(ctx, tx, t, step, changedBy); err != nil {
			return "", nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", nil, errors.WrapInternal(err, "failed to commit close")
	}
	return old, t, nil
}

func closePathError(t *models.Ticket) error {
	if state.IsTerminal(t.Type, t.Status) {
		return errors.InvalidTransition("%s is already in terminal status %q", t.Type, t.Status)
	}
	return errors.InvalidTransition("no path to a terminal status from %q", t.Status)
}

func checkBatch(ids []int64) error {
	if len(ids) == 0 {
		return errors.Validation("no ticket ids given")
	}
	if len(ids) > MaxBatchSize {
		return errors.Validation("batch size %d exceeds the maximum of %d", len(ids), MaxBatchSize)
	}
	return nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/erp-workflow/internal/domain"
)

// TicketHistoryRepository reads the append-only audit trail. Entries are
// written only through TicketRepository.SaveTransition.
type TicketHistoryRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (id, ticket_id, action_type, action_by, action_date, old_values, new_values, remarks, stage)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := tx.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.ActionType,
		entry.ActionBy,
		entry.ActionDate,
		entry.OldValues,
		entry.NewValues,
		entry.Remarks,
		entry.Stage,
	)
	return err
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if !validID(ticketID) {
		return []domain.TicketHistory{}, nil
	}
	const query = `
        SELECT id, ticket_id, action_type, action_by, action_date, old_values, new_values, remarks, stage
        FROM ticket_history WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.ActionType,
			&history.ActionBy,
			&history.ActionDate,
			&history.OldValues,
			&history.NewValues,
			&history.Remarks,
			&history.Stage,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

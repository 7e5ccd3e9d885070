package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/erp-workflow/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	RaisedBy      *string
	PCAccountable *string
	ProblemSolver *string
	// Involving matches tickets where the user holds any role.
	Involving *string
	Stage     *domain.TicketStage
	Statuses  []domain.TicketStatus
	Limit     int
	Offset    int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// SaveTransition writes ticket and appends entry atomically, provided the
	// stored version still equals expectedVersion. On success ticket.Version
	// is advanced.
	SaveTransition(ctx context.Context, ticket *domain.Ticket, expectedVersion int, entry *domain.TicketHistory) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_no, issue_description, priority, current_stage, status,
               raised_by, pc_accountable, problem_solver, solver_planned_date, solver_remark,
               pc_status, pc_remark, pc_status_stage4, pc_remark_stage4,
               closing_rating, closing_status, remarks, image_upload, proof_upload,
               version, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO help_tickets (id, ticket_no, issue_description, priority, current_stage, status,
            raised_by, pc_accountable, image_upload, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.TicketNo,
		ticket.IssueDescription,
		ticket.Priority,
		ticket.CurrentStage,
		ticket.Status,
		ticket.RaisedBy,
		ticket.PCAccountable,
		ticket.ImageUpload,
		ticket.Version,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
	return translate(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM help_tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

func (r *ticketRepository) SaveTransition(ctx context.Context, ticket *domain.Ticket, expectedVersion int, entry *domain.TicketHistory) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const update = `
        UPDATE help_tickets SET current_stage=$1, status=$2, problem_solver=$3, solver_planned_date=$4,
            solver_remark=$5, pc_status=$6, pc_remark=$7, pc_status_stage4=$8, pc_remark_stage4=$9,
            closing_rating=$10, closing_status=$11, remarks=$12, proof_upload=$13, closed_at=$14,
            updated_at=$15, version=version+1
        WHERE id=$16 AND version=$17`
	cmd, err := tx.Exec(ctx, update,
		ticket.CurrentStage,
		ticket.Status,
		ticket.ProblemSolver,
		ticket.SolverPlannedDate,
		ticket.SolverRemark,
		ticket.PCStatus,
		ticket.PCRemark,
		ticket.PCStatusStage4,
		ticket.PCRemarkStage4,
		ticket.ClosingRating,
		ticket.ClosingStatus,
		ticket.Remarks,
		ticket.ProofUpload,
		ticket.ClosedAt,
		ticket.UpdatedAt,
		ticket.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	ticket.Version = expectedVersion + 1
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	addEq := func(column string, value *string) {
		if value == nil {
			return
		}
		if !validID(*value) {
			clauses = append(clauses, "FALSE")
			return
		}
		args = append(args, *value)
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	addEq("raised_by", filter.RaisedBy)
	addEq("pc_accountable", filter.PCAccountable)
	addEq("problem_solver", filter.ProblemSolver)
	if filter.Involving != nil {
		if validID(*filter.Involving) {
			args = append(args, *filter.Involving)
			p := len(args)
			clauses = append(clauses, fmt.Sprintf("(raised_by=$%d OR pc_accountable=$%d OR problem_solver=$%d)", p, p, p))
		} else {
			clauses = append(clauses, "FALSE")
		}
	}
	if filter.Stage != nil {
		args = append(args, *filter.Stage)
		clauses = append(clauses, fmt.Sprintf("current_stage=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit, offset := PageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM help_tickets WHERE %s ORDER BY updated_at DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNo,
		&ticket.IssueDescription,
		&ticket.Priority,
		&ticket.CurrentStage,
		&ticket.Status,
		&ticket.RaisedBy,
		&ticket.PCAccountable,
		&ticket.ProblemSolver,
		&ticket.SolverPlannedDate,
		&ticket.SolverRemark,
		&ticket.PCStatus,
		&ticket.PCRemark,
		&ticket.PCStatusStage4,
		&ticket.PCRemarkStage4,
		&ticket.ClosingRating,
		&ticket.ClosingStatus,
		&ticket.Remarks,
		&ticket.ImageUpload,
		&ticket.ProofUpload,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// PageBounds clamps paging parameters to the listing defaults.
func PageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/erp-workflow/internal/domain"
)

// OrderFilter captures order listing parameters.
type OrderFilter struct {
	CreatedBy     *string
	OverallStatus *domain.OrderStatus
	Limit         int
	Offset        int
}

// OrderRepository encapsulates O2D order persistence.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListWithFilter(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	// SaveStep writes step and bumps the owning order's version, provided it
	// still equals expectedVersion. On success order.Version is advanced.
	SaveStep(ctx context.Context, order *domain.Order, expectedVersion int, step *domain.Step, now time.Time) error
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `id, order_no, party_name, customer_type, contact_person, contact_number,
               contact_email, address, created_by, version, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertOrder = `
        INSERT INTO o2d_orders (id, order_no, party_name, customer_type, contact_person, contact_number,
            contact_email, address, created_by, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`
	if err := tx.QueryRow(ctx, insertOrder,
		order.ID,
		order.OrderNo,
		order.PartyName,
		order.CustomerType,
		order.ContactPerson,
		order.ContactNumber,
		order.ContactEmail,
		order.Address,
		order.CreatedBy,
		order.Version,
	).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(`INSERT INTO o2d_order_items (id, order_id, position, item_name, qty) VALUES ($1,$2,$3,$4,$5)`,
			item.ID, order.ID, i+1, item.ItemName, item.Qty)
	}
	for _, step := range order.Steps {
		batch.Queue(`
            INSERT INTO o2d_steps (id, order_id, step_name, dependency_group, position, planned_date, status, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			step.ID, order.ID, step.StepName, step.DependencyGroup, step.Position, step.PlannedDate, step.Status, order.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	for i := range order.Steps {
		order.Steps[i].OrderID = order.ID
		order.Steps[i].UpdatedAt = order.CreatedAt
	}
	return tx.Commit(ctx)
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + orderColumns + ` FROM o2d_orders WHERE id=$1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	orders := []domain.Order{*order}
	if err := r.loadChildren(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepository) ListWithFilter(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("o.created_by::text=$%d", len(args)))
	}
	if filter.OverallStatus != nil {
		const notCompleted = `EXISTS (SELECT 1 FROM o2d_steps s WHERE s.order_id=o.id AND s.status<>'COMPLETED')`
		const started = `EXISTS (SELECT 1 FROM o2d_steps s WHERE s.order_id=o.id AND s.status<>'PENDING')`
		switch *filter.OverallStatus {
		case domain.OrderStatusComplete:
			clauses = append(clauses, "NOT "+notCompleted)
		case domain.OrderStatusInProgress:
			clauses = append(clauses, notCompleted, started)
		case domain.OrderStatusPending:
			clauses = append(clauses, "NOT "+started)
		}
	}

	limit, offset := PageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM o2d_orders o WHERE %s ORDER BY o.created_at DESC, o.id LIMIT %d OFFSET %d`,
		prefixed("o.", orderColumns), strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) SaveStep(ctx context.Context, order *domain.Order, expectedVersion int, step *domain.Step, now time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx,
		`UPDATE o2d_orders SET version=version+1, updated_at=$1 WHERE id=$2 AND version=$3`,
		now, order.ID, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	const update = `
        UPDATE o2d_steps SET assigned_to=$1, planned_date=$2, actual_date=$3, status=$4,
            remarks=$5, completed_by=$6, updated_at=$7
        WHERE id=$8 AND order_id=$9`
	cmd, err = tx.Exec(ctx, update,
		step.AssignedTo,
		step.PlannedDate,
		step.ActualDate,
		step.Status,
		step.Remarks,
		step.CompletedBy,
		step.UpdatedAt,
		step.ID,
		order.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	order.Version = expectedVersion + 1
	order.UpdatedAt = now
	return nil
}

func (r *orderRepository) loadChildren(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []domain.OrderItem{}
		orders[i].Steps = []domain.Step{}
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT order_id, id, item_name, qty FROM o2d_order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ID, &item.ItemName, &item.Qty); err != nil {
			itemRows.Close()
			return err
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return err
	}

	stepRows, err := r.pool.Query(ctx, `
        SELECT id, order_id, step_name, dependency_group, position, assigned_to, planned_date,
               actual_date, status, remarks, completed_by, updated_at
        FROM o2d_steps WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer stepRows.Close()
	for stepRows.Next() {
		var step domain.Step
		if err := stepRows.Scan(
			&step.ID,
			&step.OrderID,
			&step.StepName,
			&step.DependencyGroup,
			&step.Position,
			&step.AssignedTo,
			&step.PlannedDate,
			&step.ActualDate,
			&step.Status,
			&step.Remarks,
			&step.CompletedBy,
			&step.UpdatedAt,
		); err != nil {
			return err
		}
		i := index[step.OrderID]
		orders[i].Steps = append(orders[i].Steps, step)
	}
	return stepRows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	if err := row.Scan(
		&order.ID,
		&order.OrderNo,
		&order.PartyName,
		&order.CustomerType,
		&order.ContactPerson,
		&order.ContactNumber,
		&order.ContactEmail,
		&order.Address,
		&order.CreatedBy,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &order, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

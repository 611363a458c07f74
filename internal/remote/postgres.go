package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"posd/internal/apperr"
	"posd/internal/common/db"
	"posd/internal/domain"
)

// Postgres implements Gateway against the central store.
type Postgres struct {
	conn *db.Conn
}

func NewPostgres(conn *db.Conn) *Postgres { return &Postgres{conn: conn} }

// classify maps driver errors onto the apperr taxonomy. Constraint and
// data errors (SQLSTATE classes 22 and 23) mean the store rejected the
// operation; anything else is assumed retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFoundf("%v", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		class := ""
		if len(pgErr.Code) >= 2 {
			class = pgErr.Code[:2]
		}
		if class == "22" || class == "23" {
			return fmt.Errorf("%w: %s", apperr.ErrValidation, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
}

const orderColumns = `id, status, order_type, source, total_amount, table_number,
	customer_name, customer_phone, payment_method, served_at, created_at`

func (p *Postgres) scanOrder(ctx context.Context, row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var payment *string
	err := row.Scan(&o.ID, &o.Status, &o.Type, &o.Source, &o.Total, &o.TableNumber,
		&o.CustomerName, &o.CustomerPhone, &payment, &o.ServedAt, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if payment != nil {
		m := domain.PaymentMethod(*payment)
		o.PaymentMethod = &m
	}
	items, err := p.fetchItems(ctx, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (p *Postgres) fetchItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT id, menu_item_id, name, price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.MenuItemID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (p *Postgres) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return domain.Order{}, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var serverID string
	err = tx.QueryRow(ctx, `
		INSERT INTO orders
			(status, order_type, source, total_amount, table_number,
			 customer_name, customer_phone, terminal_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id`,
		o.Status, o.Type, o.Source, o.Total, o.TableNumber,
		o.CustomerName, o.CustomerPhone, o.ID,
	).Scan(&serverID)
	if err != nil {
		return domain.Order{}, classify(err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, price, quantity, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())`,
			serverID, it.MenuItemID, it.Name, it.Price, it.Quantity)
		if err != nil {
			return domain.Order{}, classify(err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, 'pos-terminal', NOW())`, serverID, o.Status)
	if err != nil {
		return domain.Order{}, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, classify(err)
	}

	confirmed := o.Clone()
	confirmed.ID = serverID
	return confirmed, nil
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	row := p.conn.QueryRow(ctx, `
		UPDATE orders SET status = $2,
			served_at = CASE WHEN $2 = 'delivered' THEN NOW() ELSE served_at END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns, id, status)
	o, err := p.scanOrder(ctx, row)
	if err != nil {
		return domain.Order{}, classify(err)
	}
	_, err = p.conn.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, 'pos-terminal', NOW())`, id, status)
	if err != nil {
		return domain.Order{}, classify(err)
	}
	return o, nil
}

func (p *Postgres) RecordPayment(ctx context.Context, id string, method domain.PaymentMethod) (domain.Order, error) {
	row := p.conn.QueryRow(ctx, `
		UPDATE orders SET payment_method = $2, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns, id, method)
	o, err := p.scanOrder(ctx, row)
	if err != nil {
		return domain.Order{}, classify(err)
	}
	return o, nil
}

func (p *Postgres) CancelOrder(ctx context.Context, id, reason string) error {
	tag, err := p.conn.Exec(ctx, `
		UPDATE orders SET status = 'cancelled', cancel_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('delivered', 'cancelled')`, id, reason)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("order %s not cancellable", id)
	}
	return nil
}

func (p *Postgres) UpdateOrderItems(ctx context.Context, id string, items []domain.OrderItem) (domain.Order, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return domain.Order{}, classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return domain.Order{}, classify(err)
	}
	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, price, quantity, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())`,
			id, it.MenuItemID, it.Name, it.Price, it.Quantity)
		if err != nil {
			return domain.Order{}, classify(err)
		}
	}
	row := tx.QueryRow(ctx, `
		UPDATE orders SET total_amount = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id`, id, domain.ItemsTotal(items))
	var serverID string
	if err := row.Scan(&serverID); err != nil {
		return domain.Order{}, classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, classify(err)
	}
	return p.fetchOrder(ctx, id)
}

func (p *Postgres) fetchOrder(ctx context.Context, id string) (domain.Order, error) {
	row := p.conn.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := p.scanOrder(ctx, row)
	if err != nil {
		return domain.Order{}, classify(err)
	}
	return o, nil
}

func (p *Postgres) FetchTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT id, table_number, capacity, status, current_order_id
		FROM restaurant_tables ORDER BY table_number`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var tables []domain.Table
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity, &t.Status, &t.CurrentOrderID); err != nil {
			return nil, classify(err)
		}
		tables = append(tables, t)
	}
	return tables, classify(rows.Err())
}

func (p *Postgres) UpdateTableStatus(ctx context.Context, id string, status domain.TableStatus, orderID *string) (domain.Table, error) {
	row := p.conn.QueryRow(ctx, `
		UPDATE restaurant_tables SET status = $2, current_order_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, table_number, capacity, status, current_order_id`, id, status, orderID)
	var t domain.Table
	if err := row.Scan(&t.ID, &t.Number, &t.Capacity, &t.Status, &t.CurrentOrderID); err != nil {
		return domain.Table{}, classify(err)
	}
	return t, nil
}

func (p *Postgres) FetchActiveReservations(ctx context.Context) ([]domain.Reservation, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT id, table_id, customer_name, booked_at, cancelled
		FROM reservations
		WHERE NOT cancelled AND booked_at::date = CURRENT_DATE
		ORDER BY booked_at`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var res []domain.Reservation
	for rows.Next() {
		var r domain.Reservation
		var booked time.Time
		if err := rows.Scan(&r.ID, &r.TableID, &r.CustomerName, &booked, &r.Cancelled); err != nil {
			return nil, classify(err)
		}
		r.BookedAt = booked
		res = append(res, r)
	}
	return res, classify(rows.Err())
}

func (p *Postgres) DeliveryFee(ctx context.Context) (float64, error) {
	var fee float64
	err := p.conn.QueryRow(ctx, `
		SELECT value::float8 FROM app_settings WHERE key = 'delivery_fee'`).Scan(&fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, classify(err)
	}
	return fee, nil
}

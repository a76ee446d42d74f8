package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		phone_number VARCHAR(32) PRIMARY KEY,
		city_code VARCHAR(16) NOT NULL DEFAULT '',
		location VARCHAR(255) NOT NULL DEFAULT '',
		conversation_step VARCHAR(32) NOT NULL,
		session_data TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id CHAR(36) PRIMARY KEY,
		user_phone VARCHAR(32) NOT NULL,
		items TEXT NOT NULL,
		total_price DECIMAL(12,2) NOT NULL,
		status VARCHAR(32) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_orders_user_created (user_phone, created_at)
	)`,
}

const orderColumns = `id, user_phone, items, total_price, status, created_at, updated_at`

// MySQLAdapter expects a DSN with parseTime=true.
type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) GetUser(ctx context.Context, phone string) (*domain.User, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT phone_number, city_code, location, conversation_step, session_data, created_at, updated_at
		FROM users WHERE phone_number = ?`, phone)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

func (m *MySQLAdapter) SaveUser(ctx context.Context, user domain.User) error {
	session, err := json.Marshal(user.SessionData)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO users (phone_number, city_code, location, conversation_step, session_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			city_code = VALUES(city_code),
			location = VALUES(location),
			conversation_step = VALUES(conversation_step),
			session_data = VALUES(session_data),
			updated_at = VALUES(updated_at)`,
		user.PhoneNumber, user.CityCode, user.Location, string(user.ConversationStep), string(session),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT phone_number, city_code, location, conversation_step, session_data, created_at, updated_at
		FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserPhone, string(items), order.TotalPrice, string(order.Status),
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (m *MySQLAdapter) LatestOrder(ctx context.Context, phone string) (*domain.Order, error) {
	orders, err := m.RecentOrders(ctx, phone, 1)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (m *MySQLAdapter) RecentOrders(ctx context.Context, phone string, limit int) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_phone = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent orders: %w", err)
	}
	return collectOrders(rows)
}

func (m *MySQLAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return collectOrders(rows)
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), m.now(), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	existing, err := m.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderStatusConflict
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s scanner) (*domain.User, error) {
	var (
		u       domain.User
		step    string
		session string
	)
	if err := s.Scan(&u.PhoneNumber, &u.CityCode, &u.Location, &step, &session, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ConversationStep = domain.ConversationStep(step)
	if session != "" {
		if err := json.Unmarshal([]byte(session), &u.SessionData); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
	}
	return &u, nil
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		o      domain.Order
		items  string
		status string
	)
	if err := s.Scan(&o.ID, &o.UserPhone, &items, &o.TotalPrice, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"pedidos-backend/internal/models"
)

type Client struct {
	db *sql.DB
}

func NewClient(connectionString string) (*Client, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) CreatePedido(ctx context.Context, pedido *models.Pedido) (*models.Pedido, error) {
	imagesJSON, err := json.Marshal(pedido.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to encode images: %w", err)
	}

	var created models.Pedido
	var rawImages []byte
	err = c.db.QueryRowContext(ctx, `
		INSERT INTO pedidos (id, user_id, description, quantity, time_estimate, images)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, description, quantity, time_estimate, images, seq, created_at, updated_at
	`, pedido.ID, pedido.UserID, pedido.Description, pedido.Quantity, pedido.Time, imagesJSON).Scan(
		&created.ID, &created.UserID, &created.Description, &created.Quantity,
		&created.Time, &rawImages, &created.Seq, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pedido: %w", err)
	}

	if err := json.Unmarshal(rawImages, &created.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}

	return &created, nil
}

func (c *Client) GetPedido(ctx context.Context, id uuid.UUID) (*models.Pedido, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, user_id, description, quantity, time_estimate, images, seq, created_at, updated_at
		FROM pedidos
		WHERE id = $1
	`, id)

	pedido, err := scanPedido(row)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pedido: %w", err)
	}

	return pedido, nil
}

func (c *Client) ListPedidos(ctx context.Context) ([]models.Pedido, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, description, quantity, time_estimate, images, seq, created_at, updated_at
		FROM pedidos
		ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pedidos: %w", err)
	}
	defer rows.Close()

	return collectPedidos(rows)
}

func (c *Client) ListPedidosByUser(ctx context.Context, userID uuid.UUID) ([]models.Pedido, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, description, quantity, time_estimate, images, seq, created_at, updated_at
		FROM pedidos
		WHERE user_id = $1
		ORDER BY seq DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pedidos by user: %w", err)
	}
	defer rows.Close()

	return collectPedidos(rows)
}

func (c *Client) UpdatePedido(ctx context.Context, pedido *models.Pedido) (*models.Pedido, error) {
	imagesJSON, err := json.Marshal(pedido.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to encode images: %w", err)
	}

	var updated models.Pedido
	var rawImages []byte
	err = c.db.QueryRowContext(ctx, `
		UPDATE pedidos
		SET description = $1, quantity = $2, time_estimate = $3, images = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING id, user_id, description, quantity, time_estimate, images, seq, created_at, updated_at
	`, pedido.Description, pedido.Quantity, pedido.Time, imagesJSON, pedido.ID).Scan(
		&updated.ID, &updated.UserID, &updated.Description, &updated.Quantity,
		&updated.Time, &rawImages, &updated.Seq, &updated.CreatedAt, &updated.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update pedido: %w", err)
	}

	if err := json.Unmarshal(rawImages, &updated.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}

	return &updated, nil
}

func (c *Client) DeletePedido(ctx context.Context, id uuid.UUID) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM pedidos
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pedido: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete pedido: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPedido(row rowScanner) (*models.Pedido, error) {
	var pedido models.Pedido
	var rawImages []byte
	err := row.Scan(
		&pedido.ID, &pedido.UserID, &pedido.Description, &pedido.Quantity,
		&pedido.Time, &rawImages, &pedido.Seq, &pedido.CreatedAt, &pedido.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rawImages, &pedido.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}

	return &pedido, nil
}

func collectPedidos(rows *sql.Rows) ([]models.Pedido, error) {
	var pedidos []models.Pedido
	for rows.Next() {
		pedido, err := scanPedido(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pedido: %w", err)
		}
		pedidos = append(pedidos, *pedido)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pedidos: %w", err)
	}

	return pedidos, nil
}

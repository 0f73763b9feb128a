package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"

	"github.com/danpasecinic/reservable/internal/types"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore is a PostgreSQL implementation of Registry
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL node store
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &PostgresStore{db: db}

	if err := store.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// runMigrations applies database schema using goose
func (s *PostgresStore) runMigrations() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RegisterNode inserts a node or replaces the existing row of the same name
func (s *PostgresStore) RegisterNode(ctx context.Context, node types.Node) (types.Node, error) {
	node.Name = strings.TrimSpace(node.Name)
	if node.Name == "" {
		return types.Node{}, ErrInvalidNode
	}

	settingsJSON, err := marshalSettings(node.Settings)
	if err != nil {
		return types.Node{}, err
	}

	query := `
		INSERT INTO nodes (name, labels, reservable, settings, status, last_heartbeat)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			labels = EXCLUDED.labels,
			reservable = EXCLUDED.reservable,
			settings = EXCLUDED.settings,
			status = EXCLUDED.status,
			last_heartbeat = EXCLUDED.last_heartbeat
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		node.Name,
		node.Labels,
		node.Reservable,
		settingsJSON,
		node.Status,
		node.LastHeartbeat,
	)
	if err != nil {
		return types.Node{}, fmt.Errorf("failed to upsert node: %w", err)
	}

	return node, nil
}

// GetNode retrieves a node by name
func (s *PostgresStore) GetNode(ctx context.Context, name string) (types.Node, error) {
	query := `
		SELECT name, labels, reservable, settings, status, last_heartbeat
		FROM nodes
		WHERE name = $1
	`

	node, err := scanNode(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Node{}, ErrNodeNotFound
	}
	if err != nil {
		return types.Node{}, fmt.Errorf("failed to get node: %w", err)
	}

	return node, nil
}

// IsOnline reports whether the named node is currently online
func (s *PostgresStore) IsOnline(ctx context.Context, name string) (bool, error) {
	var status types.NodeStatus
	err := s.db.QueryRowContext(ctx, "SELECT status FROM nodes WHERE name = $1", name).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNodeNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to get node status: %w", err)
	}
	return status == types.NodeOnline, nil
}

// UpdateNode updates specific fields of a node
func (s *PostgresStore) UpdateNode(ctx context.Context, name string, updates NodeUpdate) error {
	query := "UPDATE nodes SET "
	var args []interface{}
	argPos := 1

	if updates.Status != nil {
		query += fmt.Sprintf("status = $%d, ", argPos)
		args = append(args, *updates.Status)
		argPos++
	}
	if updates.LastHeartbeat != nil {
		query += fmt.Sprintf("last_heartbeat = $%d, ", argPos)
		args = append(args, *updates.LastHeartbeat)
		argPos++
	}
	if updates.Labels != nil {
		query += fmt.Sprintf("labels = $%d, ", argPos)
		args = append(args, *updates.Labels)
		argPos++
	}
	if updates.Reservable != nil {
		query += fmt.Sprintf("reservable = $%d, ", argPos)
		args = append(args, *updates.Reservable)
		argPos++
	}
	if updates.Settings != nil {
		settingsJSON, err := marshalSettings(updates.Settings)
		if err != nil {
			return err
		}
		query += fmt.Sprintf("settings = $%d, ", argPos)
		args = append(args, settingsJSON)
		argPos++
	}

	if len(args) == 0 {
		_, err := s.GetNode(ctx, name)
		return err
	}

	query = query[:len(query)-2]
	query += fmt.Sprintf(" WHERE name = $%d", argPos)
	args = append(args, name)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	return nil
}

// ListNodes returns all nodes ordered by name
func (s *PostgresStore) ListNodes(ctx context.Context) ([]types.Node, error) {
	query := `
		SELECT name, labels, reservable, settings, status, last_heartbeat
		FROM nodes
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var nodes []types.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

// DeleteNode removes a node from the store
func (s *PostgresStore) DeleteNode(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM nodes WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (types.Node, error) {
	var node types.Node
	var settingsJSON []byte
	err := row.Scan(
		&node.Name,
		&node.Labels,
		&node.Reservable,
		&settingsJSON,
		&node.Status,
		&node.LastHeartbeat,
	)
	if err != nil {
		return types.Node{}, err
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &node.Settings); err != nil {
			return types.Node{}, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	if len(node.Settings) == 0 {
		node.Settings = nil
	}

	return node, nil
}

func marshalSettings(settings []types.Setting) ([]byte, error) {
	if settings == nil {
		settings = []types.Setting{}
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return data, nil
}

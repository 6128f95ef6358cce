// Package database provides durable storage for polygons.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/config"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// ErrInvalidPolygon is returned by Create when the record would break the
// stored-polygon invariants. Callers are expected to validate first.
var ErrInvalidPolygon = errors.New("invalid polygon")

// Repository defines the interface for polygon data operations.
type Repository interface {
	// Create stores a new polygon and returns it with its assigned ID.
	Create(ctx context.Context, name string, points []geometry.Point) (*models.Polygon, error)

	// GetByID retrieves a polygon by its ID. It returns nil, nil when absent.
	GetByID(ctx context.Context, id int64) (*models.Polygon, error)

	// List retrieves all polygons in ascending ID order.
	List(ctx context.Context) ([]models.Polygon, error)

	// DeleteByID removes a polygon and reports whether it existed.
	DeleteByID(ctx context.Context, id int64) (bool, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close()
}

// NewRepository opens the store named by cfg.DatabaseURL.
func NewRepository(cfg *config.Config, logger *zap.Logger) (Repository, error) {
	url := cfg.DatabaseURL
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return NewPostgresRepository(cfg, logger)
	}
	return NewSQLiteRepository(sqlitePath(url), logger)
}

// checkPolygon re-asserts the invariants that do not depend on configured limits.
func checkPolygon(name string, points []geometry.Point) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPolygon)
	}
	if len(points) < geometry.MinPoints {
		return fmt.Errorf("%w: %d points", ErrInvalidPolygon, len(points))
	}
	for i, p := range points {
		if !p.IsFinite() {
			return fmt.Errorf("%w: point %d is not finite", ErrInvalidPolygon, i)
		}
	}
	return nil
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(cfg *config.Config, logger *zap.Logger) (*PostgresRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &PostgresRepository{
		pool:   pool,
		logger: logger,
	}

	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Connected to PostgreSQL database")
	return repo, nil
}

// migrate creates the necessary database tables if they don't exist.
// BIGSERIAL values come from a sequence and are never handed out twice,
// including after deletes and restarts.
func (r *PostgresRepository) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS polygons (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			points JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := r.pool.Exec(ctx, query)
	return err
}

// Create inserts the polygon; the ID is assigned by the INSERT itself.
func (r *PostgresRepository) Create(ctx context.Context, name string, points []geometry.Point) (*models.Polygon, error) {
	if err := checkPolygon(name, points); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("failed to encode points: %w", err)
	}

	query := `
		INSERT INTO polygons (name, points, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	polygon := &models.Polygon{Name: name, Points: points}
	err = r.pool.QueryRow(ctx, query, name, string(encoded), time.Now().UTC()).Scan(&polygon.ID)
	if err != nil {
		r.logger.Error("Failed to create polygon", zap.Error(err))
		return nil, fmt.Errorf("failed to create polygon: %w", err)
	}

	r.logger.Info("Created polygon", zap.Int64("id", polygon.ID), zap.Int("points", len(points)))
	return polygon, nil
}

// GetByID retrieves a polygon by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Polygon, error) {
	query := `
		SELECT id, name, points::text
		FROM polygons
		WHERE id = $1
	`

	var (
		polygon models.Polygon
		raw     string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(&polygon.ID, &polygon.Name, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get polygon", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get polygon: %w", err)
	}

	if polygon.Points, err = decodePoints(raw); err != nil {
		r.logger.Error("Stored points are corrupt", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	return &polygon, nil
}

// List retrieves all polygons.
func (r *PostgresRepository) List(ctx context.Context) ([]models.Polygon, error) {
	query := `
		SELECT id, name, points::text
		FROM polygons
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list polygons", zap.Error(err))
		return nil, fmt.Errorf("failed to list polygons: %w", err)
	}
	defer rows.Close()

	polygons := []models.Polygon{}
	for rows.Next() {
		var (
			polygon models.Polygon
			raw     string
		)
		if err := rows.Scan(&polygon.ID, &polygon.Name, &raw); err != nil {
			r.logger.Error("Failed to scan polygon row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan polygon: %w", err)
		}
		if polygon.Points, err = decodePoints(raw); err != nil {
			r.logger.Error("Stored points are corrupt", zap.Int64("id", polygon.ID), zap.Error(err))
			return nil, err
		}
		polygons = append(polygons, polygon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list polygons: %w", err)
	}

	return polygons, nil
}

// DeleteByID removes a polygon by its ID.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM polygons WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete polygon", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete polygon: %w", err)
	}

	if result.RowsAffected() == 0 {
		return false, nil
	}

	r.logger.Info("Deleted polygon", zap.Int64("id", id))
	return true, nil
}

// Ping checks the pool.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
	r.logger.Info("Closed database connection")
}

func decodePoints(raw string) ([]geometry.Point, error) {
	var points []geometry.Point
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, fmt.Errorf("failed to decode stored points: %w", err)
	}
	return points, nil
}

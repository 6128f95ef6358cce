package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// SQLiteRepository implements Repository on a local SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// sqlitePath turns a sqlite URL or "file:x.db" into a file path. Three
// slashes are followed by a relative path and four by an absolute one, so
// "sqlite:///./data/polygon.db" stays relative. The two-slash form
// "sqlite://./data/polygon.db" is kept as is. Anything else is taken as a
// path already.
func sqlitePath(url string) string {
	switch {
	case strings.HasPrefix(url, "sqlite:///"):
		return strings.TrimPrefix(url, "sqlite:///")
	case strings.HasPrefix(url, "sqlite://"):
		return strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "file:"):
		return strings.TrimPrefix(url, "file:")
	}
	return url
}

// NewSQLiteRepository opens (creating if needed) the database at path.
func NewSQLiteRepository(path string, logger *zap.Logger) (*SQLiteRepository, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes statements
	// instead of surfacing SQLITE_BUSY to concurrent requests.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := &SQLiteRepository{db: db, logger: logger}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Opened SQLite database", zap.String("path", path))
	return repo, nil
}

// migrate creates the table. AUTOINCREMENT keeps the high-water mark in
// sqlite_sequence so deleted IDs are never reissued.
func (r *SQLiteRepository) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS polygons (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			points TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Create inserts the polygon and reads back the assigned ID.
func (r *SQLiteRepository) Create(ctx context.Context, name string, points []geometry.Point) (*models.Polygon, error) {
	if err := checkPolygon(name, points); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("failed to encode points: %w", err)
	}

	polygon := &models.Polygon{Name: name, Points: points}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO polygons (name, points, created_at) VALUES (?, ?, ?) RETURNING id`,
		name, string(encoded), time.Now().UTC(),
	).Scan(&polygon.ID)
	if err != nil {
		r.logger.Error("Failed to create polygon", zap.Error(err))
		return nil, fmt.Errorf("failed to create polygon: %w", err)
	}

	r.logger.Info("Created polygon", zap.Int64("id", polygon.ID), zap.Int("points", len(points)))
	return polygon, nil
}

// GetByID retrieves a polygon by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Polygon, error) {
	var (
		polygon models.Polygon
		raw     string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, points FROM polygons WHERE id = ?`, id).
		Scan(&polygon.ID, &polygon.Name, &raw)
	if errors.Is(err, sql.ErrNoRows) {
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

// List retrieves all polygons in ascending ID order.
func (r *SQLiteRepository) List(ctx context.Context) ([]models.Polygon, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, points FROM polygons ORDER BY id ASC`)
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
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM polygons WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete polygon", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete polygon: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete polygon: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	r.logger.Info("Deleted polygon", zap.Int64("id", id))
	return true, nil
}

// Ping checks the database handle.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *SQLiteRepository) Close() {
	if err := r.db.Close(); err != nil {
		r.logger.Warn("Failed to close SQLite database", zap.Error(err))
		return
	}
	r.logger.Info("Closed database connection")
}

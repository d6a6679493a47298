package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vbonduro/interop/internal/domain"
)

// TargetStore persists targets and the gps_positions rows they reference.
// A target and its location are always written in the same transaction.
type TargetStore struct {
	db *sql.DB
}

func NewTargetStore(db *sql.DB) *TargetStore {
	return &TargetStore{db: db}
}

const selectTarget = `
	SELECT t.id, t.user_id, t.target_type, t.location_id, g.latitude, g.longitude,
	       t.orientation, t.shape, t.background_color, t.alphanumeric,
	       t.alphanumeric_color, t.description, t.thumbnail, t.created_at, t.updated_at
	FROM targets t
	LEFT JOIN gps_positions g ON g.id = t.location_id`

// Create inserts t (and its location, if any) and returns the stored record
// with its assigned identifiers.
func (s *TargetStore) Create(ctx context.Context, t *domain.Target) (*domain.Target, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var locationID sql.NullInt64
		if t.Location != nil {
			lid, err := insertLocation(ctx, tx, t.Location)
			if err != nil {
				return err
			}
			locationID = sql.NullInt64{Int64: lid, Valid: true}
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO targets (user_id, target_type, location_id, orientation, shape,
				background_color, alphanumeric, alphanumeric_color, description, thumbnail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.UserID, t.Type.String(), locationID, enumColumn(t.Orientation), enumColumn(t.Shape),
			enumColumn(t.BackgroundColor), t.Alphanumeric, enumColumn(t.AlphanumericColor),
			t.Description, t.Thumbnail)
		if err != nil {
			return fmt.Errorf("failed to create target: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// GetByID returns nil, nil when no target has the given id.
func (s *TargetStore) GetByID(ctx context.Context, id int64) (*domain.Target, error) {
	t, err := scanTarget(s.db.QueryRowContext(ctx, selectTarget+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return t, nil
}

// ListByUser returns at most limit of userID's targets in id order.
func (s *TargetStore) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, selectTarget+` WHERE t.user_id = ? ORDER BY t.id ASC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close target rows", "error", err)
		}
	}()

	targets := make([]*domain.Target, 0)
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}

	return targets, nil
}

// Update persists every mutable column of t except the thumbnail. The
// location row is reconciled with t.Location: nil detaches and deletes the
// previous row, ID 0 inserts a new row, otherwise the row is updated in place.
func (s *TargetStore) Update(ctx context.Context, t *domain.Target) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		previous, err := currentLocationID(ctx, tx, t.ID)
		if err != nil {
			return err
		}

		var locationID sql.NullInt64
		switch {
		case t.Location == nil:
		case t.Location.ID == 0:
			lid, err := insertLocation(ctx, tx, t.Location)
			if err != nil {
				return err
			}
			t.Location.ID = lid
			locationID = sql.NullInt64{Int64: lid, Valid: true}
		default:
			if _, err := tx.ExecContext(ctx, `
				UPDATE gps_positions SET latitude = ?, longitude = ? WHERE id = ?
			`, t.Location.Latitude, t.Location.Longitude, t.Location.ID); err != nil {
				return fmt.Errorf("failed to update location: %w", err)
			}
			locationID = sql.NullInt64{Int64: t.Location.ID, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE targets SET target_type = ?, location_id = ?, orientation = ?, shape = ?,
				background_color = ?, alphanumeric = ?, alphanumeric_color = ?, description = ?,
				updated_at = datetime('now')
			WHERE id = ?
		`, t.Type.String(), locationID, enumColumn(t.Orientation), enumColumn(t.Shape),
			enumColumn(t.BackgroundColor), t.Alphanumeric, enumColumn(t.AlphanumericColor),
			t.Description, t.ID); err != nil {
			return fmt.Errorf("failed to update target: %w", err)
		}

		if previous.Valid && previous != locationID {
			if _, err := tx.ExecContext(ctx, `DELETE FROM gps_positions WHERE id = ?`, previous.Int64); err != nil {
				return fmt.Errorf("failed to delete detached location: %w", err)
			}
		}
		return nil
	})
}

// SetThumbnail records the blob key of the target's image; "" clears it.
func (s *TargetStore) SetThumbnail(ctx context.Context, id int64, key string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE targets SET thumbnail = ?, updated_at = datetime('now') WHERE id = ?
	`, key, id)
	if err != nil {
		return fmt.Errorf("failed to set thumbnail: %w", err)
	}
	return requireRow(result, id)
}

// Delete removes the target and its location row.
func (s *TargetStore) Delete(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		locationID, err := currentLocationID(ctx, tx, id)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete target: %w", err)
		}
		if err := requireRow(result, id); err != nil {
			return err
		}

		if locationID.Valid {
			if _, err := tx.ExecContext(ctx, `DELETE FROM gps_positions WHERE id = ?`, locationID.Int64); err != nil {
				return fmt.Errorf("failed to delete location: %w", err)
			}
		}
		return nil
	})
}

func (s *TargetStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			slog.Error("failed to roll back transaction", "error", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertLocation(ctx context.Context, tx *sql.Tx, l *domain.Location) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO gps_positions (latitude, longitude) VALUES (?, ?)
	`, l.Latitude, l.Longitude)
	if err != nil {
		return 0, fmt.Errorf("failed to create location: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

func currentLocationID(ctx context.Context, tx *sql.Tx, targetID int64) (sql.NullInt64, error) {
	var id sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT location_id FROM targets WHERE id = ?`, targetID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return id, fmt.Errorf("target %d: %w", targetID, domain.ErrNotFound)
	}
	if err != nil {
		return id, fmt.Errorf("failed to get target location: %w", err)
	}
	return id, nil
}

func requireRow(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("target %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

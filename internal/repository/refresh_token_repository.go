package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/pkg/database"
)

// ErrRefreshRecordNotFound is returned by Rotate when no record matches the presented token and owner.
var ErrRefreshRecordNotFound = errors.New("refresh record not found")

// RefreshTokenRepository persists refresh records in PostgreSQL.
type RefreshTokenRepository struct {
	db *sqlx.DB
}

// NewRefreshTokenRepository creates a PostgreSQL backed refresh store.
func NewRefreshTokenRepository(db *sqlx.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const insertRefreshQuery = `INSERT INTO refresh_tokens (id, token, user_id, created_at) VALUES (:id, :token, :user_id, :created_at)`

// Insert creates a new refresh record.
func (r *RefreshTokenRepository) Insert(ctx context.Context, record *models.RefreshRecord) error {
	prepareRecord(record)
	if _, err := r.db.NamedExecContext(ctx, insertRefreshQuery, record); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// ReplaceForOwner drops every record of the owner and stores newToken as its only record.
func (r *RefreshTokenRepository) ReplaceForOwner(ctx context.Context, ownerID, newToken string) error {
	record := &models.RefreshRecord{Token: newToken, UserID: ownerID}
	prepareRecord(record)

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, ownerID); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, insertRefreshQuery, record)
		return err
	})
	if err != nil {
		return fmt.Errorf("replace refresh tokens: %w", err)
	}
	return nil
}

// Rotate swaps oldToken for newToken only when the record still holds oldToken for ownerID.
// Repeating a rotation that already committed succeeds.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldToken, newToken, ownerID string) error {
	const query = `UPDATE refresh_tokens SET token = $1 WHERE token = $2 AND user_id = $3`
	res, err := r.db.ExecContext(ctx, query, newToken, oldToken, ownerID)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if affected > 0 {
		return nil
	}

	const existsQuery = `SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE token = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, existsQuery, newToken, ownerID); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if !exists {
		return ErrRefreshRecordNotFound
	}
	return nil
}

// FindByTokenAndOwner returns the matching record or nil when there is none.
func (r *RefreshTokenRepository) FindByTokenAndOwner(ctx context.Context, token, ownerID string) (*models.RefreshRecord, error) {
	const query = `SELECT id, token, user_id, created_at FROM refresh_tokens WHERE token = $1 AND user_id = $2 LIMIT 1`
	var record models.RefreshRecord
	if err := r.db.GetContext(ctx, &record, query, token, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &record, nil
}

// Delete removes the record holding token. Missing tokens are ignored.
func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteByOwner removes every record of the owner.
func (r *RefreshTokenRepository) DeleteByOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, ownerID); err != nil {
		return fmt.Errorf("delete owner refresh tokens: %w", err)
	}
	return nil
}

func prepareRecord(record *models.RefreshRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}

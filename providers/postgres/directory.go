// Package postgres provides a sqlx-backed UserDirectory over a users table.
package postgres

import (
	"context"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/goReset"
)

// Directory implements [goReset.UserDirectory] against Postgres.
type Directory struct {
	db *sqlx.DB
}

// NewDirectory creates a [Directory] on an open connection pool.
func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

// Connect opens a pgx-backed pool for dsn.
func Connect(dsn string) (*sqlx.DB, error) {
	return sqlx.Connect("pgx", dsn)
}

type userRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}

// GetUserByEmail describes the getuserbyemail operation and its observable behavior.
//
// GetUserByEmail may return an error when input validation, dependency calls, or security checks fail.
// GetUserByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Directory) GetUserByEmail(ctx context.Context, email string) (goReset.UserRecord, error) {
	const query = `
        SELECT id, email, password_hash
        FROM users
        WHERE lower(email) = $1
        LIMIT 1
    `

	var row userRow
	if err := d.db.GetContext(ctx, &row, query, email); err != nil {
		return goReset.UserRecord{}, err
	}

	return goReset.UserRecord{
		UserID:       row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
	}, nil
}

// UpdatePasswordHash describes the updatepasswordhash operation and its observable behavior.
//
// UpdatePasswordHash may return an error when input validation, dependency calls, or security checks fail.
// UpdatePasswordHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Directory) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	const query = `
        UPDATE users
        SET password_hash = $2, updated_at = NOW()
        WHERE id = $1
    `

	result, err := d.db.ExecContext(ctx, query, userID, newHash)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("user not found")
	}

	return nil
}

package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// pgxPool is the subset of *pgxpool.Pool the repository needs.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserRepository is the PostgreSQL UserStore.
type UserRepository struct {
	db  pgxPool
	now func() time.Time
}

func NewUserRepository(db pgxPool) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

const userColumns = `id, email, password_hash, verified,
	verify_otp_hash, verify_otp_expires_at,
	reset_otp_hash, reset_otp_expires_at,
	created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, u *User) (*User, error) {
	email := NormalizeEmail(u.Email)
	query := `
		INSERT INTO users (id, email, password_hash, verified)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query, uuid.NewString(), email, u.PasswordHash, u.Verified)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fail("store.create", ErrEmailTaken, "email", email)
		}
		return nil, storeError("store.create", err)
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fail("store.get", ErrUserNotFound, "user_id", id)
	}
	if err != nil {
		return nil, storeError("store.get", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fail("store.get", ErrUserNotFound, "email", email)
	}
	if err != nil {
		return nil, storeError("store.get", err)
	}
	return u, nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// result back in the same transaction.
func (r *UserRepository) Update(ctx context.Context, id string, fn func(*User) error) (*User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, storeError("store.update", err)
	}

	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	u, err := scanUser(row)
	if err != nil {
		_ = tx.Rollback(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fail("store.update", ErrUserNotFound, "user_id", id)
		}
		return nil, storeError("store.update", err)
	}

	cur := u.Clone()
	if err := fn(u); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	u.ID, u.Email, u.CreatedAt = cur.ID, cur.Email, cur.CreatedAt
	u.UpdatedAt = r.now().UTC()

	verifyHash, verifyExp := pendingColumns(u.VerifyOTP)
	resetHash, resetExp := pendingColumns(u.ResetOTP)
	_, err = tx.Exec(ctx, `
		UPDATE users SET
			password_hash = $2,
			verified = $3,
			verify_otp_hash = $4,
			verify_otp_expires_at = $5,
			reset_otp_hash = $6,
			reset_otp_expires_at = $7,
			updated_at = $8
		WHERE id = $1`,
		u.ID, u.PasswordHash, u.Verified, verifyHash, verifyExp, resetHash, resetExp, u.UpdatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, storeError("store.update", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("store.update", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                     User
		verifyHash, resetHash sql.NullString
		verifyExp, resetExp   sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Verified,
		&verifyHash,
		&verifyExp,
		&resetHash,
		&resetExp,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.VerifyOTP = pendingFromColumns(verifyHash, verifyExp)
	u.ResetOTP = pendingFromColumns(resetHash, resetExp)
	return &u, nil
}

// A pending code exists only when both columns are set.
func pendingFromColumns(hash sql.NullString, exp sql.NullTime) *PendingCode {
	if !hash.Valid || hash.String == "" || !exp.Valid {
		return nil
	}
	return &PendingCode{Hash: hash.String, ExpiresAt: exp.Time.UTC()}
}

// pendingColumns maps an optional code to its column values; nil means NULL.
func pendingColumns(pc *PendingCode) (hash, expiresAt any) {
	if pc == nil {
		return nil, nil
	}
	return pc.Hash, pc.ExpiresAt
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func storeError(op string, err error) error {
	return oops.Code(CodeStoreFailed).With("operation", op).Wrap(err)
}

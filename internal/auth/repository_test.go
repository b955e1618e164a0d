package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{
	"id", "email", "password_hash", "verified",
	"verify_otp_hash", "verify_otp_expires_at",
	"reset_otp_hash", "reset_otp_expires_at",
	"created_at", "updated_at",
}

func userRow(created time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(userRowColumns).
		AddRow("id-1", "a@example.com", "hash", false, nil, nil, nil, nil, created, created)
}

func TestUserRepository_Create(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "inserts normalized email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), "a@example.com", "hash", false).
					WillReturnRows(userRow(created))
			},
		},
		{
			name: "unique violation is email taken",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), "a@example.com", "hash", false).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()
			tt.setupMock(mock)

			repo := NewUserRepository(mock)
			u, err := repo.Create(context.Background(), &User{Email: " A@Example.com", PasswordHash: "hash"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "id-1", u.ID)
				assert.Nil(t, u.VerifyOTP)
				assert.Nil(t, u.ResetOTP)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(10 * time.Minute)

	t.Run("scans pending codes", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM users WHERE id = \$1`).
			WithArgs("id-1").
			WillReturnRows(pgxmock.NewRows(userRowColumns).
				AddRow("id-1", "a@example.com", "hash", true, "abc", expires, nil, nil, created, created))

		u, err := NewUserRepository(mock).GetByID(context.Background(), "id-1")
		require.NoError(t, err)
		assert.True(t, u.Verified)
		require.NotNil(t, u.VerifyOTP)
		assert.Equal(t, "abc", u.VerifyOTP.Hash)
		assert.Equal(t, expires, u.VerifyOTP.ExpiresAt)
		assert.Nil(t, u.ResetOTP)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM users WHERE id = \$1`).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err = NewUserRepository(mock).GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM users WHERE email = \$1`).
			WithArgs("a@example.com").
			WillReturnError(errors.New("connection refused"))

		_, err = NewUserRepository(mock).GetByEmail(context.Background(), "A@example.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assertErrorCode(t, err, CodeStoreFailed)
		assert.False(t, IsCallerFacing(err))
	})
}

func TestUserRepository_Update(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(10 * time.Minute)

	tests := []struct {
		name      string
		fn        func(*User) error
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name: "writes mutated record",
			fn: func(u *User) error {
				u.Verified = true
				u.ResetOTP = &PendingCode{Hash: "def", ExpiresAt: expires}
				return nil
			},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
					WithArgs("id-1").
					WillReturnRows(userRow(created))
				mock.ExpectExec(`UPDATE users SET`).
					WithArgs("id-1", "hash", true, nil, nil, "def", expires, pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "callback error rolls back",
			fn: func(*User) error {
				return ErrCodeMismatch
			},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
					WithArgs("id-1").
					WillReturnRows(userRow(created))
				mock.ExpectRollback()
			},
			wantErr: ErrCodeMismatch,
		},
		{
			name: "missing row",
			fn:   func(*User) error { return nil },
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
					WithArgs("id-1").
					WillReturnError(pgx.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: ErrUserNotFound,
		},
		{
			name: "write failure rolls back",
			fn:   func(*User) error { return nil },
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
					WithArgs("id-1").
					WillReturnRows(userRow(created))
				mock.ExpectExec(`UPDATE users SET`).
					WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			wantCode: CodeStoreFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setupMock(mock)

			u, err := NewUserRepository(mock).Update(context.Background(), "id-1", tt.fn)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantCode != "":
				assertErrorCode(t, err, tt.wantCode)
			default:
				require.NoError(t, err)
				assert.True(t, u.Verified)
				assert.Equal(t, "id-1", u.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

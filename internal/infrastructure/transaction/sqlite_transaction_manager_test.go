package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteTransactionManager_InTransaction(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		expect  func(mock sqlmock.Sqlmock)
		fn      func(ctx context.Context) error
		wantErr string
		wantIs  error
	}{
		{
			name: "commit on success",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			fn: func(ctx context.Context) error {
				tx, ok := GetTxFromContext(ctx)
				if !ok {
					return errors.New("no tx in context")
				}
				_, err := tx.ExecContext(ctx, "UPDATE applications SET version = 1")
				return err
			},
		},
		{
			name: "rollback on error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			fn:     func(ctx context.Context) error { return boom },
			wantIs: boom,
		},
		{
			name: "rollback failure keeps original error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback().WillReturnError(errors.New("disk I/O error"))
			},
			fn:      func(ctx context.Context) error { return boom },
			wantErr: "rollback failed",
			wantIs:  boom,
		},
		{
			name: "commit failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit().WillReturnError(errors.New("database is locked"))
			},
			fn:      func(ctx context.Context) error { return nil },
			wantErr: "commit failed",
		},
		{
			name: "begin failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
			},
			fn:      func(ctx context.Context) error { return nil },
			wantErr: "begin transaction failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.expect(mock)
			m := NewSQLiteTransactionManager(db, zap.NewNop())

			err = m.InTransaction(context.Background(), tt.fn)
			if tt.wantErr == "" && tt.wantIs == nil {
				assert.NoError(t, err)
			}
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLiteTransactionManager_NestedJoinsOuter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	m := NewSQLiteTransactionManager(db, nil)
	err = m.InTransaction(context.Background(), func(outer context.Context) error {
		outerTx, _ := GetTxFromContext(outer)
		return m.InTransaction(outer, func(inner context.Context) error {
			innerTx, ok := GetTxFromContext(inner)
			require.True(t, ok)
			assert.Same(t, outerTx, innerTx)
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPassthroughTransactionManager(t *testing.T) {
	m := NewPassthroughTransactionManager()
	ctx := context.Background()

	called := false
	require.NoError(t, m.InTransaction(ctx, func(txCtx context.Context) error {
		called = true
		_, ok := GetTxFromContext(txCtx)
		assert.False(t, ok)
		return nil
	}))
	assert.True(t, called)

	boom := errors.New("boom")
	assert.ErrorIs(t, m.InTransaction(ctx, func(context.Context) error { return boom }), boom)
}

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

func TestTxManager_CommitsOnSuccess(t *testing.T) {
	db, mock := newMock(t)
	txm := NewTxManager(db)
	seats := NewSeatRepo(db)
	shows := NewShowRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE seats SET status = 'locked'")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE shows")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := txm.WithTx(context.Background(), func(ctx context.Context) error {
		ok, err := seats.LockIfAvailable(ctx, 1, "A1", "H1", now, expiry)
		if err != nil || !ok {
			return errors.New("lock failed")
		}
		return shows.Adjust(ctx, 1, model.DeltaLock)
	})
	require.NoError(t, err)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	txm := NewTxManager(db)
	seats := NewSeatRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE seats")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := txm.WithTx(context.Background(), func(ctx context.Context) error {
		if _, err := seats.LockIfAvailable(ctx, 1, "A1", "H1", now, expiry); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTxManager_NestedCallsShareTransaction(t *testing.T) {
	db, mock := newMock(t)
	txm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := txm.WithTx(context.Background(), func(outer context.Context) error {
		return txm.WithTx(outer, func(inner context.Context) error {
			assert.Same(t, txFromContext(outer), txFromContext(inner))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestTxManager_BeginError(t *testing.T) {
	db, mock := newMock(t)
	txm := NewTxManager(db)

	mock.ExpectBegin().WillReturnError(errDriver)

	called := false
	err := txm.WithTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, errDriver)
	assert.False(t, called)
}

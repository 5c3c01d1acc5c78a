package services

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/repositories/postgresrepo"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumns = []string{"id", "treasury_id", "account", "name", "target", "created_at"}

func newAccountService(t *testing.T) (*AccountService, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	treasuries := &fakeTreasuries{byID: map[int64]models.Treasury{testTreasuryID: paygTreasury()}}
	repo := postgresrepo.NewAccountRepo(sqlx.NewDb(mockDB, "postgres"))
	return NewAccountService(repo, treasuries, testLogger()), mock
}

func TestJoinAssignsNextStructuredID(t *testing.T) {
	svc, mock := newAccountService(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM treasury_account WHERE treasury_id = $1 AND account = $2`)).
		WithArgs(testTreasuryID, "0xnew").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(testTreasuryID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM treasury_account WHERE treasury_id = $1 ORDER BY id DESC LIMIT 1`)).
		WithArgs(testTreasuryID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("000000000101"))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO treasury_account`)).
		WithArgs("000000000202", testTreasuryID, "0xnew", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("000000000202", testTreasuryID, "0xnew", nil, nil, now))
	mock.ExpectCommit()

	account, created, err := svc.Join(context.Background(), testTreasuryID, JoinRequest{Account: "0xnew"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "000000000202", account.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinFirstAccount(t *testing.T) {
	svc, mock := newAccountService(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM treasury_account WHERE treasury_id = $1 AND account = $2`)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY id DESC LIMIT 1`)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO treasury_account`)).
		WithArgs("000000000101", testTreasuryID, "0xfirst", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("000000000101", testTreasuryID, "0xfirst", nil, nil, now))
	mock.ExpectCommit()

	account, created, err := svc.Join(context.Background(), testTreasuryID, JoinRequest{Account: "0xfirst"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "000000000101", account.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinExistingAddress(t *testing.T) {
	svc, mock := newAccountService(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM treasury_account WHERE treasury_id = $1 AND account = $2`)).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("000000000101", testTreasuryID, "0xabc", nil, nil, now))

	account, created, err := svc.Join(context.Background(), testTreasuryID, JoinRequest{Account: "0xabc"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "000000000101", account.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinRollsBackOnInsertFailure(t *testing.T) {
	svc, mock := newAccountService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM treasury_account WHERE treasury_id = $1 AND account = $2`)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY id DESC LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("000000000101"))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO treasury_account`)).
		WillReturnError(errStoreDown)
	mock.ExpectRollback()

	_, _, err := svc.Join(context.Background(), testTreasuryID, JoinRequest{Account: "0xnew"})
	require.ErrorIs(t, err, errStoreDown)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinUnknownTreasury(t *testing.T) {
	svc, mock := newAccountService(t)

	_, _, err := svc.Join(context.Background(), 404, JoinRequest{Account: "0xnew"})
	require.ErrorIs(t, err, postgresrepo.ErrTreasuryNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

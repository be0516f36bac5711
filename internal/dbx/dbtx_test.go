package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// openVersions opens a private in-memory sqlite database with a small
// version table.
func openVersions(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE versions (owner TEXT, name TEXT, version INTEGER, PRIMARY KEY (owner, name, version))`)
	require.NoError(t, err)
	return db
}

func versions(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM versions`).Scan(&n))
	return n
}

func appendVersion(ctx context.Context, tx DBTX, version int) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO versions (owner, name, version) VALUES ('alice', 'notes.txt', ?)`, version)
	return err
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		db := openVersions(t)
		err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			if err := appendVersion(ctx, tx, 1); err != nil {
				return err
			}
			return appendVersion(ctx, tx, 2)
		})
		require.NoError(t, err)
		assert.Equal(t, 2, versions(t, db))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := openVersions(t)
		boom := errors.New("boom")
		err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, appendVersion(ctx, tx, 1))
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, versions(t, db))
	})

	t.Run("rolls back a constraint failure", func(t *testing.T) {
		db := openVersions(t)
		err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, appendVersion(ctx, tx, 1))
			return appendVersion(ctx, tx, 1)
		})
		require.Error(t, err)
		assert.Equal(t, 0, versions(t, db))
	})

	t.Run("begin fails on a closed db", func(t *testing.T) {
		db := openVersions(t)
		require.NoError(t, db.Close())
		err := WithTx(ctx, db, nil, func(context.Context, DBTX) error { return nil })
		require.ErrorContains(t, err, "begin tx")
	})
}

func TestWithTx_PanicRollsBack(t *testing.T) {
	db := openVersions(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, appendVersion(ctx, tx, 1))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, versions(t, db))
}

func TestAdvisoryXactLock(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	q := `SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`

	mock.ExpectExec(q).WithArgs("owner/name").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, AdvisoryXactLock(context.Background(), db, "owner/name"))

	mock.ExpectExec(q).WithArgs("k").WillReturnError(errors.New("db down"))
	err = AdvisoryXactLock(context.Background(), db, "k")
	require.ErrorContains(t, err, `advisory lock "k"`)

	require.NoError(t, mock.ExpectationsWereMet())
}

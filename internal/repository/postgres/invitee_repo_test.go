package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestInviteeRepository_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("adds missing and removes extra members", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		// Current set {a, b}; requested {b, c}: delete a, insert c.
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT member_id FROM rehearsal_invitees .+ FOR UPDATE`).
			WithArgs("reh-1").
			WillReturnRows(sqlmock.NewRows([]string{"member_id"}).AddRow("a").AddRow("b"))
		mock.ExpectExec(`DELETE FROM rehearsal_invitees`).
			WithArgs("reh-1", pq.Array([]string{"b", "c"})).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO rehearsal_invitees`).
			WithArgs("reh-1", "c").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewInviteeRepository(db)
		final, err := repo.Sync(ctx, "reh-1", []string{"c", "b"})
		require.NoError(t, err)
		require.Equal(t, []string{"b", "c"}, final)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty request clears the set", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT member_id FROM rehearsal_invitees .+ FOR UPDATE`).
			WithArgs("reh-1").
			WillReturnRows(sqlmock.NewRows([]string{"member_id"}).AddRow("a"))
		mock.ExpectExec(`DELETE FROM rehearsal_invitees WHERE rehearsal_id = \$1`).
			WithArgs("reh-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewInviteeRepository(db)
		final, err := repo.Sync(ctx, "reh-1", nil)
		require.NoError(t, err)
		require.Empty(t, final)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("identical set issues no inserts", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT member_id FROM rehearsal_invitees .+ FOR UPDATE`).
			WithArgs("reh-1").
			WillReturnRows(sqlmock.NewRows([]string{"member_id"}).AddRow("a").AddRow("b"))
		mock.ExpectExec(`DELETE FROM rehearsal_invitees`).
			WithArgs("reh-1", pq.Array([]string{"a", "b"})).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		repo := NewInviteeRepository(db)
		// Duplicates and blanks in the request are dropped before the sync.
		final, err := repo.Sync(ctx, "reh-1", []string{"b", "a", "a", ""})
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, final)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInviteeRepository_ListByRehearsalID(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT member_id FROM rehearsal_invitees`).
		WithArgs("reh-1").
		WillReturnRows(sqlmock.NewRows([]string{"member_id"}).AddRow("a").AddRow("b"))

	repo := NewInviteeRepository(db)
	ids, err := repo.ListByRehearsalID(ctx, "reh-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

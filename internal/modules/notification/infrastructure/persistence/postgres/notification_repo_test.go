package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/persistence/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "receiver_id", "title", "body", "level", "created_at"}

var t0 = time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC)

func TestPgNotificationRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := postgres.NewPgNotificationRepository(db)
	ctx := context.Background()
	n := &domain.Notification{
		ID:         "01JM0000000000000000000001",
		ReceiverID: uuid.New(),
		Title:      "New follower",
		Body:       "jun started following you.",
		Level:      domain.LevelInfo,
		CreatedAt:  t0,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO notifications`).
			WithArgs(n.ID, n.ReceiverID, n.Title, n.Body, n.Level, n.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.Create(ctx, n))
	})

	t.Run("receiver missing", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO notifications`).
			WillReturnError(&pq.Error{Code: "23503"})
		err := repo.Create(ctx, n)
		require.ErrorIs(t, err, domain.ErrReceiverNotFound)
		assert.NotErrorIs(t, err, domain.ErrStorage)
	})

	t.Run("other failure", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO notifications`).
			WillReturnError(errors.New("connection reset"))
		err := repo.Create(ctx, n)
		require.ErrorIs(t, err, domain.ErrStorage)
		assert.ErrorContains(t, err, "connection reset")
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgNotificationRepository_Delete(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := postgres.NewPgNotificationRepository(db)
	ctx := context.Background()
	receiver := uuid.New()

	mock.ExpectExec(`DELETE FROM notifications\s+WHERE id = \$1 AND receiver_id = \$2`).
		WithArgs("01JM0000000000000000000001", receiver).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, "01JM0000000000000000000001", receiver))

	// a second delete of the same row touches nothing and still succeeds
	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs("01JM0000000000000000000001", receiver).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.Delete(ctx, "01JM0000000000000000000001", receiver))

	mock.ExpectExec(`DELETE FROM notifications`).
		WillReturnError(errors.New("exec fail"))
	require.ErrorIs(t, repo.Delete(ctx, "x", receiver), domain.ErrStorage)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgNotificationRepository_FindPage(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := postgres.NewPgNotificationRepository(db)
	ctx := context.Background()
	receiver := uuid.New()

	ts := func(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }
	row := func(rows *sqlmock.Rows, id string, at time.Time) *sqlmock.Rows {
		return rows.AddRow(id, receiver.String(), "t", "b", "INFO", at)
	}

	t.Run("first page asks for one extra row", func(t *testing.T) {
		rows := sqlmock.NewRows(columns)
		row(rows, "T5", ts(5))
		row(rows, "T4", ts(4))
		row(rows, "T3", ts(3))
		mock.ExpectQuery(`WHERE receiver_id = \$1\s+ORDER BY created_at DESC, id DESC\s+LIMIT \$2`).
			WithArgs(receiver, 3).
			WillReturnRows(rows)

		got, err := repo.FindPage(ctx, domain.PageRequest{ReceiverID: receiver, Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "T5", got[0].ID)
		assert.Equal(t, receiver, got[0].ReceiverID)
		assert.Equal(t, domain.LevelInfo, got[0].Level)

		page := domain.NewPage(got, 2, 5)
		assert.True(t, page.HasNext)
		assert.Equal(t, &domain.Cursor{CreatedAt: ts(4), ID: "T4"}, page.NextCursor)
	})

	t.Run("cursor continues strictly after the marker", func(t *testing.T) {
		rows := sqlmock.NewRows(columns)
		row(rows, "T3", ts(3))
		row(rows, "T2", ts(2))
		row(rows, "T1", ts(1))
		mock.ExpectQuery(`WHERE receiver_id = \$1 AND \(created_at, id\) < \(\$2, \$3\)\s+ORDER BY created_at DESC, id DESC\s+LIMIT \$4`).
			WithArgs(receiver, ts(4), "T4", 3).
			WillReturnRows(rows)

		got, err := repo.FindPage(ctx, domain.PageRequest{ReceiverID: receiver, Cursor: &domain.Cursor{CreatedAt: ts(4), ID: "T4"}, Limit: 2})
		require.NoError(t, err)
		page := domain.NewPage(got, 2, 5)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "T3", page.Items[0].ID)
		assert.Equal(t, "T2", page.Items[1].ID)
		assert.True(t, page.HasNext)
	})

	t.Run("empty page", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM notifications`).
			WithArgs(receiver, 21).
			WillReturnRows(sqlmock.NewRows(columns))

		got, err := repo.FindPage(ctx, domain.PageRequest{ReceiverID: receiver, Limit: 20})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM notifications`).
			WillReturnError(errors.New("query fail"))

		got, err := repo.FindPage(ctx, domain.PageRequest{ReceiverID: receiver, Limit: 20})
		require.ErrorIs(t, err, domain.ErrStorage)
		assert.Nil(t, got)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgNotificationRepository_ListAfter(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := postgres.NewPgNotificationRepository(db)
	ctx := context.Background()
	receiver := uuid.New()
	marker := domain.Cursor{CreatedAt: t0, ID: "M"}

	rows := sqlmock.NewRows(columns).
		AddRow("N1", receiver.String(), "t", "b", "INFO", t0).
		AddRow("N2", receiver.String(), "t", "b", "WARNING", t0.Add(time.Second))
	mock.ExpectQuery(`\(created_at, id\) > \(\$2, \$3\)\s+ORDER BY created_at ASC, id ASC\s+LIMIT \$4`).
		WithArgs(receiver, marker.CreatedAt, marker.ID, 100).
		WillReturnRows(rows)

	got, err := repo.ListAfter(ctx, receiver, marker, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "N1", got[0].ID)
	assert.Equal(t, domain.LevelWarning, got[1].Level)

	mock.ExpectQuery(`ORDER BY created_at ASC`).WillReturnError(errors.New("boom"))
	_, err = repo.ListAfter(ctx, receiver, marker, 100)
	require.ErrorIs(t, err, domain.ErrStorage)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgNotificationRepository_Count(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := postgres.NewPgNotificationRepository(db)
	ctx := context.Background()
	receiver := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE receiver_id = \$1`).
		WithArgs(receiver).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	count, err := repo.Count(ctx, receiver)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications`).
		WillReturnError(errors.New("count fail"))
	count, err = repo.Count(ctx, receiver)
	require.ErrorIs(t, err, domain.ErrStorage)
	assert.Equal(t, 0, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgNotificationRepository_PurgeOlderThan(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := postgres.NewPgNotificationRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM notifications WHERE created_at < \$1`).
		WithArgs(t0).
		WillReturnResult(sqlmock.NewResult(0, 7))
	n, err := repo.PurgeOlderThan(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	mock.ExpectExec(`DELETE FROM notifications`).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows fail")))
	_, err = repo.PurgeOlderThan(ctx, t0)
	require.ErrorIs(t, err, domain.ErrStorage)

	require.NoError(t, mock.ExpectationsWereMet())
}

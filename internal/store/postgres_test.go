package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDocumentStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresDocumentStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresDocumentStore(db)
}

func TestPostgresList_FiltersAndDecoding(t *testing.T) {
	db, mock, s := setupMockDocumentStore(t)
	defer db.Close()

	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "data"}).
		AddRow("u1", createdAt, createdAt, []byte(`{"role":"tenant","tenant_id":"t1","is_active":true}`))

	mock.ExpectQuery(`SELECT id, created_at, updated_at, data FROM documents`).
		WithArgs("users", "t1", "true").
		WillReturnRows(rows)

	docs, err := s.List(context.Background(), "users", []Filter{
		Equal("tenant_id", "t1"),
		Equal("is_active", true),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0].ID)
	assert.Equal(t, "tenant", docs[0].String("role"))
	assert.True(t, docs[0].Bool("is_active"))
	assert.True(t, createdAt.Equal(docs[0].CreatedAt))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList_ValueSetUsesIN(t *testing.T) {
	db, mock, s := setupMockDocumentStore(t)
	defer db.Close()

	mock.ExpectQuery(`IN \(\$2, \$3\)`).
		WithArgs("users", "free", "expired").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "data"}))

	_, err := s.List(context.Background(), "users", []Filter{
		Equal("payment_status", "free", "expired"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList_LimitAppended(t *testing.T) {
	db, mock, s := setupMockDocumentStore(t)
	defer db.Close()

	mock.ExpectQuery(`LIMIT 100`).
		WithArgs("products", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "data"}))

	_, err := s.List(context.Background(), "products", []Filter{
		Equal("tenant_id", "t1"),
		Limit(100),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_NotFound(t *testing.T) {
	db, mock, s := setupMockDocumentStore(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE documents`).
		WithArgs("products", "missing", `{"is_available":false}`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), "products", "missing", map[string]any{"is_available": false})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	db, mock, s := setupMockDocumentStore(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs("orders", "o1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(context.Background(), "orders", "o1"))

	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs("orders", "o1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Delete(context.Background(), "orders", "o1"), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate(t *testing.T) {
	db, mock, s := setupMockDocumentStore(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO documents`).
		WithArgs("users", "u1", `{"role":"tenant"}`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	doc, err := s.Create(context.Background(), "users", "u1", map[string]any{"role": "tenant"})
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.ID)
	assert.Equal(t, "tenant", doc.String("role"))

	require.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversation_records").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := newPostgresStoreWithDB(db)
	require.NoError(t, err)
	return s, mock
}

func TestPostgresStore_SaveRecord(t *testing.T) {
	s, mock := newMockPostgres(t)
	ts := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversation_records")).
		WithArgs("r1", "u1", RecordAgentResponse, "pharmacy", "Paracetamol is in stock", ts).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversation_records")).
		WithArgs("r2", "u1", RecordUserMessage, nil, "thanks", ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.SaveRecord(context.Background(), Record{
		ID: "r1", UserID: "u1", Type: RecordAgentResponse, Handler: "pharmacy", Content: "Paracetamol is in stock", Timestamp: ts,
	}))
	require.NoError(t, s.SaveRecord(context.Background(), Record{
		ID: "r2", UserID: "u1", Type: RecordUserMessage, Content: "thanks", Timestamp: ts,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRecordError(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec("INSERT INTO conversation_records").WillReturnError(errors.New("connection reset"))

	err := s.SaveRecord(context.Background(), Record{ID: "r1", UserID: "u1", Type: RecordUserMessage, Content: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresStore_ListRecords(t *testing.T) {
	s, mock := newMockPostgres(t)
	t1 := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	rows := sqlmock.NewRows([]string{"id", "user_id", "record_type", "handler", "content", "created_at"}).
		AddRow("r2", "u1", "agent_response", "scheduling", "Which city?", t2).
		AddRow("r1", "u1", "user_message", nil, "book appointment", t1)
	mock.ExpectQuery("SELECT id, user_id, record_type, handler, content, created_at FROM conversation_records").
		WithArgs("u1", 10).
		WillReturnRows(rows)

	got, err := s.ListRecords(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, "", got[0].Handler)
	assert.Equal(t, RecordUserMessage, got[0].Type)
	assert.Equal(t, "scheduling", got[1].Handler)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecordsWithoutLimit(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT id, user_id").
		WithArgs("u1", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "record_type", "handler", "content", "created_at"}))

	got, err := s.ListRecords(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PruneRecords(t *testing.T) {
	s, mock := newMockPostgres(t)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM conversation_records WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("DELETE FROM conversation_records").
		WillReturnError(errors.New("connection reset"))

	n, err := s.PruneRecords(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = s.PruneRecords(context.Background(), cutoff)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresStoreWithDB_MigrationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	_, err = newPostgresStoreWithDB(db)
	assert.Error(t, err)
}

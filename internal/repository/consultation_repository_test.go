package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
)

func newConsultationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func consultationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "advisor_id", "session_date", "start_time", "end_time",
		"venue_type", "description", "student_note", "advisor_note", "status",
		"created_at", "updated_at",
	})
}

func TestConsultationRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	rows := consultationRows().
		AddRow(int64(5), int64(1), int64(2), "2025-03-10", "09:00", "10:00",
			"ruang dosen", "Konsultasi proposal", nil, nil, "PENDING_REVIEW",
			time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM consultations WHERE id = $1 LIMIT 1")).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	c, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.ID)
	assert.Equal(t, models.StatusPendingReview, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryListByPartyAndDate(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	rows := consultationRows().
		AddRow(int64(5), int64(1), int64(2), "2025-03-10", "09:00", "10:00",
			"ruang dosen", "Konsultasi proposal", nil, nil, "PENDING_REVIEW",
			time.Now(), time.Now()).
		AddRow(int64(6), int64(3), int64(2), "2025-03-10", "10:00", "11:00",
			"online", "Revisi bab 1", nil, nil, "APPROVED",
			time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE session_date = $1 AND (student_id = $2 OR advisor_id = $3) ORDER BY start_time ASC")).
		WithArgs("2025-03-10", int64(1), int64(2)).
		WillReturnRows(rows)

	list, err := repo.ListByPartyAndDate(context.Background(), 1, 2, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryListByAdvisorAndDate(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	rows := consultationRows()
	for i := 0; i < 21; i++ {
		rows.AddRow(int64(i+1), int64(i+10), int64(2), "2025-03-10",
			time.Date(2025, 3, 10, 8, i*15, 0, 0, time.UTC).Format("15:04"),
			time.Date(2025, 3, 10, 8, i*15+15, 0, 0, time.UTC).Format("15:04"),
			"ruang dosen", "Bimbingan rutin", nil, nil, "APPROVED",
			time.Now(), time.Now())
	}
	// The query must end at the ORDER BY clause, never paginate the day.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE advisor_id = $1 AND session_date = $2 ORDER BY start_time ASC") + "$").
		WithArgs(int64(2), "2025-03-10").
		WillReturnRows(rows)

	list, err := repo.ListByAdvisorAndDate(context.Background(), 2, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, list, 21)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM consultations WHERE 1=1 AND advisor_id = $1 AND status = $2 ORDER BY session_date ASC, start_time ASC LIMIT 20 OFFSET 0")).
		WithArgs(int64(2), models.StatusPendingReview).
		WillReturnRows(consultationRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM consultations WHERE 1=1 AND advisor_id = $1 AND status = $2")).
		WithArgs(int64(2), models.StatusPendingReview).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.ConsultationFilter{AdvisorID: 2, Status: models.StatusPendingReview})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryCreateIfFree(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	c := &models.Consultation{
		StudentID: 1, AdvisorID: 2,
		SessionDate: "2025-03-10", StartTime: "09:00", EndTime: "10:00",
		VenueType: "ruang dosen", Description: "Konsultasi proposal",
		Status: models.StatusPendingReview,
	}

	mock.ExpectQuery("INSERT INTO consultations").
		WithArgs(int64(1), int64(2), "2025-03-10", "09:00", "10:00",
			"ruang dosen", "Konsultasi proposal", nil, models.StatusPendingReview,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	inserted, err := repo.CreateIfFree(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(42), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryCreateIfFreeSlotTaken(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	// The guarded insert selects zero rows when the overlap subquery matches.
	mock.ExpectQuery("INSERT INTO consultations").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inserted, err := repo.CreateIfFree(context.Background(), &models.Consultation{
		StudentID: 1, AdvisorID: 2,
		SessionDate: "2025-03-10", StartTime: "09:00", EndTime: "10:00",
		Status: models.StatusPendingReview,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryUpdateIfFree(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	c := &models.Consultation{
		ID: 5, StudentID: 1, AdvisorID: 2,
		SessionDate: "2025-03-10", StartTime: "13:00", EndTime: "14:00",
		VenueType: "online", Description: "Revisi",
	}

	mock.ExpectExec("UPDATE consultations SET").
		WithArgs(int64(5), int64(1), int64(2), "2025-03-10", "13:00", "14:00",
			"online", "Revisi", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	written, err := repo.UpdateIfFree(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryUpdateIfFreeGuardRejects(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	mock.ExpectExec("UPDATE consultations SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	written, err := repo.UpdateIfFree(context.Background(), &models.Consultation{ID: 5, StudentID: 1})
	require.NoError(t, err)
	assert.False(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryDecide(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND advisor_id = $2 AND status = 'PENDING_REVIEW'")).
		WithArgs(int64(5), int64(2), models.StatusApproved, "silakan datang", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	decided, err := repo.Decide(context.Background(), 5, 2, models.StatusApproved, "silakan datang")
	require.NoError(t, err)
	assert.True(t, decided)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryDecideAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND advisor_id = $2 AND status = 'PENDING_REVIEW'")).
		WithArgs(int64(5), int64(2), models.StatusRejected, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	decided, err := repo.Decide(context.Background(), 5, 2, models.StatusRejected, "")
	require.NoError(t, err)
	assert.False(t, decided)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationRepositoryDeleteIfPending(t *testing.T) {
	db, mock, cleanup := newConsultationRepoMock(t)
	defer cleanup()
	repo := NewConsultationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM consultations WHERE id = $1 AND student_id = $2 AND status = 'PENDING_REVIEW'")).
		WithArgs(int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := repo.DeleteIfPending(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

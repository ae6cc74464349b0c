package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
)

const consultationColumns = `id, student_id, advisor_id, session_date, start_time, end_time, venue_type, description, student_note, advisor_note, status, created_at, updated_at`

// ConsultationRepository provides persistence for consultation bookings.
//
// The overlap predicate used throughout is the half-open interval rule:
// existing.start < candidate.end AND existing.end > candidate.start, so
// back-to-back slots never collide. Create and amend re-apply the predicate
// inside a single statement, closing the check-then-act window left by the
// in-memory validation pass.
type ConsultationRepository struct {
	db *sqlx.DB
}

// NewConsultationRepository creates a new consultation repository.
func NewConsultationRepository(db *sqlx.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// FindByID loads a consultation by id.
func (r *ConsultationRepository) FindByID(ctx context.Context, id int64) (*models.Consultation, error) {
	query := fmt.Sprintf(`SELECT %s FROM consultations WHERE id = $1 LIMIT 1`, consultationColumns)
	var c models.Consultation
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find consultation by id: %w", err)
	}
	return &c, nil
}

// ListByPartyAndDate returns every consultation on the given date involving
// either the student or the advisor, ordered by start time. This is the data
// set the validator's clash check runs over.
func (r *ConsultationRepository) ListByPartyAndDate(ctx context.Context, studentID, advisorID int64, sessionDate string) ([]models.Consultation, error) {
	query := fmt.Sprintf(`SELECT %s FROM consultations WHERE session_date = $1 AND (student_id = $2 OR advisor_id = $3) ORDER BY start_time ASC`, consultationColumns)
	var list []models.Consultation
	if err := r.db.SelectContext(ctx, &list, query, sessionDate, studentID, advisorID); err != nil {
		return nil, fmt.Errorf("list consultations by party and date: %w", err)
	}
	return list, nil
}

// ListByAdvisorAndDate returns the advisor's full day of consultations with
// no pagination, ordered by start time. Backs the daily agenda, which must
// never truncate.
func (r *ConsultationRepository) ListByAdvisorAndDate(ctx context.Context, advisorID int64, sessionDate string) ([]models.Consultation, error) {
	query := fmt.Sprintf(`SELECT %s FROM consultations WHERE advisor_id = $1 AND session_date = $2 ORDER BY start_time ASC`, consultationColumns)
	var list []models.Consultation
	if err := r.db.SelectContext(ctx, &list, query, advisorID, sessionDate); err != nil {
		return nil, fmt.Errorf("list consultations by advisor and date: %w", err)
	}
	return list, nil
}

// List returns consultations with optional filtering and pagination.
func (r *ConsultationRepository) List(ctx context.Context, filter models.ConsultationFilter) ([]models.Consultation, int, error) {
	base := "FROM consultations WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != 0 {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.AdvisorID != 0 {
		conditions = append(conditions, fmt.Sprintf("advisor_id = $%d", len(args)+1))
		args = append(args, filter.AdvisorID)
	}
	if filter.SessionDate != "" {
		conditions = append(conditions, fmt.Sprintf("session_date = $%d", len(args)+1))
		args = append(args, filter.SessionDate)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY session_date %s, start_time %s LIMIT %d OFFSET %d", consultationColumns, base, order, order, size, offset)
	var list []models.Consultation
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list consultations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count consultations: %w", err)
	}

	return list, total, nil
}

// CreateIfFree inserts the booking only when no overlapping consultation
// exists for either party on the same date. The insert and the existence
// check execute as one statement, so two racing creations cannot both land.
// Returns false when the slot was taken.
func (r *ConsultationRepository) CreateIfFree(ctx context.Context, c *models.Consultation) (bool, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	const query = `
		INSERT INTO consultations (student_id, advisor_id, session_date, start_time, end_time, venue_type, description, student_note, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE NOT EXISTS (
			SELECT 1 FROM consultations
			WHERE session_date = $3
			  AND (student_id = $1 OR advisor_id = $2)
			  AND start_time < $5
			  AND end_time > $4
		)
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		c.StudentID, c.AdvisorID, c.SessionDate, c.StartTime, c.EndTime,
		c.VenueType, c.Description, c.StudentNote, c.Status, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create consultation: %w", err)
	}
	return true, nil
}

// UpdateIfFree rewrites the schedule fields of a pending booking owned by the
// student, guarded by the same overlap predicate (excluding the record
// itself). Returns false when the guard rejected the write, either because
// the slot clashed or because the row is no longer pending.
func (r *ConsultationRepository) UpdateIfFree(ctx context.Context, c *models.Consultation) (bool, error) {
	c.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE consultations SET
			advisor_id = $3, session_date = $4, start_time = $5, end_time = $6,
			venue_type = $7, description = $8, student_note = $9, updated_at = $10
		WHERE id = $1
		  AND student_id = $2
		  AND status = 'PENDING_REVIEW'
		  AND NOT EXISTS (
			SELECT 1 FROM consultations
			WHERE id <> $1
			  AND session_date = $4
			  AND (student_id = $2 OR advisor_id = $3)
			  AND start_time < $6
			  AND end_time > $5
		  )`
	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.StudentID, c.AdvisorID, c.SessionDate, c.StartTime, c.EndTime,
		c.VenueType, c.Description, c.StudentNote, c.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update consultation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update consultation rows affected: %w", err)
	}
	return affected > 0, nil
}

// Decide flips a pending booking to its terminal status. The update is keyed
// on (id, advisor_id, status=PENDING_REVIEW) so concurrent decisions cannot
// both succeed; the loser sees zero rows.
func (r *ConsultationRepository) Decide(ctx context.Context, id, advisorID int64, status models.ConsultationStatus, advisorNote string) (bool, error) {
	const query = `UPDATE consultations SET status = $3, advisor_note = $4, updated_at = $5 WHERE id = $1 AND advisor_id = $2 AND status = 'PENDING_REVIEW'`
	res, err := r.db.ExecContext(ctx, query, id, advisorID, status, advisorNote, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("decide consultation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decide consultation rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteIfPending removes a pending booking owned by the student. Returns
// false when nothing matched (already decided, gone, or not the owner).
func (r *ConsultationRepository) DeleteIfPending(ctx context.Context, id, studentID int64) (bool, error) {
	const query = `DELETE FROM consultations WHERE id = $1 AND student_id = $2 AND status = 'PENDING_REVIEW'`
	res, err := r.db.ExecContext(ctx, query, id, studentID)
	if err != nil {
		return false, fmt.Errorf("delete consultation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete consultation rows affected: %w", err)
	}
	return affected > 0, nil
}

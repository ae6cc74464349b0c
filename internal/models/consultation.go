package models

import (
	"time"
)

// ConsultationStatus is the lifecycle state of a booking. PENDING_REVIEW
// ("sedang verifikasi") is the only non-terminal state.
type ConsultationStatus string

const (
	StatusPendingReview ConsultationStatus = "PENDING_REVIEW"
	StatusApproved      ConsultationStatus = "APPROVED"
	StatusRejected      ConsultationStatus = "REJECTED"
)

// Decided reports whether the status is terminal.
func (s ConsultationStatus) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// Consultation is a jadwal bimbingan record: a time-slotted appointment
// between a student and their advisor on a single date. Times are zero-padded
// HH:MM strings forming the half-open interval [StartTime, EndTime), so
// lexical comparison is chronological comparison.
type Consultation struct {
	ID          int64              `db:"id" json:"id"`
	StudentID   int64              `db:"student_id" json:"student_id"`
	AdvisorID   int64              `db:"advisor_id" json:"advisor_id"`
	SessionDate string             `db:"session_date" json:"session_date"`
	StartTime   string             `db:"start_time" json:"start_time"`
	EndTime     string             `db:"end_time" json:"end_time"`
	VenueType   string             `db:"venue_type" json:"venue_type"`
	Description string             `db:"description" json:"description"`
	StudentNote *string            `db:"student_note" json:"student_note,omitempty"`
	AdvisorNote *string            `db:"advisor_note" json:"advisor_note,omitempty"`
	Status      ConsultationStatus `db:"status" json:"status"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// OverlapsWith reports whether two same-date bookings collide under the
// half-open interval rule: back-to-back slots do not overlap.
func (c Consultation) OverlapsWith(other Consultation) bool {
	if c.SessionDate != other.SessionDate {
		return false
	}
	return other.StartTime < c.EndTime && other.EndTime > c.StartTime
}

// ConsultationFilter describes query params for listing consultations.
type ConsultationFilter struct {
	StudentID   int64
	AdvisorID   int64
	SessionDate string
	Status      ConsultationStatus
	Page        int
	PageSize    int
	SortOrder   string
}

// BookingClash describes the existing consultation that blocks a candidate.
type BookingClash struct {
	ConsultationID int64  `json:"consultation_id"`
	StudentID      int64  `json:"student_id"`
	AdvisorID      int64  `json:"advisor_id"`
	SessionDate    string `json:"session_date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Party          string `json:"party"`
}

// BookingClashError is returned when a candidate collides with an existing
// consultation on either party's calendar.
type BookingClashError struct {
	Message string       `json:"message"`
	Clash   BookingClash `json:"clash"`
}

// Error implements the error interface for clash errors.
func (e *BookingClashError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// NormalizeSessionDate validates an ISO calendar date and returns its
// canonical YYYY-MM-DD form.
func NormalizeSessionDate(raw string) (string, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

// NormalizeClock validates a wall-clock value and returns its canonical
// zero-padded HH:MM form.
func NormalizeClock(raw string) (string, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return "", err
	}
	return t.Format("15:04"), nil
}

package service

import (
	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
)

// Party labels used in clash payloads.
const (
	clashPartyStudent = "mahasiswa"
	clashPartyAdvisor = "dosen"
)

// findClash runs the pure overlap check for a candidate booking against the
// existing same-date consultations of both parties. excludeID skips the
// record being amended so a booking never clashes with its own prior slot.
// Returns nil when the candidate is free.
func findClash(candidate models.Consultation, existing []models.Consultation, excludeID int64) *models.BookingClash {
	for _, item := range existing {
		if excludeID != 0 && item.ID == excludeID {
			continue
		}
		if !candidate.OverlapsWith(item) {
			continue
		}
		party := clashPartyAdvisor
		if item.StudentID == candidate.StudentID {
			party = clashPartyStudent
		}
		return &models.BookingClash{
			ConsultationID: item.ID,
			StudentID:      item.StudentID,
			AdvisorID:      item.AdvisorID,
			SessionDate:    item.SessionDate,
			StartTime:      item.StartTime,
			EndTime:        item.EndTime,
			Party:          party,
		}
	}
	return nil
}

// normalizeSlot canonicalises the date and time fields of a candidate,
// reporting malformed values. Ordering is checked separately so callers can
// distinguish incomplete input from an inverted range.
func normalizeSlot(date, start, end string) (string, string, string, error) {
	normDate, err := models.NormalizeSessionDate(date)
	if err != nil {
		return "", "", "", err
	}
	normStart, err := models.NormalizeClock(start)
	if err != nil {
		return "", "", "", err
	}
	normEnd, err := models.NormalizeClock(end)
	if err != nil {
		return "", "", "", err
	}
	return normDate, normStart, normEnd, nil
}

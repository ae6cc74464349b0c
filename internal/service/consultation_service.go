package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
	appErrors "github.com/bimbingan-kampus/konsultasi-api/pkg/errors"
)

type consultationRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Consultation, error)
	ListByPartyAndDate(ctx context.Context, studentID, advisorID int64, sessionDate string) ([]models.Consultation, error)
	List(ctx context.Context, filter models.ConsultationFilter) ([]models.Consultation, int, error)
	CreateIfFree(ctx context.Context, c *models.Consultation) (bool, error)
	UpdateIfFree(ctx context.Context, c *models.Consultation) (bool, error)
	Decide(ctx context.Context, id, advisorID int64, status models.ConsultationStatus, advisorNote string) (bool, error)
	DeleteIfPending(ctx context.Context, id, studentID int64) (bool, error)
}

type partyDirectory interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type activityRecorder interface {
	CreateActivityLog(ctx context.Context, log *models.ActivityLog) error
}

type agendaCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type bookingObserver interface {
	RecordBookingOutcome(outcome string)
}

const (
	bookingOutcomeCreated  = "created"
	bookingOutcomeConflict = "conflict"
	bookingOutcomeRejected = "rejected"
)

// BookConsultationRequest is the payload for creating a booking. The acting
// student is taken from the request identity, never from the body.
type BookConsultationRequest struct {
	AdvisorID   int64   `json:"advisor_id" validate:"required"`
	SessionDate string  `json:"session_date" validate:"required"`
	StartTime   string  `json:"start_time" validate:"required"`
	EndTime     string  `json:"end_time" validate:"required"`
	VenueType   string  `json:"venue_type" validate:"required"`
	Description string  `json:"description" validate:"required"`
	StudentNote *string `json:"student_note"`
}

// AmendConsultationRequest patches a pending booking. Only the listed fields
// are mutable; nil means "leave unchanged".
type AmendConsultationRequest struct {
	AdvisorID   *int64  `json:"advisor_id"`
	SessionDate *string `json:"session_date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	VenueType   *string `json:"venue_type"`
	Description *string `json:"description"`
	StudentNote *string `json:"student_note"`
}

// DecideConsultationRequest records the advisor's one-shot verdict.
type DecideConsultationRequest struct {
	Approve     *bool  `json:"approve" validate:"required"`
	AdvisorNote string `json:"advisor_note"`
}

// ConsultationService implements the booking validator and the
// PendingReview -> Approved|Rejected state machine. All operations take the
// acting user id explicitly; nothing is read from ambient state.
type ConsultationService struct {
	repo      consultationRepository
	directory partyDirectory
	activity  activityRecorder
	cache     agendaCache
	metrics   bookingObserver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConsultationService instantiates ConsultationService. The activity
// recorder, cache, and metrics observer may be nil.
func NewConsultationService(repo consultationRepository, directory partyDirectory, activity activityRecorder, cache agendaCache, metrics bookingObserver, validate *validator.Validate, logger *zap.Logger) *ConsultationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsultationService{repo: repo, directory: directory, activity: activity, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Book validates and persists a new booking for the acting student. Checks
// run in a fixed order so the first failure reported is deterministic:
// completeness, time ordering, roles, then conflicts. Every attempt is
// counted in the booking outcome metric.
func (s *ConsultationService) Book(ctx context.Context, actorID int64, req BookConsultationRequest) (*models.Consultation, error) {
	c, err := s.book(ctx, actorID, req)
	switch {
	case err == nil:
		s.recordBookingOutcome(bookingOutcomeCreated)
	case appErrors.FromError(err).Code == appErrors.ErrScheduleConflict.Code:
		s.recordBookingOutcome(bookingOutcomeConflict)
	case appErrors.FromError(err).Code == appErrors.ErrStorageUnavailable.Code:
		// Storage trouble is not a verdict on the booking itself.
	default:
		s.recordBookingOutcome(bookingOutcomeRejected)
	}
	return c, err
}

func (s *ConsultationService) book(ctx context.Context, actorID int64, req BookConsultationRequest) (*models.Consultation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIncompleteInput.Code, appErrors.ErrIncompleteInput.Status, "required booking fields missing")
	}

	sessionDate, startTime, endTime, err := normalizeSlot(req.SessionDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIncompleteInput.Code, appErrors.ErrIncompleteInput.Status, "malformed date or time")
	}

	if startTime >= endTime {
		return nil, appErrors.Clone(appErrors.ErrInvalidTimeRange, "")
	}

	owner, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if owner.Role != models.RoleMahasiswa {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a mahasiswa may book a consultation")
	}

	if err := s.checkAdvisor(ctx, req.AdvisorID); err != nil {
		return nil, err
	}

	candidate := models.Consultation{
		StudentID:   actorID,
		AdvisorID:   req.AdvisorID,
		SessionDate: sessionDate,
		StartTime:   startTime,
		EndTime:     endTime,
		VenueType:   req.VenueType,
		Description: req.Description,
		StudentNote: req.StudentNote,
		Status:      models.StatusPendingReview,
	}

	if err := s.checkConflicts(ctx, candidate, 0); err != nil {
		return nil, err
	}

	inserted, err := s.repo.CreateIfFree(ctx, &candidate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to store booking")
	}
	if !inserted {
		// A concurrent booking won the slot between the read and the insert.
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "time slot was just taken")
	}

	s.recordActivity(ctx, actorID, models.ActivityActionBook, candidate.ID, map[string]interface{}{
		"session_date": candidate.SessionDate,
		"start_time":   candidate.StartTime,
		"end_time":     candidate.EndTime,
		"advisor_id":   candidate.AdvisorID,
	})
	s.invalidateAgendas(ctx)

	return &candidate, nil
}

// Get loads a single booking visible to the acting user.
func (s *ConsultationService) Get(ctx context.Context, actorID int64, id int64) (*models.Consultation, error) {
	existing, err := s.loadConsultation(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.StudentID != actorID && existing.AdvisorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "consultation belongs to another pair")
	}
	return existing, nil
}

// List returns the acting user's consultations with pagination metadata.
// Students see bookings they own, advisors the ones assigned to them.
func (s *ConsultationService) List(ctx context.Context, actorID int64, actorRole models.UserRole, filter models.ConsultationFilter) ([]models.Consultation, *models.Pagination, error) {
	switch actorRole {
	case models.RoleMahasiswa:
		filter.StudentID = actorID
		filter.AdvisorID = 0
	case models.RoleDosen:
		filter.AdvisorID = actorID
		filter.StudentID = 0
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to list consultations")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return list, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Amend applies a partial update to a pending booking owned by the acting
// student, re-running the full validation against the patched values. The
// conflict check excludes the booking's own prior slot.
func (s *ConsultationService) Amend(ctx context.Context, actorID int64, id int64, req AmendConsultationRequest) (*models.Consultation, error) {
	existing, err := s.loadConsultation(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.StudentID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning mahasiswa may amend a booking")
	}
	if existing.Status.Decided() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyDecided, "")
	}

	updated := *existing
	if req.AdvisorID != nil {
		updated.AdvisorID = *req.AdvisorID
	}
	if req.SessionDate != nil {
		updated.SessionDate = *req.SessionDate
	}
	if req.StartTime != nil {
		updated.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		updated.EndTime = *req.EndTime
	}
	if req.VenueType != nil {
		updated.VenueType = *req.VenueType
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.StudentNote != nil {
		updated.StudentNote = req.StudentNote
	}

	if updated.AdvisorID == 0 || updated.VenueType == "" || updated.Description == "" {
		return nil, appErrors.Clone(appErrors.ErrIncompleteInput, "")
	}

	updated.SessionDate, updated.StartTime, updated.EndTime, err = normalizeSlot(updated.SessionDate, updated.StartTime, updated.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIncompleteInput.Code, appErrors.ErrIncompleteInput.Status, "malformed date or time")
	}

	if updated.StartTime >= updated.EndTime {
		return nil, appErrors.Clone(appErrors.ErrInvalidTimeRange, "")
	}

	if updated.AdvisorID != existing.AdvisorID {
		if err := s.checkAdvisor(ctx, updated.AdvisorID); err != nil {
			return nil, err
		}
	}

	if err := s.checkConflicts(ctx, updated, existing.ID); err != nil {
		return nil, err
	}

	written, err := s.repo.UpdateIfFree(ctx, &updated)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to update booking")
	}
	if !written {
		return nil, s.explainRejectedWrite(ctx, id, actorID, appErrors.Clone(appErrors.ErrScheduleConflict, "time slot was just taken"))
	}

	s.recordActivity(ctx, actorID, models.ActivityActionAmend, id, map[string]interface{}{
		"session_date": updated.SessionDate,
		"start_time":   updated.StartTime,
		"end_time":     updated.EndTime,
		"advisor_id":   updated.AdvisorID,
	})
	s.invalidateAgendas(ctx)

	return &updated, nil
}

// Decide records the assigned advisor's verdict exactly once. A repeated call
// fails with ALREADY_DECIDED and never overwrites the first decision.
func (s *ConsultationService) Decide(ctx context.Context, actorID int64, id int64, req DecideConsultationRequest) (*models.Consultation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	existing, err := s.loadConsultation(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.AdvisorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned dosen may decide this booking")
	}
	if existing.Status.Decided() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyDecided, "")
	}

	status := models.StatusRejected
	if *req.Approve {
		status = models.StatusApproved
	}

	decided, err := s.repo.Decide(ctx, id, actorID, status, req.AdvisorNote)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to store decision")
	}
	if !decided {
		// A concurrent decision landed first; the stored verdict stands.
		return nil, appErrors.Clone(appErrors.ErrAlreadyDecided, "")
	}

	existing.Status = status
	existing.AdvisorNote = &req.AdvisorNote

	s.recordActivity(ctx, actorID, models.ActivityActionDecide, id, map[string]interface{}{
		"status": status,
	})
	s.invalidateAgendas(ctx)

	return existing, nil
}

// Withdraw removes a pending booking owned by the acting student. Decided
// bookings cannot be withdrawn.
func (s *ConsultationService) Withdraw(ctx context.Context, actorID int64, id int64) error {
	existing, err := s.loadConsultation(ctx, id)
	if err != nil {
		return err
	}
	if existing.StudentID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owning mahasiswa may withdraw a booking")
	}
	if existing.Status.Decided() {
		return appErrors.Clone(appErrors.ErrAlreadyDecided, "")
	}

	removed, err := s.repo.DeleteIfPending(ctx, id, actorID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to withdraw booking")
	}
	if !removed {
		return s.explainRejectedWrite(ctx, id, actorID, appErrors.Clone(appErrors.ErrAlreadyDecided, ""))
	}

	s.recordActivity(ctx, actorID, models.ActivityActionWithdraw, id, nil)
	s.invalidateAgendas(ctx)

	return nil
}

func (s *ConsultationService) loadConsultation(ctx context.Context, id int64) (*models.Consultation, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "consultation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to load consultation")
	}
	return existing, nil
}

func (s *ConsultationService) lookupUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.directory.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to load user")
	}
	return user, nil
}

func (s *ConsultationService) checkAdvisor(ctx context.Context, advisorID int64) error {
	advisor, err := s.directory.FindByID(ctx, advisorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidAdvisor, "advisor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to load advisor")
	}
	if advisor.Role != models.RoleDosen {
		return appErrors.Clone(appErrors.ErrInvalidAdvisor, "advisor must be a dosen")
	}
	return nil
}

func (s *ConsultationService) checkConflicts(ctx context.Context, candidate models.Consultation, excludeID int64) error {
	existing, err := s.repo.ListByPartyAndDate(ctx, candidate.StudentID, candidate.AdvisorID, candidate.SessionDate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to check schedule conflicts")
	}
	if clash := findClash(candidate, existing, excludeID); clash != nil {
		domainErr := &models.BookingClashError{
			Message: fmt.Sprintf("overlaps consultation #%d (%s %s-%s)", clash.ConsultationID, clash.SessionDate, clash.StartTime, clash.EndTime),
			Clash:   *clash,
		}
		return appErrors.Wrap(domainErr, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, domainErr.Message)
	}
	return nil
}

// explainRejectedWrite re-reads a booking after a conditional write matched
// nothing, to report which precondition was lost to a concurrent actor.
// fallback covers the operation-specific reason when the record still looks
// writable (for amends, a raced slot; for withdrawals, a raced decision).
func (s *ConsultationService) explainRejectedWrite(ctx context.Context, id, actorID int64, fallback error) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "consultation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to reload consultation")
	}
	if current.Status.Decided() {
		return appErrors.Clone(appErrors.ErrAlreadyDecided, "")
	}
	if current.StudentID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return fallback
}

func (s *ConsultationService) recordActivity(ctx context.Context, actorID int64, action string, resourceID int64, detail map[string]interface{}) {
	if s.activity == nil {
		return
	}
	var payload []byte
	if detail != nil {
		payload, _ = json.Marshal(detail)
	}
	log := &models.ActivityLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "consultation",
		ResourceID: &resourceID,
		Detail:     payload,
	}
	if err := s.activity.CreateActivityLog(ctx, log); err != nil {
		s.logger.Warn("failed to record consultation activity", zap.Error(err))
	}
}

func (s *ConsultationService) recordBookingOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordBookingOutcome(outcome)
	}
}

func (s *ConsultationService) invalidateAgendas(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "agenda:*"); err != nil {
		s.logger.Warn("failed to invalidate agenda cache", zap.Error(err))
	}
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
	appErrors "github.com/bimbingan-kampus/konsultasi-api/pkg/errors"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/export"
)

type agendaRepository interface {
	ListByAdvisorAndDate(ctx context.Context, advisorID int64, sessionDate string) ([]models.Consultation, error)
}

type agendaDirectory interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type agendaStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AgendaEntry is a single row of an advisor's daily consultation agenda.
type AgendaEntry struct {
	ConsultationID int64                     `json:"consultation_id"`
	StartTime      string                    `json:"start_time"`
	EndTime        string                    `json:"end_time"`
	StudentName    string                    `json:"student_name"`
	VenueType      string                    `json:"venue_type"`
	Description    string                    `json:"description"`
	Status         models.ConsultationStatus `json:"status"`
}

// AgendaExport is a rendered agenda ready to be served as a download.
type AgendaExport struct {
	Data        []byte
	ContentType string
	Filename    string
}

// AgendaService builds the per-advisor daily agenda and renders it for
// download. Built agendas are cached under agenda:{advisorID}:{date}; write
// paths invalidate the agenda:* keyspace.
type AgendaService struct {
	repo      agendaRepository
	directory agendaDirectory
	cache     agendaStore
	metrics   cacheObserver
	logger    *zap.Logger
	ttl       time.Duration
	renderers map[string]export.Renderer
}

// NewAgendaService constructs an AgendaService with CSV and PDF renderers.
func NewAgendaService(repo agendaRepository, directory agendaDirectory, cache agendaStore, metrics cacheObserver, logger *zap.Logger, ttl time.Duration) *AgendaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &AgendaService{
		repo:      repo,
		directory: directory,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		ttl:       ttl,
		renderers: map[string]export.Renderer{
			"csv": export.NewCSVRenderer(),
			"pdf": export.NewPDFRenderer(),
		},
	}
}

// Agenda returns the advisor's consultations for one date ordered by start
// time.
func (s *AgendaService) Agenda(ctx context.Context, advisorID int64, date string) ([]AgendaEntry, error) {
	normalized, err := models.NormalizeSessionDate(date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrIncompleteInput, "date must be formatted YYYY-MM-DD")
	}

	key := fmt.Sprintf("agenda:%d:%s", advisorID, normalized)
	if s.cache != nil {
		var cached []AgendaEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.recordCache(true)
			return cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("agenda cache lookup failed", zap.Error(err))
		}
		s.recordCache(false)
	}

	consultations, err := s.repo.ListByAdvisorAndDate(ctx, advisorID, normalized)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to list agenda")
	}

	entries := make([]AgendaEntry, 0, len(consultations))
	for _, c := range consultations {
		entry := AgendaEntry{
			ConsultationID: c.ID,
			StartTime:      c.StartTime,
			EndTime:        c.EndTime,
			VenueType:      c.VenueType,
			Description:    c.Description,
			Status:         c.Status,
		}
		if student, err := s.directory.FindByID(ctx, c.StudentID); err == nil {
			entry.StudentName = student.FullName
		} else {
			s.logger.Warn("failed to resolve student for agenda", zap.Int64("student_id", c.StudentID), zap.Error(err))
			entry.StudentName = strconv.FormatInt(c.StudentID, 10)
		}
		entries = append(entries, entry)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries, s.ttl); err != nil {
			s.logger.Warn("failed to cache agenda", zap.Error(err))
		}
	}

	return entries, nil
}

// Export renders the advisor's agenda for the date in the requested format
// (csv or pdf).
func (s *AgendaService) Export(ctx context.Context, advisorID int64, date, format string) (*AgendaExport, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrIncompleteInput, fmt.Sprintf("unsupported export format %q", format))
	}

	entries, err := s.Agenda(ctx, advisorID, date)
	if err != nil {
		return nil, err
	}

	advisorName := strconv.FormatInt(advisorID, 10)
	if advisor, err := s.directory.FindByID(ctx, advisorID); err == nil {
		advisorName = advisor.FullName
	}

	table := export.Table{
		Title: fmt.Sprintf("Agenda Konsultasi %s - %s", advisorName, date),
		Columns: []export.Column{
			{Key: "start_time", Header: "Mulai"},
			{Key: "end_time", Header: "Selesai"},
			{Key: "student", Header: "Mahasiswa"},
			{Key: "venue", Header: "Tempat"},
			{Key: "description", Header: "Keperluan"},
			{Key: "status", Header: "Status"},
		},
	}
	for _, e := range entries {
		table.Rows = append(table.Rows, map[string]string{
			"start_time":  e.StartTime,
			"end_time":    e.EndTime,
			"student":     e.StudentName,
			"venue":       e.VenueType,
			"description": e.Description,
			"status":      string(e.Status),
		})
	}

	payload, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render agenda")
	}

	return &AgendaExport{
		Data:        payload,
		ContentType: renderer.ContentType(),
		Filename:    fmt.Sprintf("agenda-%d-%s.%s", advisorID, date, renderer.Extension()),
	}, nil
}

func (s *AgendaService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}

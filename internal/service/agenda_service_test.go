package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
	appErrors "github.com/bimbingan-kampus/konsultasi-api/pkg/errors"
)

type fakeCacheStore struct {
	entries map[string][]byte
	sets    int
	gets    int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string][]byte)}
}

func (f *fakeCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	f.gets++
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrCacheMiss, "")
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	f.sets++
	return nil
}

func agendaFixtureRepo() *fakeConsultationRepo {
	repo := newFakeConsultationRepo()
	note := "bawa draft bab 2"
	repo.consultations[1] = &models.Consultation{
		ID: 1, StudentID: studentID, AdvisorID: advisorID,
		SessionDate: "2025-03-10", StartTime: "09:00", EndTime: "10:00",
		VenueType: "ruang dosen", Description: "Konsultasi proposal",
		StudentNote: &note, Status: models.StatusApproved,
	}
	repo.consultations[2] = &models.Consultation{
		ID: 2, StudentID: 3, AdvisorID: advisorID,
		SessionDate: "2025-03-10", StartTime: "10:00", EndTime: "11:00",
		VenueType: "online", Description: "Revisi bab 1",
		Status: models.StatusPendingReview,
	}
	repo.nextID = 3
	return repo
}

func TestAgendaListsAdvisorDay(t *testing.T) {
	svc := NewAgendaService(agendaFixtureRepo(), campusDirectory(), nil, nil, zap.NewNop(), time.Minute)

	entries, err := svc.Agenda(context.Background(), advisorID, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	names := []string{entries[0].StudentName, entries[1].StudentName}
	assert.Contains(t, names, "Budi Santoso")
	assert.Contains(t, names, "Ani Lestari")
}

func TestAgendaReturnsFullDayWithoutTruncation(t *testing.T) {
	repo := newFakeConsultationRepo()
	for i := 0; i < 25; i++ {
		id := int64(i + 1)
		repo.consultations[id] = &models.Consultation{
			ID: id, StudentID: studentID, AdvisorID: advisorID,
			SessionDate: "2025-03-10",
			StartTime:   fmt.Sprintf("%02d:%02d", 8+i/4, (i%4)*15),
			EndTime:     fmt.Sprintf("%02d:%02d", 8+i/4, (i%4)*15+15),
			VenueType:   "ruang dosen", Description: "Bimbingan rutin",
			Status: models.StatusApproved,
		}
	}
	svc := NewAgendaService(repo, campusDirectory(), nil, nil, zap.NewNop(), time.Minute)

	entries, err := svc.Agenda(context.Background(), advisorID, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, entries, 25)
	assert.Equal(t, "08:00", entries[0].StartTime)
	assert.Equal(t, "14:00", entries[24].StartTime)
}

func TestAgendaRejectsMalformedDate(t *testing.T) {
	svc := NewAgendaService(agendaFixtureRepo(), campusDirectory(), nil, nil, zap.NewNop(), time.Minute)

	_, err := svc.Agenda(context.Background(), advisorID, "10/03/2025")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIncompleteInput.Code, appErrors.FromError(err).Code)
}

func TestAgendaServedFromCache(t *testing.T) {
	cache := newFakeCacheStore()
	repo := agendaFixtureRepo()
	svc := NewAgendaService(repo, campusDirectory(), cache, nil, zap.NewNop(), time.Minute)

	_, err := svc.Agenda(context.Background(), advisorID, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Mutate the store; the cached copy must still be served.
	delete(repo.consultations, 1)
	entries, err := svc.Agenda(context.Background(), advisorID, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExportAgendaCSV(t *testing.T) {
	svc := NewAgendaService(agendaFixtureRepo(), campusDirectory(), nil, nil, zap.NewNop(), time.Minute)

	result, err := svc.Export(context.Background(), advisorID, "2025-03-10", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "agenda-2-2025-03-10.csv", result.Filename)

	body := string(result.Data)
	assert.True(t, strings.Contains(body, "Budi Santoso"))
	assert.True(t, strings.Contains(body, "09:00"))
	assert.True(t, strings.Contains(body, "APPROVED"))
}

func TestExportAgendaPDF(t *testing.T) {
	svc := NewAgendaService(agendaFixtureRepo(), campusDirectory(), nil, nil, zap.NewNop(), time.Minute)

	result, err := svc.Export(context.Background(), advisorID, "2025-03-10", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
}

func TestExportAgendaUnknownFormat(t *testing.T) {
	svc := NewAgendaService(agendaFixtureRepo(), campusDirectory(), nil, nil, zap.NewNop(), time.Minute)

	_, err := svc.Export(context.Background(), advisorID, "2025-03-10", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIncompleteInput.Code, appErrors.FromError(err).Code)
}

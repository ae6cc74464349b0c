package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
	appErrors "github.com/bimbingan-kampus/konsultasi-api/pkg/errors"
)

type directoryRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type directoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cacheObserver interface {
	RecordCacheOperation(hit bool)
}

type advisorPage struct {
	Advisors   []models.UserInfo `json:"advisors"`
	Pagination models.Pagination `json:"pagination"`
}

// DirectoryService exposes the advisor directory students pick from when
// booking. Listings are cached since the directory changes rarely.
type DirectoryService struct {
	repo    directoryRepository
	cache   directoryCache
	metrics cacheObserver
	logger  *zap.Logger
	ttl     time.Duration
}

// NewDirectoryService constructs a DirectoryService. Cache and metrics are
// optional.
func NewDirectoryService(repo directoryRepository, cache directoryCache, metrics cacheObserver, logger *zap.Logger, ttl time.Duration) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DirectoryService{repo: repo, cache: cache, metrics: metrics, logger: logger, ttl: ttl}
}

// ListAdvisors returns the paginated dosen directory.
func (s *DirectoryService) ListAdvisors(ctx context.Context, filter models.UserFilter) ([]models.UserInfo, *models.Pagination, error) {
	role := models.RoleDosen
	filter.Role = &role
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	key := fmt.Sprintf("advisors:%d:%d:%s:%s:%s", filter.Page, filter.PageSize, filter.Search, filter.SortBy, filter.SortOrder)
	if s.cache != nil {
		var cached advisorPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.recordCache(true)
			pagination := cached.Pagination
			return cached.Advisors, &pagination, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("advisor cache lookup failed", zap.Error(err))
		}
		s.recordCache(false)
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to list advisors")
	}

	advisors := make([]models.UserInfo, 0, len(users))
	for _, u := range users {
		advisors = append(advisors, models.UserInfo{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role})
	}
	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, advisorPage{Advisors: advisors, Pagination: pagination}, s.ttl); err != nil {
			s.logger.Warn("failed to cache advisor page", zap.Error(err))
		}
	}

	return advisors, &pagination, nil
}

// GetUser returns public info for a single user.
func (s *DirectoryService) GetUser(ctx context.Context, id int64) (*models.UserInfo, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to load user")
	}
	return &models.UserInfo{ID: user.ID, Username: user.Username, FullName: user.FullName, Role: user.Role}, nil
}

func (s *DirectoryService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bimbingan-kampus/konsultasi-api/internal/models"
	appErrors "github.com/bimbingan-kampus/konsultasi-api/pkg/errors"
)

type mockAuthRepo struct {
	userByUsername    *models.User
	userByID          *models.User
	findByUsernameErr error
	findByIDErr       error
	createErr         error
	created           *models.User
	refreshTokens     map[string]*models.RefreshToken
	updatePasswordErr error
	revokedAll        bool
	activityLogs      []*models.ActivityLog
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.findByUsernameErr != nil {
		return nil, m.findByUsernameErr
	}
	if m.userByUsername == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByUsername, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByUsername != nil {
		return m.userByUsername, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = 1
	m.created = user
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByUsername != nil && m.userByUsername.ID == id {
		m.userByUsername.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	m.revokedAll = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateActivityLog(ctx context.Context, log *models.ActivityLog) error {
	m.activityLogs = append(m.activityLogs, log)
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "test",
	})
}

func TestAuthServiceRegisterDefaultsToMahasiswa(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newTestAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "budi",
		Password: "rahasia1",
		FullName: "Budi Santoso",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMahasiswa, info.Role)
	require.NotNil(t, repo.created)
	assert.NotEqual(t, "rahasia1", repo.created.PasswordHash)
}

func TestAuthServiceRegisterDuplicateUsername(t *testing.T) {
	repo := &mockAuthRepo{createErr: &pq.Error{Code: "23505"}}
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "budi",
		Password: "rahasia1",
		FullName: "Budi Santoso",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUsernameTaken.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("rahasia1"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByUsername: &models.User{ID: 7, Username: "budi", PasswordHash: string(hash), Role: models.RoleMahasiswa}}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "budi", Password: "rahasia1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(7), res.User.ID)
	assert.NotEmpty(t, repo.refreshTokens)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, models.RoleMahasiswa, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("rahasia1"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByUsername: &models.User{ID: 7, Username: "budi", PasswordHash: string(hash)}}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "budi", Password: "salah"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "tidakada", Password: "rahasia1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("rahasia1"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByUsername: &models.User{ID: 7, Username: "budi", PasswordHash: string(hash), Role: models.RoleMahasiswa}}
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "budi", Password: "rahasia1"})
	require.NoError(t, err)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	// The rotated-out token cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"stale": {ID: "rt1", UserID: 7, Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Minute)},
	}}
	svc := newTestAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("lama123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByUsername: &models.User{ID: 7, Username: "budi", PasswordHash: string(hash)}}
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), 7, models.ChangePasswordRequest{OldPassword: "lama123", NewPassword: "baru456"})
	require.NoError(t, err)
	assert.True(t, repo.revokedAll)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.userByUsername.PasswordHash), []byte("baru456")))
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("lama123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByUsername: &models.User{ID: 7, Username: "budi", PasswordHash: string(hash)}}
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), 7, models.ChangePasswordRequest{OldPassword: "salah", NewPassword: "baru456"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.revokedAll)
}

func TestAuthServiceValidateTokenBadSignature(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("rahasia1"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByUsername: &models.User{ID: 7, Username: "budi", PasswordHash: string(hash)}}
	issuer := newTestAuthService(repo)

	login, err := issuer.Login(context.Background(), models.LoginRequest{Username: "budi", Password: "rahasia1"})
	require.NoError(t, err)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different",
		AccessTokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

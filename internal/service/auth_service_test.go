package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypto-exchange-api/internal/core/domain"
	"crypto-exchange-api/internal/core/ports"
	"crypto-exchange-api/internal/core/ports/mocks"
	"crypto-exchange-api/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc      *AuthServiceImpl
	userRepo *mocks.MockUserRepository
	hashSvc  *mocks.MockHashService
	tokenSvc *mocks.MockTokenService
	ctrl     *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo: mocks.NewMockUserRepository(ctrl),
		hashSvc:  mocks.NewMockHashService(ctrl),
		tokenSvc: mocks.NewMockTokenService(ctrl),
		ctrl:     ctrl,
	}
	d.svc = NewAuthService(d.userRepo, d.hashSvc, d.tokenSvc)
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := ports.RegisterRequest{
		Username: "satoshi",
		Email:    "satoshi@example.com",
		Password: "SecureP@ss1",
	}

	d.userRepo.EXPECT().GetByUsername(ctx, "satoshi").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("SecureP@ss1").Return("$argon2id$hash", nil)
	d.userRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, user *domain.User) error {
			assert.Equal(t, "satoshi", user.Username)
			assert.Equal(t, "$argon2id$hash", user.PasswordHash)
			assert.NotEqual(t, uuid.Nil, user.ID)
			return nil
		})

	user, err := d.svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "satoshi", user.Username)
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	existing := &domain.User{ID: uuid.New(), Username: "satoshi"}
	d.userRepo.EXPECT().GetByUsername(ctx, "satoshi").Return(existing, nil)

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "satoshi", Password: "pw"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_002", appErr.Code)
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Username: "satoshi", PasswordHash: "$argon2id$hash"}
	expiry := time.Now().Add(24 * time.Hour)

	d.userRepo.EXPECT().GetByUsername(ctx, "satoshi").Return(user, nil)
	d.hashSvc.EXPECT().Verify("SecureP@ss1", "$argon2id$hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(user.ID, "satoshi").Return("jwt-token", expiry, nil)

	token, expiresAt, err := d.svc.Login(ctx, "satoshi", "SecureP@ss1")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, expiresAt)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "ghost").Return(nil, nil)

	_, _, err := d.svc.Login(ctx, "ghost", "whatever")

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_001", appErr.Code)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Username: "satoshi", PasswordHash: "$argon2id$hash"}

	d.userRepo.EXPECT().GetByUsername(ctx, "satoshi").Return(user, nil)
	d.hashSvc.EXPECT().Verify("wrong", "$argon2id$hash").Return(false, nil)

	_, _, err := d.svc.Login(ctx, "satoshi", "wrong")

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_001", appErr.Code)
}

func TestAuthService_Login_RepoError(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "satoshi").Return(nil, errors.New("db down"))

	_, _, err := d.svc.Login(ctx, "satoshi", "pw")
	assert.Error(t, err)
}

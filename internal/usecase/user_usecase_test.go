package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"pos/internal/config"
	"pos/internal/domain/model"
	repo "pos/internal/repository"
	"pos/internal/usecase"
	"pos/internal/validator"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var userCfg = config.Config{JWTSecret: "test-secret", TokenTTL: 12 * time.Hour}

func newUserUsecase(users *UserRepoMock) *usecase.UserUsecase {
	return usecase.NewUserUsecase(userCfg, users, validator.NewUserValidator(users), &seqIDGen{}, fixedClock{testNow})
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func cashierUser(t *testing.T) *model.User {
	return &model.User{
		ID:           "u-1",
		Username:     "jane",
		Name:         "Jane Doe",
		Contact:      "0917",
		PasswordHash: hashed(t, "password123"),
		Role:         model.RoleCashier,
		TokenVersion: 4,
		IsActive:     true,
	}
}

func TestUserUsecase_Login_Success(t *testing.T) {
	ctx := context.Background()
	users := new(UserRepoMock)
	uc := newUserUsecase(users)

	users.On("FindByUsername", mock.Anything, "jane").Return(cashierUser(t), nil)
	users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.LastLoginAt != nil && u.LastLoginAt.Equal(testNow)
	})).Return(nil)

	out, err := uc.Login(ctx, usecase.LoginInput{Username: " jane ", Password: "password123", Role: "Cashier"})
	require.NoError(t, err)

	assert.Equal(t, "u-1", out.ID)
	assert.Equal(t, "Jane Doe", out.Name)
	assert.Equal(t, "0917", out.Contact)
	assert.Equal(t, "cashier", out.Role)
	assert.Equal(t, int((12 * time.Hour).Seconds()), out.ExpiresIn)

	// sub / role / tv が入っている
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(out.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(userCfg.JWTSecret), nil
	}, jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims["sub"])
	assert.Equal(t, "cashier", claims["role"])
	assert.Equal(t, float64(4), claims["tv"])

	users.AssertExpectations(t)
}

func TestUserUsecase_Login_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields", func(t *testing.T) {
		uc := newUserUsecase(new(UserRepoMock))
		_, err := uc.Login(ctx, usecase.LoginInput{Username: "jane", Password: "x"})
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("unknown user", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByUsername", mock.Anything, "ghost").Return(nil, repo.ErrUserNotFound)

		_, err := newUserUsecase(users).Login(ctx, usecase.LoginInput{Username: "ghost", Password: "password123", Role: "cashier"})
		assertStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("wrong password", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByUsername", mock.Anything, "jane").Return(cashierUser(t), nil)

		_, err := newUserUsecase(users).Login(ctx, usecase.LoginInput{Username: "jane", Password: "nope-nope", Role: "cashier"})
		assertErrContains(t, err, "invalid credentials")
	})

	t.Run("role mismatch", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByUsername", mock.Anything, "jane").Return(cashierUser(t), nil)

		_, err := newUserUsecase(users).Login(ctx, usecase.LoginInput{Username: "jane", Password: "password123", Role: "admin"})
		assertErrContains(t, err, "role mismatch")
		assertStatus(t, err, http.StatusForbidden)
	})

	t.Run("inactive", func(t *testing.T) {
		users := new(UserRepoMock)
		u := cashierUser(t)
		u.IsActive = false
		users.On("FindByUsername", mock.Anything, "jane").Return(u, nil)

		_, err := newUserUsecase(users).Login(ctx, usecase.LoginInput{Username: "jane", Password: "password123", Role: "cashier"})
		assertStatus(t, err, http.StatusForbidden)
	})
}

func TestUserUsecase_CreateUser(t *testing.T) {
	ctx := context.Background()
	admin := usecase.Actor{UserID: "admin-1", Role: "admin"}

	t.Run("success", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByUsername", mock.Anything, "mark").Return(nil, repo.ErrUserNotFound)
		users.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return u.ID == "id-1" && u.Role == model.RoleCashier && u.Name == "mark" &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")) == nil
		})).Return(nil)

		out, err := newUserUsecase(users).CreateUser(ctx, admin, usecase.CreateUserInput{Username: "mark", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, "cashier", out.Role)
		users.AssertExpectations(t)
	})

	t.Run("cashier forbidden", func(t *testing.T) {
		_, err := newUserUsecase(new(UserRepoMock)).CreateUser(ctx, usecase.Actor{UserID: "u-1", Role: "cashier"}, usecase.CreateUserInput{Username: "mark", Password: "password123"})
		assertStatus(t, err, http.StatusForbidden)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := newUserUsecase(new(UserRepoMock)).CreateUser(ctx, admin, usecase.CreateUserInput{Username: "mark", Password: "short"})
		assertErrContains(t, err, "at least 8 characters")
	})

	t.Run("taken", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByUsername", mock.Anything, "jane").Return(cashierUser(t), nil)

		_, err := newUserUsecase(users).CreateUser(ctx, admin, usecase.CreateUserInput{Username: "jane", Password: "password123"})
		assertStatus(t, err, http.StatusConflict)
	})
}

func TestUserUsecase_EnsureAdmin_SkipsWhenPresent(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByUsername", mock.Anything, "admin").Return(&model.User{ID: "a"}, nil)

	created, err := newUserUsecase(users).EnsureAdmin(context.Background(), "admin", "password123")
	require.NoError(t, err)
	assert.False(t, created)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUserUsecase_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	name := "Jane Q"
	contact := " 0918 "

	t.Run("other cashier forbidden", func(t *testing.T) {
		_, err := newUserUsecase(new(UserRepoMock)).UpdateProfile(ctx, usecase.Actor{UserID: "u-2", Role: "cashier"}, "u-1", usecase.UpdateProfileInput{Name: &name})
		assertStatus(t, err, http.StatusForbidden)
	})

	t.Run("self", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByID", mock.Anything, "u-1").Return(cashierUser(t), nil)
		users.On("FindByUsername", mock.Anything, "jane").Return(cashierUser(t), nil)
		users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return u.Name == "Jane Q" && u.Contact == "0918" && u.Username == "jane"
		})).Return(nil)

		out, err := newUserUsecase(users).UpdateProfile(ctx, usecase.Actor{UserID: "u-1", Role: "cashier"}, "u-1", usecase.UpdateProfileInput{Name: &name, Contact: &contact})
		require.NoError(t, err)
		assert.Equal(t, "Jane Q", out.Name)
		users.AssertExpectations(t)
	})

	t.Run("username conflict", func(t *testing.T) {
		users := new(UserRepoMock)
		taken := "mark"
		users.On("FindByID", mock.Anything, "u-1").Return(cashierUser(t), nil)
		users.On("FindByUsername", mock.Anything, "mark").Return(&model.User{ID: "u-9", Username: "mark"}, nil)

		_, err := newUserUsecase(users).UpdateProfile(ctx, usecase.Actor{UserID: "u-1", Role: "cashier"}, "u-1", usecase.UpdateProfileInput{Username: &taken})
		assertStatus(t, err, http.StatusConflict)
	})
}

func TestUserUsecase_ChangePassword(t *testing.T) {
	ctx := context.Background()
	self := usecase.Actor{UserID: "u-1", Role: "cashier"}

	t.Run("wrong current password", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByID", mock.Anything, "u-1").Return(cashierUser(t), nil)

		err := newUserUsecase(users).ChangePassword(ctx, self, "u-1", usecase.ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "newpassword1"})
		assertStatus(t, err, http.StatusUnauthorized)
		users.AssertNotCalled(t, "IncrementTokenVersion", mock.Anything, mock.Anything)
	})

	t.Run("self bumps token version", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByID", mock.Anything, "u-1").Return(cashierUser(t), nil)
		users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("newpassword1")) == nil
		})).Return(nil)
		users.On("IncrementTokenVersion", mock.Anything, "u-1").Return(nil)

		err := newUserUsecase(users).ChangePassword(ctx, self, "u-1", usecase.ChangePasswordInput{CurrentPassword: "password123", NewPassword: "newpassword1"})
		require.NoError(t, err)
		users.AssertExpectations(t)
	})

	t.Run("admin resets without current password", func(t *testing.T) {
		users := new(UserRepoMock)
		users.On("FindByID", mock.Anything, "u-1").Return(cashierUser(t), nil)
		users.On("Update", mock.Anything, mock.Anything).Return(nil)
		users.On("IncrementTokenVersion", mock.Anything, "u-1").Return(nil)

		err := newUserUsecase(users).ChangePassword(ctx, usecase.Actor{UserID: "admin-1", Role: "admin"}, "u-1", usecase.ChangePasswordInput{NewPassword: "newpassword1"})
		require.NoError(t, err)
	})

	t.Run("short new password", func(t *testing.T) {
		err := newUserUsecase(new(UserRepoMock)).ChangePassword(ctx, self, "u-1", usecase.ChangePasswordInput{CurrentPassword: "password123", NewPassword: "x"})
		assertStatus(t, err, http.StatusBadRequest)
	})
}

package validator

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"pos/internal/domain/model"
	"pos/internal/repository"
	"pos/internal/usecase"
)

// パスワード最低文字数
const minPasswordLen = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,100}$`)

type userValidator struct {
	users repository.UserRepository
}

// Usecaseは interface を依存注入
func NewUserValidator(users repository.UserRepository) usecase.UserValidator {
	return &userValidator{users: users}
}

// ログインの入力を検証
func (v *userValidator) ValidateLogin(ctx context.Context, username, password, role string) error {
	// 必須チェック
	if strings.TrimSpace(username) == "" || password == "" || role == "" {
		return usecase.NewHTTPError(http.StatusBadRequest, "username, password and role are required")
	}
	if !model.Role(role).Valid() {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid role")
	}
	return nil
}

// ユーザー作成の入力を検証
func (v *userValidator) ValidateCreate(ctx context.Context, username, password, role string) error {
	if !usernamePattern.MatchString(username) {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid username")
	}
	if err := v.ValidatePassword(ctx, password); err != nil {
		return err
	}
	if !model.Role(role).Valid() {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid role")
	}

	// username重複チェック（DBが必要）
	u, err := v.users.FindByUsername(ctx, username)
	if err == nil && u != nil {
		return usecase.NewHTTPError(http.StatusConflict, "username already used")
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return usecase.NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// プロフィール更新の入力を検証
func (v *userValidator) ValidateProfile(ctx context.Context, userID, username, name string) error {
	if !usernamePattern.MatchString(username) {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid username")
	}
	if name == "" {
		return usecase.NewHTTPError(http.StatusBadRequest, "name required")
	}

	// 他人が使っている username は不可
	u, err := v.users.FindByUsername(ctx, username)
	if err == nil && u != nil && u.ID != userID {
		return usecase.NewHTTPError(http.StatusConflict, "username already used")
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return usecase.NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (v *userValidator) ValidatePassword(ctx context.Context, password string) error {
	if len(password) < minPasswordLen {
		return usecase.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}
	return nil
}

package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"pos/internal/config"
	"pos/internal/domain/model"
	"pos/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// usecaseがValidatorInterfaceに依存する約束
type UserValidator interface {
	ValidateLogin(ctx context.Context, username, password, role string) error
	ValidateCreate(ctx context.Context, username, password, role string) error
	ValidateProfile(ctx context.Context, userID, username, name string) error
	ValidatePassword(ctx context.Context, password string) error
}

type UserDTO struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// レジ側はこの形をそのままセッションとして保存する
type LoginOutput struct {
	ID        string `json:"_id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type CreateUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Role     string `json:"role"`
}

type UpdateProfileInput struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
	Contact  *string `json:"contact"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Actor は操作しているユーザー（JWT の sub / role）。
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) canEdit(target string) bool {
	return a.UserID == target || a.Role == string(model.RoleAdmin)
}

type UserUsecase struct {
	cfg       config.Config
	users     repository.UserRepository
	validator UserValidator
	idGen     IDGenerator
	clock     Clock
}

func NewUserUsecase(
	cfg config.Config,
	users repository.UserRepository,
	validator UserValidator,
	idGen IDGenerator,
	clock Clock,
) *UserUsecase {
	return &UserUsecase{
		cfg:       cfg,
		users:     users,
		validator: validator,
		idGen:     idGen,
		clock:     clock,
	}
}

func (u *UserUsecase) Login(ctx context.Context, in LoginInput) (LoginOutput, error) {
	username := strings.TrimSpace(in.Username)
	role := strings.ToLower(strings.TrimSpace(in.Role))

	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateLogin(ctx, username, in.Password, role); err != nil {
		return LoginOutput{}, err
	}

	//ユーザー取得
	user, err := u.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return LoginOutput{}, NewHTTPError(http.StatusForbidden, "user is inactive")
	}
	//選んだロールと違う
	if string(user.Role) != role {
		return LoginOutput{}, NewHTTPError(http.StatusForbidden, "role mismatch")
	}

	//last_login更新
	now := u.clock.Now()
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	token, expiresIn, err := u.issueAccessToken(user, now)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	return LoginOutput{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Contact:   user.Contact,
		Role:      string(user.Role),
		Token:     token,
		ExpiresIn: expiresIn,
	}, nil
}

func (u *UserUsecase) ListUsers(ctx context.Context) ([]UserDTO, error) {
	users, err := u.users.List(ctx)
	if err != nil {
		return []UserDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	out := make([]UserDTO, 0, len(users))
	for i := range users {
		out = append(out, toUserDTO(&users[i]))
	}
	return out, nil
}

func (u *UserUsecase) CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (UserDTO, error) {
	if actor.Role != string(model.RoleAdmin) {
		return UserDTO{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = string(model.RoleCashier)
	}

	if err := u.validator.ValidateCreate(ctx, in.Username, in.Password, in.Role); err != nil {
		return UserDTO{}, err
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "hash error")
	}

	name := in.Name
	if name == "" {
		name = in.Username
	}
	user := &model.User{
		ID:           u.idGen.NewID(),
		Username:     in.Username,
		Name:         name,
		Contact:      strings.TrimSpace(in.Contact),
		PasswordHash: string(pwHash),
		Role:         model.Role(in.Role),
		IsActive:     true,
	}

	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return UserDTO{}, NewHTTPError(http.StatusConflict, "username already used")
		}
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toUserDTO(user), nil
}

// EnsureAdmin は起動時に管理者がいなければ作る。
func (u *UserUsecase) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := u.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return false, err
	}

	if _, err := u.CreateUser(ctx, Actor{UserID: "system", Role: string(model.RoleAdmin)}, CreateUserInput{
		Username: username,
		Password: password,
		Name:     username,
		Role:     string(model.RoleAdmin),
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (u *UserUsecase) UpdateProfile(ctx context.Context, actor Actor, userID string, in UpdateProfileInput) (UserDTO, error) {
	if !actor.canEdit(userID) {
		return UserDTO{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return UserDTO{}, NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	username := user.Username
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
	}
	name := user.Name
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if err := u.validator.ValidateProfile(ctx, userID, username, name); err != nil {
		return UserDTO{}, err
	}

	user.Username = username
	user.Name = name
	if in.Contact != nil {
		user.Contact = strings.TrimSpace(*in.Contact)
	}

	if err := u.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return UserDTO{}, NewHTTPError(http.StatusConflict, "username already used")
		}
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toUserDTO(user), nil
}

// ChangePassword は token_version を上げて、発行済みトークンを無効にする。
// 本人の場合は現在のパスワードが必要。管理者が他人のを変えるときは不要。
func (u *UserUsecase) ChangePassword(ctx context.Context, actor Actor, userID string, in ChangePasswordInput) error {
	if !actor.canEdit(userID) {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if err := u.validator.ValidatePassword(ctx, in.NewPassword); err != nil {
		return err
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if actor.UserID == userID {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
			return NewHTTPError(http.StatusUnauthorized, "current password is incorrect")
		}
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "hash error")
	}
	user.PasswordHash = string(pwHash)

	if err := u.users.Update(ctx, user); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := u.users.IncrementTokenVersion(ctx, userID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// jwt発行
func (u *UserUsecase) issueAccessToken(user *model.User, now time.Time) (string, int, error) {
	exp := now.Add(u.cfg.TokenTTL)

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}

	return signed, int(u.cfg.TokenTTL.Seconds()), nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Contact:  u.Contact,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	}
}

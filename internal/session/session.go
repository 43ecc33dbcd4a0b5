package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

var (
	ErrNoSession    = errors.New("no active session")
	ErrInvalidLogin = errors.New("username, password and role are required")
)

// Session はログイン中の利用者。ログインで作り、ログアウトで消す。
type Session struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	Token      string    `json:"token"`
	Role       string    `json:"role"`
	Contact    string    `json:"contact"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// HomePath はロールごとのログイン後の遷移先。
func (s Session) HomePath() string {
	switch s.Role {
	case RoleAdmin:
		return "/dashboard"
	case RoleCashier:
		return "/cashier"
	default:
		return "/"
	}
}

// Cashier は取引・返金に記録する担当者名。
func (s Session) Cashier() string {
	if s.Username != "" {
		return s.Username
	}
	return s.Name
}

// Credentials はログインフォームの入力。
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (c Credentials) normalize() (Credentials, error) {
	c.Username = strings.TrimSpace(c.Username)
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	if c.Username == "" || c.Password == "" || c.Role == "" {
		return c, ErrInvalidLogin
	}
	return c, nil
}

// Authenticator はログイン API（client.Client が実装）。
type Authenticator interface {
	Login(ctx context.Context, cred Credentials) (Session, error)
}

// Store はセッションの保存先（端末ごとに1件）。
type Store interface {
	Load(ctx context.Context, terminal string) (Session, error)
	Save(ctx context.Context, terminal string, s Session) error
	Delete(ctx context.Context, terminal string) error
}

package session

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
)

// Manager は1端末のログイン状態を持つ。
// 取得した Session は値として呼び出し側に渡す（グローバルには置かない）。
type Manager struct {
	auth     Authenticator
	store    Store
	terminal string
	logger   *log.Logger
	now      func() time.Time
}

func NewManager(auth Authenticator, store Store, terminal string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New("session")
	}
	return &Manager{
		auth:     auth,
		store:    store,
		terminal: terminal,
		logger:   logger,
		now:      time.Now,
	}
}

// Login は認証して保存する。失敗時は以前のセッションに触らない。
func (m *Manager) Login(ctx context.Context, cred Credentials) (Session, error) {
	cred, err := cred.normalize()
	if err != nil {
		return Session{}, err
	}

	s, err := m.auth.Login(ctx, cred)
	if err != nil {
		m.logger.Warnj(log.JSON{"msg": "login failed", "username": cred.Username, "role": cred.Role, "error": err.Error()})
		return Session{}, err
	}
	if s.Username == "" {
		s.Username = cred.Username
	}
	if s.Role == "" {
		s.Role = cred.Role
	}
	s.LoggedInAt = m.now()

	if err := m.store.Save(ctx, m.terminal, s); err != nil {
		return Session{}, err
	}
	m.logger.Infoj(log.JSON{"msg": "logged in", "username": s.Username, "role": s.Role})
	return s, nil
}

// Current は保存済みのセッション。無ければ ErrNoSession。
func (m *Manager) Current(ctx context.Context) (Session, error) {
	return m.store.Load(ctx, m.terminal)
}

// Replace はプロフィール更新後などにセッションを書き換える。
func (m *Manager) Replace(ctx context.Context, s Session) error {
	return m.store.Save(ctx, m.terminal, s)
}

func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Delete(ctx, m.terminal); err != nil {
		return err
	}
	m.logger.Infoj(log.JSON{"msg": "logged out", "terminal": m.terminal})
	return nil
}

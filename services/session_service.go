package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"member/models"
)

type TokenManager interface {
	Issue(subject string) (string, error)
	Verify(token string) (string, error)
	TTL() time.Duration
}

type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Session Resolver：由 Token 取得目前登入的使用者
type SessionService struct {
	tokens TokenManager
	users  UserLookup
	logger *slog.Logger
}

func NewSessionService(tokens TokenManager, users UserLookup, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{tokens: tokens, users: users, logger: logger}
}

// Token 無效與使用者不存在皆回傳 ErrUnauthorized，不區分原因
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}

	subject, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.DebugContext(ctx, "verify token failed", slog.String("error", err.Error()))
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// 帳號停用時回傳 ErrUnauthorized
func (s *SessionService) RequireActive(user *models.User) (*models.User, error) {
	if user == nil || !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	RecordLogin(ctx context.Context, user *models.User) error
}

// 驗證帳號密碼並簽發Token，任何失敗原因都回傳 ErrUnauthorized
func (s *SessionService) Login(ctx context.Context, auth Authenticator, username, password string) (string, *models.User, error) {
	user, err := auth.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}
	if _, err := s.RequireActive(user); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return "", nil, err
	}
	if err := auth.RecordLogin(ctx, user); err != nil {
		return "", nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.Uint64("user_id", uint64(user.ID)))
	return token, user, nil
}

// Token 有效期限
func (s *SessionService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// 重新簽發Token，用於使用者名稱變更後
func (s *SessionService) IssueFor(user *models.User) (string, error) {
	return s.tokens.Issue(user.Username)
}

// Package auth はユーザー登録・ログイン・セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/storyhub/storyhub/internal/model"
	"github.com/storyhub/storyhub/internal/notify"
	"github.com/storyhub/storyhub/internal/repository"
)

// Service は認証まわりのユースケースを実装する。
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	hub      *notify.Hub
	tokens   *TokenIssuer
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	hub *notify.Hub,
	tokens *TokenIssuer,
	maxAge time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		hub:      hub,
		tokens:   tokens,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// AuthResult はログイン・登録成功時に返される情報。
type AuthResult struct {
	User      *model.User
	Session   *model.Session
	Token     string
	ExpiresAt time.Time
}

// Register は新規ユーザーを登録し、そのままログイン状態にする。
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, model.NewEmptyRequiredFieldError("email")
	}
	if password == "" {
		return nil, model.NewEmptyRequiredFieldError("password")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &model.Profile{
		ID:        user.ID,
		FullName:  strings.TrimSpace(fullName),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.startSession(ctx, user)
}

// Login はメールアドレスとパスワードを検証し、セッションを開始する。
// ユーザーが存在しない場合もパスワード不一致の場合も同じエラーを返し、
// メールアドレスの存在を外部から推測できないようにする。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return s.startSession(ctx, user)
}

// Logout はセッションを破棄する。存在しないセッションIDでもエラーにしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if session != nil {
		s.hub.Publish(notify.AuthEvent{Type: notify.EventSignedOut, UserID: session.UserID})
		s.logger.Info("user logged out", "user_id", session.UserID)
	}
	return nil
}

// GetCurrentUser はセッションに紐づくユーザーを返す。
// セッションが無効な場合はnilを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ResolveSession はセッションIDを検証し、有効ならセッションを返す。
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.sessions.FindByID(ctx, sessionID)
}

// VerifyToken はBearerトークンを検証し、紐づくセッションを返す。
// トークンの署名が正しくてもセッションが破棄済みならnilを返す。
func (s *Service) VerifyToken(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil
	}
	return s.sessions.FindByID(ctx, claims.SessionID)
}

func (s *Service) startSession(ctx context.Context, user *model.User) (*AuthResult, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.maxAge),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.hub.Publish(notify.AuthEvent{Type: notify.EventSignedIn, UserID: user.ID})
	s.logger.Info("session started", "user_id", user.ID)

	return &AuthResult{
		User:      user,
		Session:   session,
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// newSessionID は推測不能なセッションIDを生成する。
func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

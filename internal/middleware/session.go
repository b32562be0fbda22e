// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/storyhub/storyhub/internal/model"
)

// SessionCookieName はセッションIDを保持するCookie名。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey    = contextKey("user_id")
	sessionIDContextKey = contextKey("session_id")
)

// SessionResolver はリクエストの資格情報からセッションを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionResolver interface {
	// ResolveSession はセッションIDから有効なセッションを返す。無効ならnil。
	ResolveSession(ctx context.Context, sessionID string) (*model.Session, error)
	// VerifyToken はBearerトークンから有効なセッションを返す。無効ならnil。
	VerifyToken(ctx context.Context, token string) (*model.Session, error)
}

// NewSessionMiddleware はリクエストの資格情報を検証するミドルウェアを返す。
// HTTP Only CookieのセッションIDとAuthorizationヘッダーのBearerトークンの
// 両方を受け付ける。ブラウザはCookie、APIクライアントはトークンを使う想定。
// 認証済みユーザーIDとセッションIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolveRequestSession(r, resolver)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteUnauthorizedResponse(w)
				return
			}
			if session == nil {
				WriteUnauthorizedResponse(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, session.UserID)
			ctx = context.WithValue(ctx, sessionIDContextKey, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveRequestSession はCookieまたはBearerトークンからセッションを解決する。
// Cookieを優先し、Cookieがない場合のみAuthorizationヘッダーを参照する。
func resolveRequestSession(r *http.Request, resolver SessionResolver) (*model.Session, error) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return resolver.ResolveSession(r.Context(), cookie.Value)
	}

	authz := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok && token != "" {
		return resolver.VerifyToken(r.Context(), token)
	}

	return nil, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithSessionID はコンテキストにセッションIDを注入する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}

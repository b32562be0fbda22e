package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/storyhub/storyhub/internal/auth"
	"github.com/storyhub/storyhub/internal/middleware"
	"github.com/storyhub/storyhub/internal/model"
	"github.com/storyhub/storyhub/internal/notify"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを登録し、セッションを開始する。
	Register(ctx context.Context, email, password, fullName string) (*auth.AuthResult, error)
	// Login はメールアドレスとパスワードを検証し、セッションを開始する。
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
	// GetCurrentUser はセッションに紐づくユーザーを返す。
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
	// VerifyToken はBearerトークンから有効なセッションを返す。
	VerifyToken(ctx context.Context, token string) (*model.Session, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// CookieSecure はSecure属性を付与するか。HTTPSで配信する場合にtrue。
	CookieSecure bool
	// CookieDomain はCookieのDomain属性。空の場合は付与しない。
	CookieDomain string
	// SessionMaxAge はセッションCookieの有効期間。
	SessionMaxAge time.Duration
	// WSAllowedOrigin はWebSocket接続を許可するオリジン。
	WSAllowedOrigin string
}

// AuthHandler は認証まわりのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	hub      *notify.Hub
	config   AuthHandlerConfig
	upgrader websocket.Upgrader
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, hub *notify.Hub, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		hub:     hub,
		config:  config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == config.WSAllowedOrigin
			},
		},
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// authResponse はログイン・登録成功時のAPIレスポンス。
type authResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Register はユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, result.Session.ID, result.ExpiresAt)
	writeJSONResponse(w, http.StatusCreated, toAuthResponse(result))
}

// Login はログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, result.Session.ID, result.ExpiresAt)
	writeJSONResponse(w, http.StatusOK, toAuthResponse(result))
}

// Logout はログアウトを処理する。セッションの有無にかかわらず204を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionIDFromRequest(r)
	if sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザーを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionIDFromRequest(r)
	if sessionID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	writeJSONResponse(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

// Events は認証イベント配信用のWebSocket接続を確立する。
// ログイン・ログアウトが発生すると接続中の全タブへイベントが配信される。
// GET /auth/events
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionIDFromRequest(r)
	if sessionID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil || user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeが失敗した場合はupgrader側でエラーレスポンス済み
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.hub.Attach(user.ID, conn)
}

// sessionIDFromRequest はCookieまたはBearerトークンからセッションIDを取り出す。
// 認証ミドルウェアの外に置かれたルートで使用する。
func (h *AuthHandler) sessionIDFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(authz) > len(prefix) && authz[:len(prefix)] == prefix {
		session, err := h.service.VerifyToken(r.Context(), authz[len(prefix):])
		if err == nil && session != nil {
			return session.ID
		}
	}

	return ""
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		Expires:  expiresAt,
		MaxAge:   int(h.config.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toAuthResponse(result *auth.AuthResult) authResponse {
	return authResponse{
		User:      userResponse{ID: result.User.ID, Email: result.User.Email},
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}
}

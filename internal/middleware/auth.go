// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adhira/adhira/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// TokenAuthenticator はベアラートークンの検証に必要なインターフェース。
// auth.Serviceが実装する。
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.UserWithProfile, error)
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// トークンが無い、不正、期限切れの場合は401を返す。
func NewBearerAuthMiddleware(authenticator TokenAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Invalid token", nil)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, model.ErrTokenExpired):
					WriteError(w, http.StatusUnauthorized, "Token expired", nil)
				case errors.Is(err, model.ErrTokenInvalid), errors.Is(err, model.ErrUserNotFound):
					WriteError(w, http.StatusUnauthorized, "Invalid token", nil)
				default:
					slog.ErrorContext(r.Context(), "failed to authenticate token",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
				}
				return
			}

			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。スキーム名は大文字小文字を区別しない。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// ベアラー認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.UserWithProfile, error) {
	user, ok := ctx.Value(userContextKey).(*model.UserWithProfile)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.UserWithProfile) context.Context {
	if user != nil {
		setRequestUserID(ctx, user.ID)
	}
	return context.WithValue(ctx, userContextKey, user)
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adhira/adhira/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 認証
	AuthService   AuthServiceInterface
	Authenticator middleware.TokenAuthenticator
	Validator     *RequestValidator

	// ヘルスチェック
	UserCounter UserCounter

	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           middleware.HTTPMetricsRecorder
	MetricsHandler    http.Handler

	// DevMode はエラーレスポンスに詳細を含めるかどうか。
	DevMode bool
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// 登録・ログインにはIP単位のレート制限、/meにはベアラートークン認証を個別に適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	validator := deps.Validator
	if validator == nil {
		validator = NewRequestValidator()
	}
	authenticator := deps.Authenticator
	if authenticator == nil {
		authenticator = deps.AuthService
	}

	authHandler := NewAuthHandler(deps.AuthService, validator, deps.DevMode)
	healthHandler := NewHealthHandler(deps.UserCounter, deps.DevMode)

	rateLimited := func(next http.Handler) http.Handler { return next }
	if deps.RateLimiter != nil {
		rateLimited = deps.RateLimiter.AuthMiddleware()
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimited)
			r.Post("/register/customer", authHandler.RegisterCustomer)
			r.Post("/register/seller", authHandler.RegisterSeller)
			r.Post("/login", authHandler.Login)
		})

		r.Get("/health", healthHandler.Health)

		r.With(middleware.NewBearerAuthMiddleware(authenticator)).Get("/me", authHandler.Me)
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	return r
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/adhira/adhira/internal/middleware"
)

// UserCounter はヘルスチェックに必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler はDB接続の疎通確認を行うハンドラー。
type HealthHandler struct {
	counter UserCounter
	devMode bool
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(counter UserCounter, devMode bool) *HealthHandler {
	return &HealthHandler{counter: counter, devMode: devMode}
}

// Health はユーザー数を数えてDB接続を確認する。
// GET /api/auth/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.counter.Count(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "health check failed", slog.String("error", err.Error()))

		var detail any
		if h.devMode {
			detail = []string{err.Error()}
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Database connection failed", detail)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Database connection healthy", map[string]int{
		"userCount": count,
	})
}

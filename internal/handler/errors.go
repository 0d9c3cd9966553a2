package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/adhira/adhira/internal/middleware"
	"github.com/adhira/adhira/internal/model"
)

// errorWriter はサービス層のエラーをHTTPステータスと統一レスポンスに変換する。
// devModeの場合のみerrorsにエラー詳細を含める。
type errorWriter struct {
	devMode bool
}

// write はerrを分類してレスポンスを書き込む。
func (ew *errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classifyError(err)

	if status >= http.StatusInternalServerError || message == "Database error occurred" {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	var detail any
	if ew.devMode && !isDomainError(err) {
		detail = []string{err.Error()}
	}
	middleware.WriteError(w, status, message, detail)
}

// classifyError はエラーに対応するHTTPステータスとメッセージを返す。
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrPasswordMismatch),
		errors.Is(err, model.ErrDuplicateEmail):
		return http.StatusBadRequest, model.ResponseMessage(err)
	case errors.Is(err, model.ErrInvalidCredentials),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrTokenInvalid),
		errors.Is(err, model.ErrUserNotFound):
		return http.StatusUnauthorized, model.ResponseMessage(err)
	}

	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Domain() == "database" {
		return http.StatusBadRequest, "Database error occurred"
	}

	return http.StatusInternalServerError, "Internal server error"
}

// isDomainError は利用者向けメッセージで完結するエラーかを返す。
// これらは開発環境でも詳細を付けない。
func isDomainError(err error) bool {
	return model.ResponseMessage(err) != ""
}

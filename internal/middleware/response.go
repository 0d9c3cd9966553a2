package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope はすべてのAPIレスポンスの統一フォーマット。
// errorsはバリデーション失敗時、または開発環境でのみ設定する。
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// WriteJSON は任意の値をJSONとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// WriteSuccess は成功レスポンスを書き込む。
func WriteSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	WriteJSON(w, statusCode, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteError は失敗レスポンスを書き込む。errorsがnilの場合はフィールドを省略する。
func WriteError(w http.ResponseWriter, statusCode int, message string, errors any) {
	WriteJSON(w, statusCode, Envelope{
		Success: false,
		Message: message,
		Errors:  errors,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "Internal server error", nil)
}

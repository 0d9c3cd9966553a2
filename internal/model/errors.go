// Package model はドメインモデルを定義する。
package model

import "errors"

// ドメインエラー。ハンドラー層でHTTPステータスと応答メッセージに変換される。
var (
	// ErrDuplicateEmail は既に登録済みのメールアドレスで登録しようとした場合のエラー。
	ErrDuplicateEmail = errors.New("user already exists with this email")

	// ErrPasswordMismatch はpasswordとconfirmPasswordが一致しない場合のエラー。
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrInvalidCredentials はメールアドレス不在とパスワード不一致の両方で返す。
	// どちらが原因かを区別させないため、同一のエラーを使う。
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrTokenInvalid は署名不正・形式不正なトークンを表す。
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired は有効期限切れのトークンを表す。
	ErrTokenExpired = errors.New("token expired")

	// ErrConstraintViolation はDBの一意制約などに違反した場合のエラー。
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrUserNotFound はトークンの主体となるユーザーが存在しない場合のエラー。
	ErrUserNotFound = errors.New("user not found")
)

// ResponseMessage はドメインエラーに対応する利用者向けメッセージを返す。
// 対応しないエラーの場合は空文字を返す。
func ResponseMessage(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return "User already exists with this email"
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrUserNotFound):
		return "Invalid token"
	}
	return ""
}

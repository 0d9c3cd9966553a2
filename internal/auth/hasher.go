package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのデフォルトコスト。
const DefaultBcryptCost = 10

// ErrEmptyPassword は空のパスワードをハッシュ化しようとした場合のエラー。
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher はパスワードのハッシュ化と照合を行うインターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify は不一致やダイジェスト不正の場合にfalseを返す。エラーは返さない。
	Verify(password, digest string) bool
}

// BcryptHasher はbcryptによるPasswordHasher実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher は指定コストのBcryptHasherを生成する。
// costがbcryptの許容範囲外の場合はDefaultBcryptCostを使う。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash はパスワードをbcryptでハッシュ化する。ソルトは呼び出しごとに異なる。
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify はパスワードがダイジェストと一致するかを返す。
func (h *BcryptHasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

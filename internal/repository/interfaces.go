// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/adhira/adhira/internal/model"
)

// UserRepository はユーザーとロール別プロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスでユーザーをプロフィール付きで取得する。
	// 見つからない場合はnilを返す。メールアドレスは大文字小文字を区別する。
	FindByEmail(ctx context.Context, email string) (*model.UserWithProfile, error)

	// FindByID は指定IDのユーザーをプロフィール付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.UserWithProfile, error)

	// EmailExists はメールアドレスが登録済みかを返す。
	EmailExists(ctx context.Context, email string) (bool, error)

	// CreateCustomer はcustomerロールのユーザーとcustomer行を同一トランザクションで作成する。
	// 一意制約違反の場合はmodel.ErrConstraintViolationをラップしたエラーを返す。
	CreateCustomer(ctx context.Context, user *model.User, customer *model.Customer) error

	// CreateSeller はsellerロールのユーザーとseller行を同一トランザクションで作成する。
	CreateSeller(ctx context.Context, user *model.User, seller *model.Seller) error

	// UpdateToken は最後に発行したトークンを上書き保存する。
	UpdateToken(ctx context.Context, userID, token string) error

	// Count は登録ユーザー数を返す。ヘルスチェックに使用する。
	Count(ctx context.Context) (int, error)
}

// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// User はマーケットプレイスの利用者を表す。
// PasswordHashはリポジトリ境界の外へレスポンスとして出してはならない。
type User struct {
	ID           string
	FullName     string
	Email        string
	MobileNumber string
	PasswordHash string
	Role         Role
	Token        string // 最後に発行したトークン（検証には使わない）
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Customer は購入者ロールのプロフィール。Userと1:1で紐付く。
type Customer struct {
	ID      string
	UserID  string
	Address string
}

// Seller は出品者ロールのプロフィール。Userと1:1で紐付く。
type Seller struct {
	ID              string
	UserID          string
	ShopName        string
	ShopDescription string
	BusinessAddress string
}

// UserWithProfile はユーザーとロール別プロフィールを結合した構造体。
// Customer と Seller はロールに応じてどちらか一方のみ設定される。
type UserWithProfile struct {
	User
	Customer *Customer
	Seller   *Seller
}

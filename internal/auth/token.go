package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/adhira/adhira/internal/model"
)

// DefaultTokenExpiry はトークンのデフォルト有効期間（365日）。
const DefaultTokenExpiry = 365 * 24 * time.Hour

// Claims はトークンに埋め込む利用者情報。
type Claims struct {
	UserID string     `json:"sub"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

// tokenClaims はJWTの署名対象となるクレーム。
// subはRegisteredClaims.Subjectに載せる。
type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer はトークンの発行と検証を行うインターフェース。
type TokenIssuer interface {
	Issue(claims Claims) (string, error)
	Verify(token string) (*Claims, error)
}

// JWTIssuer はHS256で署名するTokenIssuer実装。
type JWTIssuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTIssuer はJWTIssuerを生成する。expiryが0以下の場合はDefaultTokenExpiryを使う。
func NewJWTIssuer(secret string, expiry time.Duration) *JWTIssuer {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &JWTIssuer{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// Issue はクレームに署名したトークンを返す。
func (i *JWTIssuer) Issue(claims Claims) (string, error) {
	now := i.now()
	tc := tokenClaims{
		Email: claims.Email,
		Role:  string(claims.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 期限切れはmodel.ErrTokenExpired、それ以外の不正はmodel.ErrTokenInvalidを返す。
func (i *JWTIssuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{},
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", model.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", model.ErrTokenInvalid, err)
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || tc.Subject == "" || !model.Role(tc.Role).Valid() {
		return nil, model.ErrTokenInvalid
	}

	return &Claims{
		UserID: tc.Subject,
		Email:  tc.Email,
		Role:   model.Role(tc.Role),
	}, nil
}

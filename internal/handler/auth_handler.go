// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/adhira/adhira/internal/auth"
	"github.com/adhira/adhira/internal/middleware"
	"github.com/adhira/adhira/internal/model"
)

// maxRequestBodyBytes はリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RegisterCustomer(ctx context.Context, in auth.RegisterCustomerInput) (*auth.Result, error)
	RegisterSeller(ctx context.Context, in auth.RegisterSellerInput) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	Authenticate(ctx context.Context, token string) (*model.UserWithProfile, error)
}

// AuthHandler は登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	validator *RequestValidator
	errors    *errorWriter
}

// NewAuthHandler はAuthHandlerを生成する。devModeがtrueの場合はエラー詳細をレスポンスに含める。
func NewAuthHandler(service AuthServiceInterface, validator *RequestValidator, devMode bool) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: validator,
		errors:    &errorWriter{devMode: devMode},
	}
}

type registerCustomerRequest struct {
	FullName        string `json:"fullName" validate:"required,plaintext"`
	Email           string `json:"email" validate:"required,email"`
	MobileNumber    string `json:"mobileNumber" validate:"required,notblank"`
	Address         string `json:"address" validate:"required,plaintext"`
	Password        string `json:"password" validate:"min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

type registerSellerRequest struct {
	FullName        string `json:"fullName" validate:"required,plaintext"`
	Email           string `json:"email" validate:"required,email"`
	MobileNumber    string `json:"mobileNumber" validate:"required,notblank"`
	ShopName        string `json:"shopName" validate:"required,plaintext"`
	ShopDescription string `json:"shopDescription" validate:"required,plaintext"`
	BusinessAddress string `json:"businessAddress" validate:"required,plaintext"`
	Password        string `json:"password" validate:"min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードは含めない。
// ロール別プロフィールの項目はフラットに展開する。
type userResponse struct {
	ID              string    `json:"id"`
	FullName        string    `json:"fullName"`
	Email           string    `json:"email"`
	MobileNumber    string    `json:"mobileNumber"`
	Role            string    `json:"role"`
	Token           string    `json:"token,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Address         string    `json:"address,omitempty"`
	ShopName        string    `json:"shopName,omitempty"`
	ShopDescription string    `json:"shopDescription,omitempty"`
	BusinessAddress string    `json:"businessAddress,omitempty"`
}

// authResponse は登録・ログイン成功時のdata。
type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// RegisterCustomer はcustomerアカウントを登録する。
// POST /api/auth/register/customer
func (h *AuthHandler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerCustomerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.RegisterCustomer(r.Context(), auth.RegisterCustomerInput{
		FullName:        req.FullName,
		Email:           req.Email,
		MobileNumber:    req.MobileNumber,
		Address:         req.Address,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusCreated, "Customer account created successfully", toAuthResponse(result))
}

// RegisterSeller はsellerアカウントを登録する。
// POST /api/auth/register/seller
func (h *AuthHandler) RegisterSeller(w http.ResponseWriter, r *http.Request) {
	var req registerSellerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.RegisterSeller(r.Context(), auth.RegisterSellerInput{
		FullName:        req.FullName,
		Email:           req.Email,
		MobileNumber:    req.MobileNumber,
		ShopName:        req.ShopName,
		ShopDescription: req.ShopDescription,
		BusinessAddress: req.BusinessAddress,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusCreated, "Seller account created successfully", toAuthResponse(result))
}

// Login はメールアドレスとパスワードで認証し、トークンを返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Login successful", toAuthResponse(result))
}

// Me はベアラートークンで認証された現在のユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid token", nil)
		return
	}

	resp := toUserResponse(user)
	resp.Token = ""
	middleware.WriteSuccess(w, http.StatusOK, "User retrieved successfully", map[string]userResponse{
		"user": resp,
	})
}

// decodeAndValidate はJSONボディをreqにデコードし検証する。
// 失敗時はレスポンスを書き込みfalseを返す。
func (h *AuthHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		slog.WarnContext(r.Context(), "failed to decode request body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Validation failed", errs)
		return false
	}
	return true
}

func toAuthResponse(result *auth.Result) authResponse {
	return authResponse{
		User:  toUserResponse(result.User),
		Token: result.Token,
	}
}

func toUserResponse(u *model.UserWithProfile) userResponse {
	resp := userResponse{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		MobileNumber: u.MobileNumber,
		Role:         string(u.Role),
		Token:        u.Token,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	switch {
	case u.Role == model.RoleCustomer && u.Customer != nil:
		resp.Address = u.Customer.Address
	case u.Role == model.RoleSeller && u.Seller != nil:
		resp.ShopName = u.Seller.ShopName
		resp.ShopDescription = u.Seller.ShopDescription
		resp.BusinessAddress = u.Seller.BusinessAddress
	}
	return resp
}

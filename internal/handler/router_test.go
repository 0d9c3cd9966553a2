package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/adhira/adhira/internal/auth"
	"github.com/adhira/adhira/internal/middleware"
	"github.com/adhira/adhira/internal/model"
	"github.com/adhira/adhira/internal/security"
)

// --- ルーター結合テスト用のインメモリリポジトリ ---

type memoryUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*model.UserWithProfile
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byEmail: make(map[string]*model.UserWithProfile)}
}

func (m *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.UserWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUserRepo) FindByID(ctx context.Context, id string) (*model.UserWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memoryUserRepo) CreateCustomer(ctx context.Context, user *model.User, customer *model.Customer) error {
	customer.UserID = user.ID
	return m.insert(&model.UserWithProfile{User: *user, Customer: customer})
}

func (m *memoryUserRepo) CreateSeller(ctx context.Context, user *model.User, seller *model.Seller) error {
	seller.UserID = user.ID
	return m.insert(&model.UserWithProfile{User: *user, Seller: seller})
}

func (m *memoryUserRepo) insert(u *model.UserWithProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return model.ErrConstraintViolation
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	m.byEmail[u.Email] = u
	return nil
}

func (m *memoryUserRepo) UpdateToken(ctx context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == userID {
			u.Token = token
			return nil
		}
	}
	return model.ErrUserNotFound
}

func (m *memoryUserRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byEmail), nil
}

// --- テストヘルパー ---

func newTestRouter(t *testing.T, perMinute int) (http.Handler, *memoryUserRepo) {
	t.Helper()

	repo := newMemoryUserRepo()
	svc := auth.NewService(
		repo,
		auth.NewBcryptHasher(bcrypt.MinCost),
		auth.NewJWTIssuer("router-test-secret", time.Hour),
		security.NewProfileSanitizer(),
		nil,
	)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(perMinute))
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		AuthService:       svc,
		UserCounter:       repo,
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       rl,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
	return router, repo
}

func serve(router http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- テスト ---

func TestRouter_CustomerRegistrationAndLoginFlow(t *testing.T) {
	router, repo := newTestRouter(t, 100)

	// 登録
	w := serve(router, http.MethodPost, "/api/auth/register/customer", janeCustomerBody, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d; body = %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "secret1") || strings.Contains(w.Body.String(), "$2a$") {
		t.Errorf("register response leaks password material: %s", w.Body.String())
	}
	var registered authResponse
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &registered); err != nil {
		t.Fatalf("failed to decode register data: %v", err)
	}
	if registered.Token == "" {
		t.Fatal("register token is empty")
	}
	if registered.User.Address != "12 MG Road" {
		t.Errorf("user.address = %q", registered.User.Address)
	}

	stored, _ := repo.FindByEmail(context.Background(), "jane@example.com")
	if stored == nil || stored.PasswordHash == "" || stored.PasswordHash == "secret1" {
		t.Fatalf("stored user = %+v, want hashed password", stored)
	}

	// 重複登録
	w = serve(router, http.MethodPost, "/api/auth/register/customer", janeCustomerBody, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if msg := decodeEnvelope(t, w).Message; msg != "User already exists with this email" {
		t.Errorf("duplicate message = %q", msg)
	}

	// 誤ったパスワード
	w = serve(router, http.MethodPost, "/api/auth/login", `{"email":"jane@example.com","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// 存在しないユーザーも同じ応答
	w = serve(router, http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"secret1"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if msg := decodeEnvelope(t, w).Message; msg != "Invalid email or password" {
		t.Errorf("unknown user message = %q", msg)
	}

	// 正しいパスワード
	w = serve(router, http.MethodPost, "/api/auth/login", `{"email":"jane@example.com","password":"secret1"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	var loggedIn authResponse
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &loggedIn); err != nil {
		t.Fatalf("failed to decode login data: %v", err)
	}
	if loggedIn.User.Role != "customer" {
		t.Errorf("login role = %q", loggedIn.User.Role)
	}

	stored, _ = repo.FindByEmail(context.Background(), "jane@example.com")
	if stored.Token != loggedIn.Token {
		t.Error("login token was not persisted")
	}

	// /me
	w = serve(router, http.MethodGet, "/api/auth/me", "", loggedIn.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	var me struct {
		User userResponse `json:"user"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &me); err != nil {
		t.Fatalf("failed to decode me data: %v", err)
	}
	if me.User.Email != "jane@example.com" || me.User.Token != "" {
		t.Errorf("me user = %+v", me.User)
	}

	// ヘルスチェック
	w = serve(router, http.MethodGet, "/api/auth/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	var health map[string]int
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &health); err != nil {
		t.Fatalf("failed to decode health data: %v", err)
	}
	if health["userCount"] != 1 {
		t.Errorf("userCount = %d, want 1", health["userCount"])
	}
}

func TestRouter_Register_RejectsFieldsEmptyAfterSanitizing(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		wantFields map[string]string
	}{
		{
			name:   "customer with markup-only name and blank address",
			target: "/api/auth/register/customer",
			body: `{"fullName":"<b></b>","email":"jane@example.com","mobileNumber":"9876543210",
				"address":"   ","password":"secret1","confirmPassword":"secret1"}`,
			wantFields: map[string]string{
				"fullName": "Full name is required",
				"address":  "Address is required",
			},
		},
		{
			name:   "customer with blank mobile number",
			target: "/api/auth/register/customer",
			body: `{"fullName":"Jane Doe","email":"jane@example.com","mobileNumber":"  ",
				"address":"12 MG Road","password":"secret1","confirmPassword":"secret1"}`,
			wantFields: map[string]string{
				"mobileNumber": "Mobile number is required",
			},
		},
		{
			name:   "seller with entity-encoded script shop name",
			target: "/api/auth/register/seller",
			body: `{"fullName":"Ravi","email":"ravi@example.com","mobileNumber":"9876543210",
				"shopName":"&lt;script&gt;alert(1)&lt;/script&gt;","shopDescription":"<p> </p>",
				"businessAddress":"5 Market St","password":"secret1","confirmPassword":"secret1"}`,
			wantFields: map[string]string{
				"shopName":        "Shop name is required",
				"shopDescription": "Shop description is required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, repo := newTestRouter(t, 100)

			w := serve(router, http.MethodPost, tt.target, tt.body, "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
			env := decodeEnvelope(t, w)
			if env.Message != "Validation failed" {
				t.Errorf("message = %q, want %q", env.Message, "Validation failed")
			}

			var errs []fieldError
			if err := json.Unmarshal(env.Errors, &errs); err != nil {
				t.Fatalf("failed to decode errors: %v", err)
			}
			got := make(map[string]string, len(errs))
			for _, fe := range errs {
				got[fe.Field] = fe.Message
			}
			for field, msg := range tt.wantFields {
				if got[field] != msg {
					t.Errorf("errors[%s] = %q, want %q (all: %v)", field, got[field], msg, got)
				}
			}
			if len(got) != len(tt.wantFields) {
				t.Errorf("errors = %v, want only %v", got, tt.wantFields)
			}

			if n, _ := repo.Count(context.Background()); n != 0 {
				t.Errorf("stored users = %d, want 0", n)
			}
		})
	}
}

func TestRouter_Me_RequiresBearerToken(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/api/auth/me", "", tt.token)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if msg := decodeEnvelope(t, w).Message; msg != "Invalid token" {
				t.Errorf("message = %q, want %q", msg, "Invalid token")
			}
		})
	}
}

func TestRouter_RateLimitsAuthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, 2)

	body := `{"email":"jane@example.com","password":"secret1"}`
	for i := 0; i < 2; i++ {
		if w := serve(router, http.MethodPost, "/api/auth/login", body, ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("request %d status = %d, want %d", i, w.Code, http.StatusUnauthorized)
		}
	}

	w := serve(router, http.MethodPost, "/api/auth/login", body, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// ヘルスチェックはレート制限の対象外
	if w := serve(router, http.MethodGet, "/api/auth/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_PreflightAndHeaders(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	w := serve(router, http.MethodOptions, "/api/auth/login", "", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	if w := serve(router, http.MethodGet, "/metrics", "", ""); w.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_UnknownRoute_Returns404Or405(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	w := serve(router, http.MethodGet, "/api/auth/unknown", "", "")
	// 存在しないルートには404か405が返ること
	if w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/auth/unknown status = %d, want 404 or 405", w.Code)
	}

	w = serve(router, http.MethodGet, "/api/auth/login", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/auth/login status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

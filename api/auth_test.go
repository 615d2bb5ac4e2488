package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garnizeh/flyaway/api"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository/mock"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func seedUser(t *testing.T, users *mock.Users, email, password, role string) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id, err := users.CreateUser(t.Context(), &models.User{Name: "Seeded", Email: email, PasswordHash: string(hash), Role: role})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func TestAuthHandlers(t *testing.T) {
	secret := "testsecret"
	tokenDur := 1 * time.Hour

	tests := []struct {
		name       string
		path       string
		body       any
		prepare    func(t *testing.T, m *mock.Users)
		wantStatus int
		checkBody  func(t *testing.T, body []byte)
	}{
		{
			name:       "Register_InvalidRequest",
			path:       "/register",
			body:       "not a json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_MissingFields_Name",
			path:       "/register",
			body:       map[string]string{"email": "alice@example.com", "password": "s3cretpass"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_MissingFields_Password",
			path:       "/register",
			body:       map[string]string{"name": "Alice", "email": "alice@example.com"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_InvalidEmail",
			path:       "/register",
			body:       map[string]string{"name": "Alice", "email": "not-an-email", "password": "s3cretpass"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_ShortPassword",
			path:       "/register",
			body:       map[string]string{"name": "Alice", "email": "alice@example.com", "password": "short"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_Success",
			path:       "/register",
			body:       map[string]string{"name": "Alice", "email": "Alice@Example.com", "password": "s3cretpass"},
			wantStatus: http.StatusCreated,
			checkBody: func(t *testing.T, b []byte) {
				var ar struct {
					User models.User `json:"user"`
				}
				if err := json.Unmarshal(b, &ar); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if ar.User.Email != "alice@example.com" || ar.User.Role != models.RoleUser {
					t.Fatalf("unexpected user: %+v", ar.User)
				}
				if bytes.Contains(b, []byte("password")) {
					t.Fatalf("password hash leaked: %s", b)
				}
			},
		},
		{
			name: "Register_DuplicateEmail",
			path: "/register",
			body: map[string]string{"name": "Dup", "email": "dup@example.com", "password": "s3cretpass"},
			prepare: func(t *testing.T, m *mock.Users) {
				seedUser(t, m, "dup@example.com", "whatever1", models.RoleUser)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "Register_StoreFailure",
			path: "/register",
			body: map[string]string{"name": "Err", "email": "err@example.com", "password": "s3cretpass"},
			prepare: func(t *testing.T, m *mock.Users) {
				m.CreateErr = fmt.Errorf("disk full")
			},
			wantStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, b []byte) {
				if bytes.Contains(b, []byte("disk full")) {
					t.Fatalf("internal error leaked: %s", b)
				}
			},
		},
		{
			name:       "Login_InvalidRequest",
			path:       "/login",
			body:       "not a json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Login_MissingFields_Password",
			path:       "/login",
			body:       map[string]string{"email": "missing@example.com"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Login_MissingUser",
			path:       "/login",
			body:       map[string]string{"email": "missing@example.com", "password": "nop"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "Login_Success",
			path: "/login",
			body: map[string]string{"email": "bob@example.com", "password": "hunter22"},
			prepare: func(t *testing.T, m *mock.Users) {
				seedUser(t, m, "bob@example.com", "hunter22", models.RoleAdmin)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, b []byte) {
				var ar struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(b, &ar); err != nil {
					t.Fatalf("unmarshal token: %v", err)
				}
				tok, err := jwt.Parse(ar.Token, func(token *jwt.Token) (any, error) { return []byte(secret), nil })
				if err != nil {
					t.Fatalf("invalid token: %v", err)
				}
				claims := tok.Claims.(jwt.MapClaims)
				if claims["role"] != models.RoleAdmin {
					t.Fatalf("expected admin role claim, got %v", claims["role"])
				}
			},
		},
		{
			name: "Login_WrongPassword",
			path: "/login",
			body: map[string]string{"email": "c@example.com", "password": "wrongpw"},
			prepare: func(t *testing.T, m *mock.Users) {
				seedUser(t, m, "c@example.com", "rightpw1", models.RoleUser)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Logout_OK",
			path:       "/logout",
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, b []byte) {
				if !bytes.Contains(b, []byte("Logged out")) {
					t.Fatalf("unexpected body: %s", string(b))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := mock.NewUsers()
			if tt.prepare != nil {
				tt.prepare(t, users)
			}
			handler := api.NewAuthHandler(users, secret, tokenDur)

			var bodyReader io.Reader
			if tt.body != nil {
				b, _ := json.Marshal(tt.body)
				bodyReader = bytes.NewReader(b)
			}
			req := httptest.NewRequest(http.MethodPost, tt.path, bodyReader)
			w := httptest.NewRecorder()

			switch tt.path {
			case "/register":
				handler.Register(w, req)
			case "/login":
				handler.Login(w, req)
			case "/logout":
				handler.Logout(w, req)
			default:
				t.Fatalf("unknown path %s", tt.path)
			}

			res := w.Result()
			defer res.Body.Close()
			data, _ := io.ReadAll(res.Body)
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("%s: expected status %d got %d body=%s", tt.name, tt.wantStatus, res.StatusCode, string(data))
			}
			if tt.checkBody != nil {
				tt.checkBody(t, data)
			}

			// Successful auth responses carry a token with user_id and exp claims.
			if tt.wantStatus == http.StatusOK || tt.wantStatus == http.StatusCreated {
				var ar struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(data, &ar); err == nil && ar.Token != "" {
					tok, err := jwt.Parse(ar.Token, func(token *jwt.Token) (any, error) { return []byte(secret), nil })
					if err != nil {
						t.Fatalf("parse token: %v", err)
					}
					claims := tok.Claims.(jwt.MapClaims)
					if id, ok := claims["user_id"].(float64); !ok || id <= 0 {
						t.Fatalf("missing user_id claim: %v", claims)
					}
					if expF, ok := claims["exp"].(float64); !ok || int64(expF) < time.Now().Unix() {
						t.Fatalf("invalid exp claim")
					}
				}
			}
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/pkg/auth"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}

func TestIdentityLetsGuestsThrough(t *testing.T) {
	var user string
	handler := Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if user != "" {
		t.Fatalf("expected guest, got user %q", user)
	}
}

func TestIdentityRejectsInvalidToken(t *testing.T) {
	handler := Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestIdentitySeedsContext(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.RoleAdmin)

	var captured struct {
		user string
		role string
		id   *uuid.UUID
	}
	handler := Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.id = UserUUIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID.String() || captured.id == nil || *captured.id != userID {
		t.Fatalf("unexpected user %q", captured.user)
	}
	if captured.role != string(enums.RoleAdmin) {
		t.Fatalf("unexpected role %q", captured.role)
	}
}

func TestRequireAuthAndRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	customer := mintTestToken(t, uuid.New(), enums.RoleCustomer)
	admin := mintTestToken(t, uuid.New(), enums.RoleAdmin)

	cases := []struct {
		name  string
		chain http.Handler
		token string
		want  int
	}{
		{"auth guest", Identity(testJWT, nil)(RequireAuth(nil)(ok)), "", http.StatusUnauthorized},
		{"auth customer", Identity(testJWT, nil)(RequireAuth(nil)(ok)), customer, http.StatusNoContent},
		{"admin guest", Identity(testJWT, nil)(RequireRole(enums.RoleAdmin, nil)(ok)), "", http.StatusUnauthorized},
		{"admin customer", Identity(testJWT, nil)(RequireRole(enums.RoleAdmin, nil)(ok)), customer, http.StatusForbidden},
		{"admin admin", Identity(testJWT, nil)(RequireRole(enums.RoleAdmin, nil)(ok)), admin, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp := httptest.NewRecorder()
			tc.chain.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.Code)
			}
		})
	}
}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

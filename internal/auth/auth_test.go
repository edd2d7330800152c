package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestJWTRoundTrip(t *testing.T) {
	token, err := IssueJWT(42, RoleEvaluator, "김평가", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	claims, err := ParseJWT(token, testSecret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Fatalf("user id = %d, err = %v", id, err)
	}
	if claims.Role != RoleEvaluator || claims.Name != "김평가" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := IssueJWT(1, RoleAdmin, "관리자", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if _, err := ParseJWT(token, []byte("other-secret")); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	token, err := IssueJWT(1, RoleAdmin, "관리자", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if _, err := ParseJWT(token, testSecret); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestJWTRejectsInvalidRole(t *testing.T) {
	if _, err := IssueJWT(1, Role("회계사"), "x", testSecret, time.Hour); err == nil {
		t.Fatal("expected role error")
	}
}

func TestRoleSatisfies(t *testing.T) {
	if !RoleSatisfies(RoleAdmin, RoleEvaluator) {
		t.Fatal("admin should satisfy evaluator routes")
	}
	if !RoleSatisfies(RoleApplicant, RoleApplicant) {
		t.Fatal("exact role should satisfy itself")
	}
	if RoleSatisfies(RoleEvaluator, RoleApplicant) {
		t.Fatal("evaluator should not satisfy applicant routes")
	}
}

func TestPolicyRequiredRoles(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz", "/api/v1/auth/login"}, nil)

	cases := []struct {
		method, path string
		role         Role
		required     bool
	}{
		{http.MethodGet, "/api/v1/users", RoleAdmin, true},
		{http.MethodPost, "/api/v1/settlements", RoleAdmin, true},
		{http.MethodPost, "/api/v1/requests", RoleApplicant, true},
		{http.MethodGet, "/api/v1/requests", "", false},
		{http.MethodPost, "/api/v1/requests/7/assign", RoleEvaluator, true},
		{http.MethodPost, "/api/v1/requests/7/response", RoleEvaluator, true},
		{http.MethodPost, "/api/v1/requests/7/translate", RoleAdmin, true},
		{http.MethodPost, "/api/v1/requests/7/send", RoleAdmin, true},
		{http.MethodPut, "/api/v1/requests/7/details", RoleAdmin, true},
		{http.MethodGet, "/api/v1/requests/7", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.path, nil)
		role, ok := policy.RequiredRole(r)
		if ok != tc.required || role != tc.role {
			t.Fatalf("%s %s: role=%q ok=%v, want role=%q ok=%v", tc.method, tc.path, role, ok, tc.role, tc.required)
		}
	}

	if !policy.IsExempt(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)) {
		t.Fatal("login should be exempt")
	}
	if policy.IsExempt(httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)) {
		t.Fatal("users should not be exempt")
	}
}

func TestMiddlewareAuthFlow(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz"}, nil)
	mw := NewMiddleware(testSecret, policy)

	var gotUserID int64
	var gotRole Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := mw.Wrap(next)

	// Missing token on a protected route.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	// Exempt route passes without a token.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("exempt: status = %d", rec.Code)
	}

	// Wrong role is forbidden.
	token, err := IssueJWT(7, RoleApplicant, "신청자", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: status = %d", rec.Code)
	}

	// Valid token populates the request context.
	r = httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if gotUserID != 7 || gotRole != RoleApplicant {
		t.Fatalf("context identity = %d %s", gotUserID, gotRole)
	}

	// Admin passes role-narrowed routes.
	adminToken, err := IssueJWT(1, RoleAdmin, "관리자", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	r = httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	r.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: status = %d", rec.Code)
	}
}

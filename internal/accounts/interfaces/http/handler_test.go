package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	accountapp "wecar-diagnosis/internal/accounts/application"
	accounts "wecar-diagnosis/internal/accounts/domain"
	"wecar-diagnosis/internal/audit"
	"wecar-diagnosis/internal/auth"
)

type fixtureUserRepo struct {
	users   map[int64]*accounts.User
	updated *accounts.User
}

func (r *fixtureUserRepo) Create(ctx context.Context, u *accounts.User) (int64, error) {
	return 0, nil
}

func (r *fixtureUserRepo) GetByID(ctx context.Context, id int64) (*accounts.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, accounts.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fixtureUserRepo) GetByUsername(ctx context.Context, username string) (*accounts.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, accounts.ErrUserNotFound
}

func (r *fixtureUserRepo) List(ctx context.Context) ([]accounts.User, error) {
	var out []accounts.User
	for _, user := range r.users {
		out = append(out, *user)
	}
	return out, nil
}

func (r *fixtureUserRepo) Update(ctx context.Context, u *accounts.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return accounts.ErrUserNotFound
	}
	copied := *u
	r.updated = &copied
	return nil
}

func (r *fixtureUserRepo) SetApproved(ctx context.Context, id int64, approved bool) error {
	return nil
}

func (r *fixtureUserRepo) Delete(ctx context.Context, id int64) error {
	return nil
}

type capturingAuditor struct {
	entries []audit.Entry
}

func (a *capturingAuditor) Log(ctx context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func newFixtureHandler(t *testing.T) (*Handler, *fixtureUserRepo, *capturingAuditor) {
	t.Helper()

	repo := &fixtureUserRepo{users: map[int64]*accounts.User{
		3: {ID: 3, Username: "kim", Role: "평가사", Name: "김평가", Approved: true},
	}}
	svc, err := accountapp.NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	auditor := &capturingAuditor{}
	handler, err := NewHandler(svc, auditor, "test-secret", 0)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler, repo, auditor
}

func adminPut(handler *Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), 1, auth.RoleAdmin, "admin"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestUpdateUserAuditOmitsPassword(t *testing.T) {
	handler, repo, auditor := newFixtureHandler(t)

	body := `{"username":"kim","password":"hunter2-new-pass","role":"평가사","name":"김평가"}`
	rec := adminPut(handler, "/api/v1/users/3", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if repo.updated == nil || repo.updated.PasswordHash == "" {
		t.Fatal("password change not applied")
	}

	if len(auditor.entries) != 1 {
		t.Fatalf("audit entries = %d", len(auditor.entries))
	}
	entry := auditor.entries[0]
	if strings.Contains(string(entry.Metadata), "hunter2-new-pass") {
		t.Fatalf("audit metadata leaks the password: %s", entry.Metadata)
	}
	var metadata map[string]any
	if err := json.Unmarshal(entry.Metadata, &metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if changed, _ := metadata["password_changed"].(bool); !changed {
		t.Fatalf("password_changed = %v", metadata["password_changed"])
	}
	if metadata["username"] != "kim" {
		t.Fatalf("metadata username = %v", metadata["username"])
	}
}

func TestUpdateUserAuditFlagsUnchangedPassword(t *testing.T) {
	handler, _, auditor := newFixtureHandler(t)

	body := `{"username":"kim","role":"평가사","name":"김평가"}`
	rec := adminPut(handler, "/api/v1/users/3", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if len(auditor.entries) != 1 {
		t.Fatalf("audit entries = %d", len(auditor.entries))
	}
	var metadata map[string]any
	if err := json.Unmarshal(auditor.entries[0].Metadata, &metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if changed, _ := metadata["password_changed"].(bool); changed {
		t.Fatal("password_changed should be false")
	}
}

package application

import (
	"context"
	"errors"
	"testing"

	accounts "wecar-diagnosis/internal/accounts/domain"
)

type stubUserRepo struct {
	users  map[int64]*accounts.User
	nextID int64
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[int64]*accounts.User), nextID: 1}
}

func (s *stubUserRepo) Create(_ context.Context, user *accounts.User) (int64, error) {
	id := s.nextID
	s.nextID++
	stored := *user
	stored.ID = id
	s.users[id] = &stored
	return id, nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id int64) (*accounts.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, accounts.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserRepo) GetByUsername(_ context.Context, username string) (*accounts.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, accounts.ErrUserNotFound
}

func (s *stubUserRepo) List(_ context.Context) ([]accounts.User, error) {
	var out []accounts.User
	for _, user := range s.users {
		out = append(out, *user)
	}
	return out, nil
}

func (s *stubUserRepo) Update(_ context.Context, user *accounts.User) error {
	stored, ok := s.users[user.ID]
	if !ok {
		return accounts.ErrUserNotFound
	}
	approved := stored.Approved
	*stored = *user
	stored.Approved = approved
	return nil
}

func (s *stubUserRepo) SetApproved(_ context.Context, id int64, approved bool) error {
	user, ok := s.users[id]
	if !ok {
		return accounts.ErrUserNotFound
	}
	user.Approved = approved
	return nil
}

func (s *stubUserRepo) Delete(_ context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return accounts.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func registerInput() RegisterInput {
	return RegisterInput{
		Username:        "wecar1",
		Password:        "secret-pw",
		PasswordConfirm: "secret-pw",
		Role:            "평가사",
		Email:           "eval@wecar.kr",
		Name:            "김평가",
	}
}

func TestRegisterHashesAndStartsUnapproved(t *testing.T) {
	repo := newStubUserRepo()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	user, err := svc.Register(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Approved {
		t.Fatal("new accounts must start unapproved")
	}
	stored := repo.users[user.ID]
	if stored.PasswordHash == "secret-pw" || stored.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
}

func TestRegisterRejectsMismatchedConfirm(t *testing.T) {
	svc, _ := NewService(newStubUserRepo())
	in := registerInput()
	in.PasswordConfirm = "different"
	if _, err := svc.Register(context.Background(), in); !errors.Is(err, accounts.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	svc, _ := NewService(newStubUserRepo())
	if _, err := svc.Register(context.Background(), registerInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), registerInput()); !errors.Is(err, accounts.ErrUsernameTaken) {
		t.Fatalf("err = %v, want username taken", err)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc, _ := NewService(newStubUserRepo())
	in := registerInput()
	in.Role = "감사인"
	if _, err := svc.Register(context.Background(), in); !errors.Is(err, accounts.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestAuthenticateGatesOnApproval(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := NewService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "wecar1", "secret-pw"); !errors.Is(err, accounts.ErrNotApproved) {
		t.Fatalf("unapproved login err = %v", err)
	}

	if err := svc.Approve(ctx, user.ID, true); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	got, err := svc.Authenticate(ctx, "wecar1", "secret-pw")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated id = %d", got.ID)
	}

	if _, err := svc.Authenticate(ctx, "wecar1", "wrong"); !errors.Is(err, accounts.ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "secret-pw"); !errors.Is(err, accounts.ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
}

package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	accounts "wecar-diagnosis/internal/accounts/domain"
	"wecar-diagnosis/internal/auth"
)

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, u *accounts.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*accounts.User, error)
	GetByUsername(ctx context.Context, username string) (*accounts.User, error)
	List(ctx context.Context) ([]accounts.User, error)
	Update(ctx context.Context, u *accounts.User) error
	SetApproved(ctx context.Context, id int64, approved bool) error
	Delete(ctx context.Context, id int64) error
}

// Service handles account use cases.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("accounts service: nil repository")
	}
	return &Service{repo: repo}, nil
}

// RegisterInput carries signup fields.
type RegisterInput struct {
	Username        string
	Password        string
	PasswordConfirm string
	Role            string
	Email           string
	Phone           string
	Company         string
	Position        string
	Name            string
}

// Register creates an unapproved account pending admin review.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*accounts.User, error) {
	if strings.TrimSpace(in.Username) == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: username, password and name are required", accounts.ErrValidation)
	}
	if in.Password != in.PasswordConfirm {
		return nil, fmt.Errorf("%w: password confirmation does not match", accounts.ErrValidation)
	}
	if _, ok := auth.NormalizeRole(in.Role); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", accounts.ErrValidation, in.Role)
	}

	if existing, err := s.repo.GetByUsername(ctx, in.Username); err == nil && existing != nil {
		return nil, accounts.ErrUsernameTaken
	} else if err != nil && !errors.Is(err, accounts.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("accounts service: hash password: %w", err)
	}

	user := &accounts.User{
		Role:         in.Role,
		Username:     in.Username,
		PasswordHash: string(hash),
		Email:        in.Email,
		Phone:        in.Phone,
		Company:      in.Company,
		Position:     in.Position,
		Name:         in.Name,
		Approved:     false,
	}
	id, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return user, nil
}

// Authenticate verifies credentials and the approval gate.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*accounts.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", accounts.ErrValidation)
	}
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return nil, accounts.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, accounts.ErrInvalidCredentials
	}
	if !user.Approved {
		return nil, accounts.ErrNotApproved
	}
	return user, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (*accounts.User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all accounts, newest first.
func (s *Service) List(ctx context.Context) ([]accounts.User, error) {
	return s.repo.List(ctx)
}

// UpdateInput carries admin profile edits. Password is optional.
type UpdateInput struct {
	ID       int64
	Username string
	Password string
	Role     string
	Email    string
	Phone    string
	Company  string
	Position string
	Name     string
}

// Update rewrites an account's profile.
func (s *Service) Update(ctx context.Context, in UpdateInput) error {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: username and name are required", accounts.ErrValidation)
	}
	if _, ok := auth.NormalizeRole(in.Role); !ok {
		return fmt.Errorf("%w: unknown role %q", accounts.ErrValidation, in.Role)
	}
	user := &accounts.User{
		ID:       in.ID,
		Username: in.Username,
		Role:     in.Role,
		Email:    in.Email,
		Phone:    in.Phone,
		Company:  in.Company,
		Position: in.Position,
		Name:     in.Name,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("accounts service: hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	return s.repo.Update(ctx, user)
}

// Approve flips the signup approval gate.
func (s *Service) Approve(ctx context.Context, id int64, approved bool) error {
	return s.repo.SetApproved(ctx, id, approved)
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

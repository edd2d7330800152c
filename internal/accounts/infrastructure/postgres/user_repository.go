package postgres

import (
	"context"
	"database/sql"
	"errors"

	accounts "wecar-diagnosis/internal/accounts/domain"
)

// UserRepository persists accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, role, username, password_hash,
	COALESCE(email,''), COALESCE(phone,''), COALESCE(company,''), COALESCE(position,''),
	name, approved, created_at`

// Create inserts a new account and returns its id.
func (r *UserRepository) Create(ctx context.Context, u *accounts.User) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("user repo: nil db")
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO users (role, username, password_hash, email, phone, company, position, name, approved)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id`,
		u.Role, u.Username, u.PasswordHash, u.Email, u.Phone, u.Company, u.Position, u.Name, u.Approved,
	).Scan(&id)
	return id, err
}

// GetByID fetches one account.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*accounts.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByUsername fetches one account by login name.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*accounts.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// FindApprovedEvaluatorByID resolves an approved evaluator account.
func (r *UserRepository) FindApprovedEvaluatorByID(ctx context.Context, id int64) (*accounts.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+` FROM users
WHERE id = $1 AND role = '평가사' AND approved`, id)
	return scanUser(row)
}

// FindApprovedEvaluatorByName resolves an approved evaluator by exact name.
func (r *UserRepository) FindApprovedEvaluatorByName(ctx context.Context, name string) (*accounts.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+` FROM users
WHERE name = $1 AND role = '평가사' AND approved
ORDER BY id
LIMIT 1`, name)
	return scanUser(row)
}

// List returns all accounts, newest first.
func (r *UserRepository) List(ctx context.Context) ([]accounts.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []accounts.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Update rewrites profile fields; password only when hash is non-empty.
func (r *UserRepository) Update(ctx context.Context, u *accounts.User) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	var result sql.Result
	var err error
	if u.PasswordHash != "" {
		result, err = r.db.ExecContext(ctx, `
UPDATE users SET username=$1, password_hash=$2, role=$3, email=$4, phone=$5, company=$6, position=$7, name=$8
WHERE id=$9`,
			u.Username, u.PasswordHash, u.Role, u.Email, u.Phone, u.Company, u.Position, u.Name, u.ID)
	} else {
		result, err = r.db.ExecContext(ctx, `
UPDATE users SET username=$1, role=$2, email=$3, phone=$4, company=$5, position=$6, name=$7
WHERE id=$8`,
			u.Username, u.Role, u.Email, u.Phone, u.Company, u.Position, u.Name, u.ID)
	}
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

// SetApproved flips the signup approval gate.
func (r *UserRepository) SetApproved(ctx context.Context, id int64, approved bool) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `UPDATE users SET approved = $1 WHERE id = $2`, approved, id)
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

// Delete removes an account. Evaluator references on requests are nulled
// by the schema; deleting an applicant with open requests fails on the FK.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

func ensureOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return accounts.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*accounts.User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accounts.ErrUserNotFound
	}
	return u, err
}

func scanUserRow(row rowScanner) (*accounts.User, error) {
	var u accounts.User
	err := row.Scan(
		&u.ID, &u.Role, &u.Username, &u.PasswordHash,
		&u.Email, &u.Phone, &u.Company, &u.Position,
		&u.Name, &u.Approved, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

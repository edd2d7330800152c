package accounts

import "time"

// User represents a system account. Role values follow the stored
// Korean labels (관리자, 진단신청, 평가사).
type User struct {
	ID           int64     `json:"id"`
	Role         string    `json:"role"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Company      string    `json:"company,omitempty"`
	Position     string    `json:"position,omitempty"`
	Name         string    `json:"name"`
	Approved     bool      `json:"approved"`
	CreatedAt    time.Time `json:"created_at"`
}
